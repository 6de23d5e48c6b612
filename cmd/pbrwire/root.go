package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pbr-autowire/internal/autowire"
	"pbr-autowire/internal/config"
	"pbr-autowire/internal/metrics"
	"pbr-autowire/internal/observability"
)

// app carries what every subcommand shares once the root has run.
type app struct {
	cfgFile string
	flags   config.Flags
	cfg     config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "pbrwire",
		Short:         "Wire PBR texture sets into material node graphs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "pbrwire"})
				return err
			}
			cfg.Resolve(a.flags)
			a.cfg = cfg

			observability.InitializeLogger(cfg.Logger)
			a.logger = observability.GetLogger()
			a.logger.Debug("Configuration loaded",
				zap.String("rules_file", cfg.RulesFile),
				zap.String("profile_file", cfg.ProfileFile),
				zap.Bool("shared_mapping", cfg.SharedMapping),
			)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			observability.Sync()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./pbrwire.yaml)")
	pf.StringVar(&a.flags.RulesFile, "rules", "", "YAML classifier rule table")
	pf.StringVar(&a.flags.ProfileFile, "profile", "", "YAML shader routing profile")
	pf.BoolVar(&a.flags.Mapping, "mapping", false, "share one mapping node between created textures")
	pf.StringVar(&a.flags.LogLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newClassifyCmd(a),
		newRulesCmd(a),
		newProfileCmd(a),
		newBuildCmd(a),
		newConnectCmd(a),
		newConvertCmd(a),
		newInspectCmd(a),
		newBatchCmd(a),
	)
	return root
}

// wirer builds the wiring core from the resolved configuration.
func (a *app) wirer(rec *metrics.Recorder) (*autowire.Wirer, error) {
	c, err := a.cfg.Classifier()
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	p, err := a.cfg.Profile()
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return autowire.New(c, p, rec, a.logger), nil
}
