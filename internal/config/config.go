package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"pbr-autowire/internal/classify"
	"pbr-autowire/internal/shader"
)

// EnvPrefix is prepended to every environment override, e.g.
// PBRWIRE_LOGGER_LEVEL or PBRWIRE_BATCH_WORKERS.
const EnvPrefix = "PBRWIRE"

// Config holds the rule and profile files plus logging and batch settings.
type Config struct {
	// Paths
	BaseDir     string `mapstructure:"base_dir" yaml:"base_dir"`
	RulesFile   string `mapstructure:"rules_file" yaml:"rules_file"`
	ProfileFile string `mapstructure:"profile_file" yaml:"profile_file"`

	// Wiring settings
	SharedMapping bool `mapstructure:"shared_mapping" yaml:"shared_mapping"`

	Logger LoggerConfig `mapstructure:"logger" yaml:"logger"`
	Batch  BatchConfig  `mapstructure:"batch" yaml:"batch"`
}

// LoggerConfig configures the process-wide zap logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig names the console color of each log level.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BatchConfig controls the directory runner.
type BatchConfig struct {
	Workers     int    `mapstructure:"workers" yaml:"workers"`
	OutputDir   string `mapstructure:"output_dir" yaml:"output_dir"`
	ReportFile  string `mapstructure:"report_file" yaml:"report_file"`
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file"`
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pbrwire")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Wiring --
	v.SetDefault("rules_file", "")
	v.SetDefault("profile_file", "")
	v.SetDefault("shared_mapping", false)

	// -- Batch --
	v.SetDefault("batch.workers", 0)
	v.SetDefault("batch.output_dir", "")
	v.SetDefault("batch.report_file", "")
	v.SetDefault("batch.metrics_file", "")
}

// Load reads a YAML config file and PBRWIRE_ environment overrides.
// An empty path looks for pbrwire.yaml in the working directory; a missing
// file is not an error there. Keys not set anywhere keep their defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("pbrwire")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", v.ConfigFileUsed(), err)
	}
	if cfg.BaseDir == "" && v.ConfigFileUsed() != "" {
		cfg.BaseDir = filepath.Dir(v.ConfigFileUsed())
	}
	return cfg, nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	RulesFile   string
	ProfileFile string
	OutputDir   string
	MetricsFile string
	LogLevel    string
	Workers     int
	Mapping     bool
}

// Resolve applies flag overrides and fills in any empty fields with
// defaults. CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	if flags.RulesFile != "" {
		c.RulesFile = flags.RulesFile
	}
	if flags.ProfileFile != "" {
		c.ProfileFile = flags.ProfileFile
	}
	if flags.OutputDir != "" {
		c.Batch.OutputDir = flags.OutputDir
	}
	if flags.MetricsFile != "" {
		c.Batch.MetricsFile = flags.MetricsFile
	}
	if flags.LogLevel != "" {
		c.Logger.Level = flags.LogLevel
	}
	if flags.Workers > 0 {
		c.Batch.Workers = flags.Workers
	}
	if flags.Mapping {
		c.SharedMapping = true
	}

	// Paths from the file are relative to the file itself
	c.RulesFile = c.abs(c.RulesFile)
	c.ProfileFile = c.abs(c.ProfileFile)
	c.Batch.MetricsFile = c.abs(c.Batch.MetricsFile)

	if c.Batch.OutputDir == "" {
		c.Batch.OutputDir = "wired"
	}
	c.Batch.OutputDir = c.abs(c.Batch.OutputDir)
	if c.Batch.ReportFile == "" {
		c.Batch.ReportFile = filepath.Join(c.Batch.OutputDir, "report.json")
	} else {
		c.Batch.ReportFile = c.abs(c.Batch.ReportFile)
	}

	if c.Batch.Workers <= 0 {
		c.Batch.Workers = runtime.NumCPU()
	}
	if c.Logger.ServiceName == "" {
		c.Logger.ServiceName = "pbrwire"
	}
}

// abs expands a leading ~ and joins relative paths onto BaseDir.
func (c *Config) abs(p string) string {
	if p == "" {
		return p
	}
	if expanded, err := homedir.Expand(p); err == nil {
		p = expanded
	}
	if filepath.IsAbs(p) || c.BaseDir == "" {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}

// Classifier builds the classifier from RulesFile, or the built-in rule
// table when none is set.
func (c *Config) Classifier() (*classify.Classifier, error) {
	if c.RulesFile == "" {
		return classify.New(nil), nil
	}
	table, err := classify.LoadTable(c.RulesFile)
	if err != nil {
		return nil, err
	}
	return classify.New(table), nil
}

// Profile builds the routing profile from ProfileFile, or the default
// LuxCore Disney profile, with the shared mapping node toggled.
func (c *Config) Profile() (*shader.Profile, error) {
	p := shader.DefaultProfile()
	if c.ProfileFile != "" {
		var err error
		if p, err = shader.LoadProfile(c.ProfileFile); err != nil {
			return nil, err
		}
	}
	if c.SharedMapping {
		p = p.WithMapping(true)
	}
	return p, nil
}
