package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pbr-autowire/internal/classify"
)

type classification struct {
	Name       string   `json:"name"`
	Channel    string   `json:"channel"`
	Outcome    string   `json:"outcome"`
	Pattern    string   `json:"pattern,omitempty"`
	Contenders []string `json:"contenders,omitempty"`
}

func newClassifyCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "classify NAME...",
		Short: "Show the channel each texture name maps to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.cfg.Classifier()
			if err != nil {
				return err
			}
			out := make([]classification, 0, len(args))
			for _, name := range args {
				res := c.ClassifyName(name)
				entry := classification{
					Name:    name,
					Channel: res.Channel.String(),
					Outcome: res.Outcome.String(),
					Pattern: res.Pattern,
				}
				for _, ch := range res.Contenders {
					entry.Contenders = append(entry.Contenders, ch.String())
				}
				out = append(out, entry)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tCHANNEL\tOUTCOME\tMATCH")
			for _, e := range out {
				match := e.Pattern
				if len(e.Contenders) > 0 {
					match = strings.Join(e.Contenders, ", ")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Name, e.Channel, e.Outcome, match)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newRulesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the classifier rule table as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table := classify.DefaultTable()
			if a.cfg.RulesFile != "" {
				var err error
				if table, err = classify.LoadTable(a.cfg.RulesFile); err != nil {
					return err
				}
			}
			return writeYAML(cmd, table)
		},
	}
}

func newProfileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Print the shader routing profile as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.cfg.Profile()
			if err != nil {
				return err
			}
			return writeYAML(cmd, p)
		},
	}
}

func writeYAML(cmd *cobra.Command, v any) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
