package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pbr-autowire/internal/batch"
)

func newBatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch DIR",
		Short: "Wire every graph document under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			rec := metricsFor(cfg.Batch.MetricsFile)
			w, err := a.wirer(rec)
			if err != nil {
				return err
			}
			docs, err := batch.Discover(args[0], cfg.Batch.OutputDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(docs) == 0 {
				fmt.Fprintln(out, "No graph documents found.")
				return nil
			}
			fmt.Fprintf(out, "Documents: %d, Workers: %d\n", len(docs), cfg.Batch.Workers)
			fmt.Fprintf(out, "Output: %s\n", cfg.Batch.OutputDir)
			fmt.Fprintln(out, "------------------------------------------------------------")

			start := time.Now()
			results := batch.Run(cmd.Context(), batch.Config{
				InputDir:  args[0],
				OutputDir: cfg.Batch.OutputDir,
				Workers:   cfg.Batch.Workers,
				Wirer:     w,
				Metrics:   rec,
				Logger:    a.logger,
			}, docs)

			fmt.Fprintln(out, "------------------------------------------------------------")
			fmt.Fprintf(out, "Done in %.1fs\n", time.Since(start).Seconds())

			manifest := batch.NewManifest(results)
			fmt.Fprintf(out, "Wired: %d ok, %d partial, %d failed\n", manifest.OK, manifest.Partial, manifest.Failed)
			if manifest.Failed > 0 {
				fmt.Fprintf(out, "\nFailed (%d):\n", manifest.Failed)
				shown := 0
				for _, e := range manifest.Entries {
					if e.Error == "" {
						continue
					}
					if shown == 20 {
						fmt.Fprintf(out, "  ... and %d more\n", manifest.Failed-shown)
						break
					}
					fmt.Fprintf(out, "  %s: %s\n", e.Document, e.Error)
					shown++
				}
			}

			if err := batch.WriteManifest(cfg.Batch.ReportFile, results); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			fmt.Fprintf(out, "Report: %s\n", cfg.Batch.ReportFile)
			if err := rec.WriteTextfile(cfg.Batch.MetricsFile); err != nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&a.flags.OutputDir, "output", "o", "", "output directory (default: wired)")
	cmd.Flags().IntVar(&a.flags.Workers, "workers", 0, "number of worker goroutines (default: NumCPU)")
	cmd.Flags().StringVar(&a.flags.MetricsFile, "metrics", "", "write Prometheus metrics to this textfile")
	return cmd
}
