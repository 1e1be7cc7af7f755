package main

import (
	"fmt"
	"time"

	"github.com/beetlebugorg/basemerge/pkg/basemerge"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd(a *app) *cobra.Command {
	var stopOnError, quiet bool
	cmd := &cobra.Command{
		Use:   "run [workspace...]",
		Short: "Run the merge over every workspace",
		Long: `Run the merge pipeline over the named workspaces, or over every directory
below workspace_root that holds the base layer.

Workspaces are processed one after another. Failures are reported at the end
unless --stop-on-error is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args
			if len(names) == 0 {
				names = a.cfg.Workspaces
			}
			if cmd.Flags().Changed("stop-on-error") {
				a.cfg.StopOnError = stopOnError
			}
			dirs, err := basemerge.DiscoverWorkspaces(a.cfg.WorkspaceRoot, a.cfg.BaseLayer, names)
			if err != nil {
				return err
			}
			opts, err := basemerge.FromConfig(a.cfg)
			if err != nil {
				return err
			}
			opts.Merge.Logger = a.logger

			cache := basemerge.NewLayerCache(int64(a.cfg.CacheSizeMB) << 20)
			bopts := basemerge.BatchOptions{
				StopOnError: a.cfg.StopOnError,
				ErrorLog:    cmd.ErrOrStderr(),
				Cache:       cache,
			}
			if !quiet {
				bopts.Progress = func(done, total int) {
					fmt.Fprintf(cmd.ErrOrStderr(), "\rMerging: %d/%d (%.0f%%)",
						done, total, float64(done)/float64(total)*100)
					if done == total {
						fmt.Fprintln(cmd.ErrOrStderr())
					}
				}
			}

			report := basemerge.RunBatch(cmd.Context(), dirs, opts, bopts)
			stats := cache.Stats()
			a.logger.Debug("layer cache",
				zap.Int("hits", stats.Hits),
				zap.Int("misses", stats.Misses),
				zap.Int("uncached", stats.Uncached),
				zap.Int64("used_bytes", stats.UsedMemory))
			printBatchReport(cmd, report)
			if len(report.Failures) > 0 {
				return fmt.Errorf("%d of %d workspaces failed", len(report.Failures), report.Total)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "Abort at the first failing workspace")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print progress")
	return cmd
}

func printBatchReport(cmd *cobra.Command, r *basemerge.BatchReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Merged %d of %d workspaces in %s\n", len(r.Succeeded), r.Total, r.Elapsed.Round(time.Millisecond))
	for _, s := range r.Succeeded {
		fmt.Fprintf(out, "  %s: %d rows in %s (%d stages run, %d resumed)\n",
			s.Workspace, s.Rows, s.Output, len(s.Completed), len(s.Resumed))
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintf(out, "Warnings:\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(out, "  %s\n", w)
		}
	}
	if len(r.Failures) > 0 {
		fmt.Fprintf(out, "Failures:\n")
		for _, f := range r.Failures {
			fmt.Fprintf(out, "  %s [%s]: %v\n", f.Workspace, f.Stage, f.Err)
		}
	}
	if r.Aborted {
		fmt.Fprintf(out, "Batch stopped early\n")
	}
}
