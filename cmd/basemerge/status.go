package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/beetlebugorg/basemerge/pkg/basemerge"
	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status [workspace...]",
		Short: "Show completed stages per workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.eachWorkspace(args, func(ws *basemerge.Workspace) error {
				cps, err := ws.Checkpoints()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d stages complete\n", ws.Name, len(cps))
				if len(cps) == 0 {
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, cp := range cps {
					fmt.Fprintf(w, "  %s\t%s\t%d rows\t%s\t%s\t%s\n",
						cp.Stage, cp.Output, cp.Rows, cp.Elapsed.Round(time.Millisecond),
						cp.CompletedAt.Local().Format(time.DateTime), cp.Warning)
				}
				return w.Flush()
			})
		},
	}
}

func newResetCmd(a *app) *cobra.Command {
	var stages []string
	cmd := &cobra.Command{
		Use:   "reset [workspace...]",
		Short: "Clear checkpoints so stages run again",
		Long: `Clear the checkpoint of the earliest given stage and of every stage after
it, or of every stage when --stage is not given. Layers already written are
left in place and overwritten by the next run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed := make([]basemerge.Stage, 0, len(stages))
			for _, s := range stages {
				st, err := basemerge.ParseStage(s)
				if err != nil {
					return err
				}
				parsed = append(parsed, st)
			}
			return a.eachWorkspace(args, func(ws *basemerge.Workspace) error {
				if err := ws.Reset(parsed...); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: reset\n", ws.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&stages, "stage", "s", nil, "Stage to reset (repeatable)")
	return cmd
}

// eachWorkspace opens the named workspaces, or all discovered ones, in turn.
func (a *app) eachWorkspace(names []string, fn func(*basemerge.Workspace) error) error {
	if len(names) == 0 {
		names = a.cfg.Workspaces
	}
	dirs, err := basemerge.DiscoverWorkspaces(a.cfg.WorkspaceRoot, a.cfg.BaseLayer, names)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		ws, err := basemerge.OpenWorkspace(dir, nil)
		if err != nil {
			return err
		}
		err = fn(ws)
		ws.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
