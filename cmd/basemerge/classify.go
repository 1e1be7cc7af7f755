package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/beetlebugorg/basemerge/pkg/basemerge"
	"github.com/spf13/cobra"
)

func newClassifyCmd(a *app) *cobra.Command {
	var output string
	var clean bool
	cmd := &cobra.Command{
		Use:   "classify BASE NEW",
		Short: "Classify the overlaps between two layer files",
		Long: `Tabulate and classify every overlap between a base layer and a new layer
using the configured thresholds, and print one line per overlap.

With --output the merged layer is also written as GeoJSON.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := basemerge.ReadLayer(args[0])
			if err != nil {
				return fmt.Errorf("read base layer: %w", err)
			}
			newLayer, err := basemerge.ReadLayer(args[1])
			if err != nil {
				return fmt.Errorf("read new layer: %w", err)
			}
			opts, err := basemerge.FromConfig(a.cfg)
			if err != nil {
				return err
			}
			m := opts.Merge
			m.Clean = clean
			m.Logger = a.logger

			result, err := basemerge.Merge(cmd.Context(), base, newLayer, m)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BASE\tNEW\tAREA\tPERCENT\tRELATIONSHIP")
			for _, r := range result.Intersections {
				fmt.Fprintf(w, "%d\t%d\t%.3f\t%.2f\t%s\n", r.BaseID, r.NewID, r.Area, r.Percent, r.Relationship)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			rep := result.Report
			fmt.Fprintf(cmd.OutOrStdout(), "%d overlaps: %d Base, %d Split, %d New\n",
				rep.Intersections,
				rep.ByRelation[basemerge.RelationshipBase],
				rep.ByRelation[basemerge.RelationshipSplit],
				rep.ByRelation[basemerge.RelationshipNew])

			if output != "" {
				if err := basemerge.WriteLayer(output, result.Layer); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows to %s\n", result.Layer.Count(), output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the merged layer to this GeoJSON file")
	cmd.Flags().BoolVar(&clean, "clean", false, "Snap and clean the new features first")
	return cmd
}
