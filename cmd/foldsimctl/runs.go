package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"foldsim/pkg/foldsim"
)

func (a *app) newRunsCommand() *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return errors.New("limit must be > 0")
			}
			sess, err := a.open(cmd, a.settings())
			if err != nil {
				return err
			}
			defer sess.close()

			items, err := sess.client.Runs(cmd.Context(), foldsim.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(items)
			}
			if len(items) == 0 {
				fmt.Fprintln(out, "no runs found")
				return nil
			}
			for _, it := range items {
				fmt.Fprintf(out, "run_id=%s created_at=%s sequence=%s seed=%d trials=%d completed=%d workers=%d k_eff=%.6g\n",
					it.RunID, it.CreatedAtUTC, it.Sequence, it.Seed, it.Trials, it.Completed, it.Workers, it.KEff)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit runs list as JSON")
	return cmd
}

func (a *app) newShowCommand() *cobra.Command {
	var (
		req     foldsim.ShowRequest
		trial   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a run's summary, trials and optionally one trajectory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("trial") {
				req.Trial = &trial
			}
			sess, err := a.open(cmd, a.settings())
			if err != nil {
				return err
			}
			defer sess.close()

			detail, err := sess.client.Show(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(detail)
			}

			run := detail.Run
			fmt.Fprintf(out, "run_id=%s created=%s sequence=%s start=%s\n",
				run.ID, humanize.Time(run.CreatedAt), run.Sequence, run.StartStructure)
			fmt.Fprintf(out, "substrate=%s temperature=%.2f rate_method=%s preset=%s seed=%d\n",
				run.Substrate, run.Temperature, run.RateMethod, run.Preset, run.Seed)
			fmt.Fprintf(out, "trials=%d completed=%d steps=%s k_eff=%.6g ci95=[%.6g, %.6g]\n",
				run.Trials, run.Summary.Completed, humanize.Comma(run.Summary.TotalSteps),
				run.Summary.KEff, run.Summary.KEffLow, run.Summary.KEffHigh)
			for _, t := range detail.Trials {
				fmt.Fprintf(out, "trial=%d seed=%d reason=%s tag=%s time=%.6g steps=%d dG=%.2f %s\n",
					t.Index, t.Seed, t.Reason, t.Tag, t.Time, t.Steps, t.Energy, t.Structure)
			}
			if detail.Trajectory != nil {
				fmt.Fprintf(out, "trajectory trial=%d snapshots=%d\n", detail.Trajectory.Trial, len(detail.Trajectory.Snapshots))
				for _, s := range detail.Trajectory.Snapshots {
					fmt.Fprintf(out, "%10d %12.6g %8.2f %s\n", s.Step, s.Time, s.Energy, s.Structure)
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.RunID, "run-id", "", "run identifier")
	f.BoolVar(&req.Latest, "latest", false, "use the most recent run")
	f.IntVar(&trial, "trial", 0, "also print this trial's trajectory")
	f.BoolVar(&jsonOut, "json", false, "emit JSON")
	return cmd
}

func (a *app) newExportCommand() *cobra.Command {
	var req foldsim.ExportRequest
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy a run's artifacts to an export directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.open(cmd, a.settings())
			if err != nil {
				return err
			}
			defer sess.close()

			summary, err := sess.client.Export(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported run_id=%s dir=%s\n", summary.RunID, summary.Directory)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.RunID, "run-id", "", "run identifier")
	f.BoolVar(&req.Latest, "latest", false, "export the most recent run")
	f.StringVar(&req.OutDir, "out", "", "output directory (default: --exports-dir)")
	return cmd
}
