package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"foldsim/pkg/foldsim"
)

func (a *app) newEnergyCommand() *cobra.Command {
	var (
		model      modelFlags
		req        foldsim.EnergyRequest
		energyType string
		loops      bool
		jsonOut    bool
	)
	cmd := &cobra.Command{
		Use:   "energy",
		Short: "Evaluate the free energy of a structure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Sequence == "" {
				return errors.New("--sequence is required")
			}
			req.Model = model.options()
			req.Type = foldsim.EnergyType(energyType)

			sess, err := a.open(cmd, a.settings())
			if err != nil {
				return err
			}
			defer sess.close()

			res, err := sess.client.Energy(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Fprintf(out, "%s\n%s\n", res.Sequence, res.Structure)
			fmt.Fprintf(out, "type=%s dG=%.2f kcal/mol\n", res.Type, res.Energy)
			if res.JoinRate > 0 {
				fmt.Fprintf(out, "join_rate=%s\n", humanize.SIWithDigits(res.JoinRate, 3, "/M/s"))
			}
			if loops {
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "LOOP\tKIND\tdG\tDETAIL")
				for _, l := range res.Loops {
					fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\n", l.ID, l.Kind, l.Energy, l.Description)
				}
				return tw.Flush()
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Sequence, "sequence", "", "strand sequences separated by '+'")
	f.StringVar(&req.Structure, "structure", "", "dot-paren structure (default: open)")
	f.StringVar(&energyType, "type", string(foldsim.EnergyLoop), "energy type (loop, complex)")
	f.BoolVar(&loops, "loops", false, "list per-loop energies")
	f.BoolVar(&jsonOut, "json", false, "emit JSON")
	model.register(cmd)
	return cmd
}

func (a *app) newMovesCommand() *cobra.Command {
	var (
		model   modelFlags
		req     foldsim.StateRequest
		top     int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "moves",
		Short: "List the transitions available from a structure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Sequence == "" {
				return errors.New("--sequence is required")
			}
			if top < 0 {
				return errors.New("top must be >= 0")
			}
			req.Model = model.options()

			sess, err := a.open(cmd, a.settings())
			if err != nil {
				return err
			}
			defer sess.close()

			res, err := sess.client.Transitions(cmd.Context(), req)
			if err != nil {
				return err
			}
			sort.SliceStable(res.Transitions, func(i, j int) bool {
				return res.Transitions[i].Rate > res.Transitions[j].Rate
			})
			if top > 0 && len(res.Transitions) > top {
				res.Transitions = res.Transitions[:top]
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Fprintf(out, "%s\n%s\n", res.Sequence, res.Structure)
			fmt.Fprintf(out, "dG=%.2f total_rate=%s moves=%d\n",
				res.Energy, humanize.SIWithDigits(res.TotalRate, 4, "/s"), len(res.Transitions))
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tRATE\tINDICES\tLOOPS")
			for _, t := range res.Transitions {
				fmt.Fprintf(tw, "%s\t%.6g\t%v\t%v\n", t.Type, t.Rate, t.Indices, t.Loops)
			}
			return tw.Flush()
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Sequence, "sequence", "", "strand sequences separated by '+'")
	f.StringVar(&req.Structure, "structure", "", "dot-paren structure (default: open)")
	f.IntVar(&top, "top", 0, "show only the N fastest transitions")
	f.BoolVar(&jsonOut, "json", false, "emit JSON")
	model.register(cmd)
	return cmd
}
