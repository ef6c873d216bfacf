package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"foldsim/internal/config"
	"foldsim/internal/sim"
	"foldsim/pkg/foldsim"
)

func (a *app) newRunCommand() *cobra.Command {
	var (
		configPath string
		jsonOut    bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulations described by a YAML run configuration",
		Long: `Run the simulations described by a YAML run configuration.

The file's store, logging, metrics and artifacts_dir sections apply unless the
matching flag or FOLDSIM_ variable is given.

Examples:
  foldsimctl run --config hairpin.yaml
  FOLDSIM_STORE=sqlite foldsimctl run --config hairpin.yaml --db-path runs.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return errors.New("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			s := a.settings()
			a.overlay(&s, cfg)
			sess, err := a.open(cmd, s)
			if err != nil {
				return err
			}
			summary, runErr := sess.client.RunFile(cmd.Context(), configPath)
			if err := sess.close(); err != nil && runErr == nil {
				runErr = err
			}
			if runErr != nil {
				return runErr
			}
			return printRunSummary(cmd.OutOrStdout(), summary, jsonOut)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "run configuration file")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the run summary as JSON")
	return cmd
}

// overlay takes client-level settings from the run file unless they were
// given explicitly.
func (a *app) overlay(s *settings, cfg *config.RunConfig) {
	if !a.explicit(keyStore) && cfg.Store.Kind != "" {
		s.storeKind = cfg.Store.Kind
	}
	if !a.explicit(keyDBPath) && cfg.Store.Path != "" {
		s.dbPath = cfg.Store.Path
	}
	if !a.explicit(keyArtifactsDir) && cfg.ArtifactsDir != "" {
		s.artifactsDir = cfg.ArtifactsDir
	}
	if !a.explicit(keyLogLevel) && !a.v.GetBool(keyVerbose) && cfg.Logging.Level != "" {
		s.logLevel = cfg.Logging.Level
	}
	if !a.explicit(keyLogFormat) && cfg.Logging.Format != "" {
		s.logFormat = cfg.Logging.Format
	}
	if !a.explicit(keyMetricsTextfile) && cfg.Metrics.Textfile != "" {
		s.metricsTextfile = cfg.Metrics.Textfile
	}
}

func (a *app) newBatchCommand() *cobra.Command {
	var (
		model      modelFlags
		req        foldsim.RunRequest
		seed       int64
		stops      []string
		stopKind   string
		tolerance  int
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run independent seeded simulations from flags",
		Long: `Run independent seeded simulations from flags.

Stop conditions are tag=structure, optionally tag:kind:tolerance=structure
where kind is exact, count or loose ('*' marks ignored positions).

Examples:
  foldsimctl batch --sequence GGGGAAAACCCC --trials 100 --stop 'hairpin=((((....))))'
  foldsimctl batch --sequence GGGG+CCCC --structure '((((+))))' --max-time 1e-3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conds, err := parseStops(stops, stopKind, tolerance)
			if err != nil {
				return err
			}
			req.StopConditions = conds
			req.Model = model.options()
			if cmd.Flags().Changed("seed") {
				req.Seed = &seed
			}

			sess, err := a.open(cmd, a.settings())
			if err != nil {
				return err
			}
			summary, runErr := sess.client.Run(cmd.Context(), req)
			if err := sess.close(); err != nil && runErr == nil {
				runErr = err
			}
			if runErr != nil {
				return runErr
			}
			return printRunSummary(cmd.OutOrStdout(), summary, jsonOutput)
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.RunID, "run-id", "", "run identifier (default: random uuid)")
	f.StringVar(&req.Sequence, "sequence", "", "strand sequences separated by '+'")
	f.StringVar(&req.Structure, "structure", "", "starting dot-paren structure (default: open)")
	f.IntVar(&req.Trials, "trials", 1, "number of independent trials")
	f.IntVar(&req.Workers, "workers", config.DefaultWorkers, "trials run concurrently")
	f.Int64Var(&seed, "seed", 0, "base seed; trial i uses seed+i (default: time-derived)")
	f.Float64Var(&req.MaxTime, "max-time", 0, "simulated-time limit in seconds")
	f.Int64Var(&req.MaxSteps, "max-steps", 0, "step limit per trial")
	f.Int64Var(&req.OutputInterval, "output-interval", 0, "record a snapshot every N steps")
	f.Float64Var(&req.OutputTime, "output-time", 0, "record a snapshot every t simulated seconds")
	f.BoolVar(&req.KeepTrajectories, "keep-trajectories", false, "persist recorded snapshots")
	f.StringArrayVar(&stops, "stop", nil, "stop condition tag[:kind[:tolerance]]=structure (repeatable)")
	f.StringVar(&stopKind, "stop-kind", "exact", "default kind for --stop")
	f.IntVar(&tolerance, "tolerance", 0, "default tolerance for count and loose stops")
	f.BoolVar(&jsonOutput, "json", false, "emit the run summary as JSON")
	model.register(cmd)
	return cmd
}

func parseStops(values []string, kind string, tolerance int) ([]foldsim.StopCondition, error) {
	out := make([]foldsim.StopCondition, 0, len(values))
	for _, raw := range values {
		head, structure, ok := strings.Cut(raw, "=")
		if !ok || head == "" || structure == "" {
			return nil, fmt.Errorf("invalid stop condition %q: want tag=structure", raw)
		}
		parts := strings.Split(head, ":")
		if len(parts) > 3 {
			return nil, fmt.Errorf("invalid stop condition %q: too many fields", raw)
		}
		cond := foldsim.StopCondition{Tag: parts[0], Kind: matchKind(kind), Structure: structure, Tolerance: tolerance}
		if len(parts) > 1 && parts[1] != "" {
			cond.Kind = matchKind(parts[1])
		}
		if len(parts) > 2 {
			n, err := strconv.Atoi(parts[2])
			if err != nil {
				return nil, fmt.Errorf("invalid stop condition %q: tolerance: %w", raw, err)
			}
			cond.Tolerance = n
		}
		out = append(out, cond)
	}
	return out, nil
}

func matchKind(s string) sim.MatchKind {
	return sim.MatchKind(strings.ToLower(s))
}

func printRunSummary(w io.Writer, s foldsim.RunSummary, jsonOut bool) error {
	if jsonOut {
		type summaryJSON struct {
			RunID        string         `json:"run_id"`
			ArtifactsDir string         `json:"artifacts_dir"`
			Seed         int64          `json:"seed"`
			Trials       int            `json:"trials"`
			Completed    int            `json:"completed"`
			Reasons      map[string]int `json:"reasons"`
			Tags         map[string]int `json:"tags"`
			MeanTime     float64        `json:"mean_time"`
			KEff         float64        `json:"k_eff"`
			Log10KEff    float64        `json:"log10_k_eff"`
			KEffLow      float64        `json:"k_eff_low"`
			KEffHigh     float64        `json:"k_eff_high"`
			TotalSteps   int64          `json:"total_steps"`
			ElapsedMS    int64          `json:"elapsed_ms"`
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summaryJSON{
			RunID:        s.RunID,
			ArtifactsDir: s.ArtifactsDir,
			Seed:         s.Seed,
			Trials:       s.Trials,
			Completed:    s.Completed,
			Reasons:      s.Reasons,
			Tags:         s.Tags,
			MeanTime:     s.MeanTime,
			KEff:         s.KEff,
			Log10KEff:    s.Log10KEff,
			KEffLow:      s.KEffLow,
			KEffHigh:     s.KEffHigh,
			TotalSteps:   s.TotalSteps,
			ElapsedMS:    s.Elapsed.Milliseconds(),
		})
	}

	fmt.Fprintf(w, "run_id=%s seed=%d trials=%d completed=%d steps=%s elapsed=%s\n",
		s.RunID, s.Seed, s.Trials, s.Completed, humanize.Comma(s.TotalSteps), s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "reasons: %s\n", formatCounts(s.Reasons))
	if len(s.Tags) > 0 {
		fmt.Fprintf(w, "tags: %s\n", formatCounts(s.Tags))
	}
	if s.Completed > 0 {
		fmt.Fprintf(w, "mean_time=%.6g k_eff=%s log10_k_eff=%.4f ci95=[%.6g, %.6g]\n",
			s.MeanTime, humanize.SIWithDigits(s.KEff, 3, "/s"), s.Log10KEff, s.KEffLow, s.KEffHigh)
	}
	fmt.Fprintf(w, "artifacts=%s\n", s.ArtifactsDir)
	return nil
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, humanize.Comma(int64(counts[k]))))
	}
	return strings.Join(parts, " ")
}
