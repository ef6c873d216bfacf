package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"foldsim/internal/telemetry"
	"foldsim/pkg/foldsim"
)

const envPrefix = "FOLDSIM"

// Persistent settings. Each is a flag, overridable through FOLDSIM_<NAME>
// with dashes as underscores.
const (
	keyStore           = "store"
	keyDBPath          = "db-path"
	keyArtifactsDir    = "artifacts-dir"
	keyExportsDir      = "exports-dir"
	keyLogLevel        = "log-level"
	keyLogFormat       = "log-format"
	keyMetricsTextfile = "metrics-textfile"
	keyVerbose         = "verbose"
)

type app struct {
	v *viper.Viper
}

// settings are the resolved client-level options for one command.
type settings struct {
	storeKind       string
	dbPath          string
	artifactsDir    string
	exportsDir      string
	logLevel        string
	logFormat       string
	metricsTextfile string
}

func newRootCommand(v *viper.Viper) *cobra.Command {
	a := &app{v: v}

	root := &cobra.Command{
		Use:   "foldsimctl",
		Short: "Kinetic Monte Carlo simulation of nucleic-acid folding",
		Long: `foldsimctl simulates nucleic-acid secondary-structure kinetics one base pair
at a time, estimates first-passage rates over independent seeded trials and
keeps run artifacts for later inspection.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String(keyStore, "memory", "store backend (memory, sqlite)")
	pf.String(keyDBPath, "foldsim.db", "sqlite database path")
	pf.String(keyArtifactsDir, "runs", "directory for run artifacts and the run index")
	pf.String(keyExportsDir, "exports", "default export directory")
	pf.String(keyLogLevel, "info", "log level (debug, info, warn, error)")
	pf.String(keyLogFormat, "text", "log format (text, json, logfmt)")
	pf.String(keyMetricsTextfile, "", "write prometheus metrics to this file after a run")
	pf.BoolP(keyVerbose, "v", false, "verbose output (log level debug)")
	for _, key := range []string{keyStore, keyDBPath, keyArtifactsDir, keyExportsDir, keyLogLevel, keyLogFormat, keyMetricsTextfile, keyVerbose} {
		_ = v.BindPFlag(key, pf.Lookup(key))
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root.AddCommand(
		a.newRunCommand(),
		a.newBatchCommand(),
		a.newEnergyCommand(),
		a.newMovesCommand(),
		a.newRunsCommand(),
		a.newShowCommand(),
		a.newExportCommand(),
		newVersionCommand(),
	)
	return root
}

func (a *app) settings() settings {
	s := settings{
		storeKind:       a.v.GetString(keyStore),
		dbPath:          a.v.GetString(keyDBPath),
		artifactsDir:    a.v.GetString(keyArtifactsDir),
		exportsDir:      a.v.GetString(keyExportsDir),
		logLevel:        a.v.GetString(keyLogLevel),
		logFormat:       a.v.GetString(keyLogFormat),
		metricsTextfile: a.v.GetString(keyMetricsTextfile),
	}
	if a.v.GetBool(keyVerbose) {
		s.logLevel = "debug"
	}
	return s
}

// explicit reports whether key was given as a flag or through the
// environment.
func (a *app) explicit(key string) bool {
	return a.v.IsSet(key)
}

type session struct {
	client    *foldsim.Client
	collector *telemetry.Collector
	logger    *log.Logger
	textfile  string
}

func (a *app) open(cmd *cobra.Command, s settings) (*session, error) {
	logger, err := telemetry.NewLogger(cmd.ErrOrStderr(), s.logLevel, s.logFormat)
	if err != nil {
		return nil, err
	}
	collector := telemetry.NewCollector(nil)
	client, err := foldsim.New(foldsim.Options{
		StoreKind:    s.storeKind,
		DBPath:       s.dbPath,
		ArtifactsDir: s.artifactsDir,
		ExportsDir:   s.exportsDir,
		Logger:       logger,
		Recorder:     collector,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Init(cmd.Context()); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("init client: %w", err)
	}
	return &session{client: client, collector: collector, logger: logger, textfile: s.metricsTextfile}, nil
}

// close writes the metrics textfile, if any, and releases the store.
func (s *session) close() error {
	var textfileErr error
	if s.textfile != "" {
		textfileErr = s.collector.WriteTextfile(s.textfile)
		if textfileErr != nil {
			textfileErr = fmt.Errorf("write metrics textfile: %w", textfileErr)
		}
	}
	if err := s.client.Close(); err != nil {
		return err
	}
	return textfileErr
}

// modelFlags are the energy model options shared by batch, energy and moves.
type modelFlags struct {
	substrate   string
	temperature float64
	preset      string
	rateMethod  string
	paramsFile  string
	gt          bool
	shift       bool
	cache       bool
}

func (m *modelFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&m.substrate, "substrate", "", "substrate (dna, rna)")
	f.Float64Var(&m.temperature, "temperature", 37, "temperature in Celsius")
	f.StringVar(&m.preset, "preset", "", "rate preset, e.g. js_default, js_metropolis37, dna23_arrhenius")
	f.StringVar(&m.rateMethod, "rate-method", "", "override the preset's rate method (metropolis, kawasaki, arrhenius)")
	f.StringVar(&m.paramsFile, "params", "", "YAML energy parameter file")
	f.BoolVar(&m.gt, "gt", false, "allow G-T wobble pairs")
	f.BoolVar(&m.shift, "shift", false, "enable shift moves")
	f.BoolVar(&m.cache, "cache", false, "memoize loop energies")
}

func (m *modelFlags) options() foldsim.ModelOptions {
	temperature := m.temperature
	return foldsim.ModelOptions{
		Substrate:   m.substrate,
		Temperature: &temperature,
		Preset:      m.preset,
		RateMethod:  m.rateMethod,
		ParamsFile:  m.paramsFile,
		GTEnable:    m.gt,
		ShiftMoves:  m.shift,
		Cache:       m.cache,
	}
}
