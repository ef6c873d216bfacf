package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"foldsim/internal/model"
	"foldsim/internal/sim"
)

const runIndexFile = "run_index.json"

const (
	configFile       = "config.json"
	summaryFile      = "summary.json"
	trialsFile       = "trials.json"
	trialsCSVFile    = "trials.csv"
	trajectoriesFile = "trajectories.json"
)

var trialsHeader = []string{"index", "seed", "reason", "tag", "time", "steps", "energy", "structure"}

type RunConfig struct {
	RunID          string              `json:"run_id"`
	Sequence       string              `json:"sequence"`
	StartStructure string              `json:"start_structure"`
	Substrate      string              `json:"substrate"`
	Temperature    float64             `json:"temperature"`
	RateMethod     string              `json:"rate_method"`
	Preset         string              `json:"preset,omitempty"`
	GTEnable       bool                `json:"gt_enable"`
	ShiftMoves     bool                `json:"shift_moves"`
	Seed           int64               `json:"seed"`
	Trials         int                 `json:"trials"`
	Workers        int                 `json:"workers"`
	MaxTime        float64             `json:"max_time"`
	MaxSteps       int64               `json:"max_steps"`
	OutputInterval int64               `json:"output_interval,omitempty"`
	OutputTime     float64             `json:"output_time,omitempty"`
	StopConditions []sim.StopCondition `json:"stop_conditions,omitempty"`
	CreatedAtUTC   string              `json:"created_at_utc"`
}

type RunArtifacts struct {
	Config       RunConfig           `json:"config"`
	Summary      model.RunSummary    `json:"summary"`
	Trials       []model.TrialRecord `json:"trials"`
	Trajectories []model.Trajectory  `json:"trajectories,omitempty"`
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	Sequence     string  `json:"sequence"`
	Trials       int     `json:"trials"`
	Completed    int     `json:"completed"`
	Seed         int64   `json:"seed"`
	Workers      int     `json:"workers"`
	KEff         float64 `json:"k_eff"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, summaryFile), artifacts.Summary); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, trialsFile), artifacts.Trials); err != nil {
		return "", err
	}
	if err := WriteTrialsCSV(runDir, artifacts.Trials); err != nil {
		return "", err
	}
	if len(artifacts.Trajectories) > 0 {
		if err := writeJSON(filepath.Join(runDir, trajectoriesFile), artifacts.Trajectories); err != nil {
			return "", err
		}
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the index newest first. Entries sharing a timestamp
// keep the later-appended one first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, summaryFile, trialsFile, trialsCSVFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	trajectoriesPath := filepath.Join(src, trajectoriesFile)
	if _, err := os.Stat(trajectoriesPath); err == nil {
		if err := copyFile(trajectoriesPath, filepath.Join(dst, trajectoriesFile)); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	return cfg, ok, err
}

func ReadSummary(baseDir, runID string) (model.RunSummary, bool, error) {
	var summary model.RunSummary
	ok, err := readJSON(filepath.Join(baseDir, runID, summaryFile), &summary)
	return summary, ok, err
}

func WriteTrialsCSV(runDir string, trials []model.TrialRecord) error {
	file, err := os.Create(filepath.Join(runDir, trialsCSVFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(trialsHeader); err != nil {
		return err
	}
	for _, trial := range trials {
		if err := writer.Write([]string{
			strconv.Itoa(trial.Index),
			strconv.FormatInt(trial.Seed, 10),
			trial.Reason,
			trial.Tag,
			strconv.FormatFloat(trial.Time, 'g', -1, 64),
			strconv.FormatInt(trial.Steps, 10),
			strconv.FormatFloat(trial.Energy, 'f', -1, 64),
			trial.Structure,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadTrialsCSV(baseDir, runID string) ([]model.TrialRecord, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, trialsCSVFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.TrialRecord{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < len(trialsHeader) {
		return nil, false, fmt.Errorf("trials header must have %d columns", len(trialsHeader))
	}

	trials := make([]model.TrialRecord, 0, 64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		trial, err := parseTrialRow(runID, record)
		if err != nil {
			return nil, false, err
		}
		trials = append(trials, trial)
	}
	return trials, true, nil
}

func parseTrialRow(runID string, record []string) (model.TrialRecord, error) {
	if len(record) < len(trialsHeader) {
		return model.TrialRecord{}, fmt.Errorf("trials row must have %d columns", len(trialsHeader))
	}
	index, err := strconv.Atoi(record[0])
	if err != nil {
		return model.TrialRecord{}, err
	}
	seed, err := strconv.ParseInt(record[1], 10, 64)
	if err != nil {
		return model.TrialRecord{}, err
	}
	simTime, err := strconv.ParseFloat(record[4], 64)
	if err != nil {
		return model.TrialRecord{}, err
	}
	steps, err := strconv.ParseInt(record[5], 10, 64)
	if err != nil {
		return model.TrialRecord{}, err
	}
	energy, err := strconv.ParseFloat(record[6], 64)
	if err != nil {
		return model.TrialRecord{}, err
	}
	return model.TrialRecord{
		RunID:     runID,
		Index:     index,
		Seed:      seed,
		Reason:    record[2],
		Tag:       record[3],
		Time:      simTime,
		Steps:     steps,
		Energy:    energy,
		Structure: record[7],
	}, nil
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
