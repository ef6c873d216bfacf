package storage

import (
	"encoding/json"
	"errors"

	"foldsim/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeTrials(trials []model.TrialRecord) ([]byte, error) {
	return json.Marshal(trials)
}

func DecodeTrials(data []byte) ([]model.TrialRecord, error) {
	var trials []model.TrialRecord
	if err := json.Unmarshal(data, &trials); err != nil {
		return nil, err
	}
	for _, trial := range trials {
		if err := checkVersion(trial.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return trials, nil
}

func EncodeTrajectory(t model.Trajectory) ([]byte, error) {
	return json.Marshal(t)
}

func DecodeTrajectory(data []byte) (model.Trajectory, error) {
	var trajectory model.Trajectory
	if err := json.Unmarshal(data, &trajectory); err != nil {
		return model.Trajectory{}, err
	}
	if err := checkVersion(trajectory.VersionedRecord); err != nil {
		return model.Trajectory{}, err
	}
	return trajectory, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
