package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/batsim/internal/cell"
	"github.com/san-kum/batsim/internal/config"
	"github.com/san-kum/batsim/internal/experiment"
	"github.com/san-kum/batsim/internal/stepper"
)

const (
	metadataFile = "metadata.json"
	windowsFile  = "windows.csv"
)

var windowColumns = []string{"time", "current", "voltage", "soc", "temperature", "samples"}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Timestamp   time.Time          `json:"timestamp"`
	Dt          float64            `json:"dt"`
	Duration    float64            `json:"duration"`
	Windows     int                `json:"windows"`
	InitialSOC  float64            `json:"initial_soc"`
	FinalSOC    float64            `json:"final_soc"`
	Bootstrap   string             `json:"bootstrap"`
	Integrator  string             `json:"integrator"`
	Profile     string             `json:"profile"`
	Termination string             `json:"termination"`
	Cell        cell.Parameters    `json:"cell"`
	Metrics     map[string]float64 `json:"metrics"`
}

func (s *Store) Save(cfg *config.Config, res *experiment.Result) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", cfg.Name, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:          runID,
		Name:        cfg.Name,
		Timestamp:   now,
		Dt:          cfg.Run.Dt,
		Duration:    cfg.Run.Duration,
		Windows:     len(res.Records),
		InitialSOC:  cfg.Run.InitialSOC,
		FinalSOC:    res.FinalSOC,
		Bootstrap:   cfg.Run.Bootstrap,
		Integrator:  cfg.Solver.Integrator,
		Profile:     cfg.Profile.Kind,
		Termination: string(res.Termination),
		Cell:        cfg.Cell,
		Metrics:     res.Metrics,
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, windowsFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteCSV(csvFile, res.Records); err != nil {
		return "", err
	}
	return runID, csvFile.Sync()
}

// List returns every readable run, oldest first. Directories without
// valid metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadRecords reads the per-window rows of a run. Duration and discharged
// charge are rebuilt from the run's dt.
func (s *Store) LoadRecords(runID string) ([]stepper.Report, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(s.baseDir, runID, windowsFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(windowColumns)

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	if len(rows) < 2 {
		return []stepper.Report{}, nil
	}

	records := make([]stepper.Report, 0, len(rows)-1)
	for i, row := range rows[1:] {
		var vals [5]float64
		for j := range vals {
			v, err := strconv.ParseFloat(row[j], 64)
			if err != nil {
				return nil, fmt.Errorf("run %s row %d: %w", runID, i+1, err)
			}
			vals[j] = v
		}
		samples, err := strconv.Atoi(row[5])
		if err != nil {
			return nil, fmt.Errorf("run %s row %d: %w", runID, i+1, err)
		}

		records = append(records, stepper.Report{
			Time:            vals[0],
			Duration:        meta.Dt,
			AvgCurrentA:     vals[1],
			AvgVoltageV:     vals[2],
			SOC:             vals[3],
			AvgTemperatureK: vals[4],
			DischargedAh:    vals[1] * meta.Dt / 3600,
			Samples:         samples,
		})
	}
	return records, nil
}
