package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/STOA-tech/Parcels/config"
)

// csvFile appends records to one CSV file, writing the header once.
type csvFile struct {
	name          string
	f             *os.File
	headerWritten bool
}

func (c *csvFile) write(records any) error {
	if !c.headerWritten {
		if err := gocsv.Marshal(records, c.f); err != nil {
			return fmt.Errorf("writing %s: %w", c.name, err)
		}
		c.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, c.f); err != nil {
		return fmt.Errorf("writing %s: %w", c.name, err)
	}
	return nil
}

// OutputManager handles run output with CSV logging.
type OutputManager struct {
	dir          string
	trajectories *csvFile
	stats        *csvFile
	perf         *csvFile
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	for _, slot := range []struct {
		dst  **csvFile
		name string
	}{
		{&om.trajectories, "trajectories.csv"},
		{&om.stats, "stats.csv"},
		{&om.perf, "perf.csv"},
	} {
		f, err := os.Create(filepath.Join(dir, slot.name))
		if err != nil {
			om.Close()
			return nil, fmt.Errorf("creating %s: %w", slot.name, err)
		}
		*slot.dst = &csvFile{name: slot.name, f: f}
	}
	return om, nil
}

// WriteConfig saves the run configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteTrajectories appends particle positions to trajectories.csv.
func (om *OutputManager) WriteTrajectories(records []TrajectoryRecord) error {
	if om == nil || len(records) == 0 {
		return nil
	}
	return om.trajectories.write(records)
}

// WriteStats appends a step summary to stats.csv.
func (om *OutputManager) WriteStats(s StepStats) error {
	if om == nil {
		return nil
	}
	return om.stats.write([]StepStats{s})
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, step int) error {
	if om == nil {
		return nil
	}
	return om.perf.write([]PerfRecord{stats.Record(step)})
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, c := range []*csvFile{om.trajectories, om.stats, om.perf} {
		if c == nil {
			continue
		}
		if err := c.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
