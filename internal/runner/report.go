package runner

import (
	"fmt"
	"os"
	"time"

	"github.com/vk/ctwgo/internal/ledger"
	"gopkg.in/yaml.v3"
)

// Report summarizes a run.
type Report struct {
	Target    string         `yaml:"target"`
	Classes   int64          `yaml:"classes"`
	Phases    int            `yaml:"phases"`
	Completed bool           `yaml:"completed"`
	Started   time.Time      `yaml:"started"`
	Finished  time.Time      `yaml:"finished"`
	Failures  []FailureEntry `yaml:"failures"`
}

// FailureEntry is the report form of a ledger failure.
type FailureEntry struct {
	Phase    int    `yaml:"phase"`
	Index    int64  `yaml:"index"`
	Class    string `yaml:"class,omitempty"`
	ExitCode int    `yaml:"exit_code"`
	Signal   string `yaml:"signal,omitempty"`
	Message  string `yaml:"message"`
}

func newFailureEntries(failures []ledger.Failure) []FailureEntry {
	entries := make([]FailureEntry, 0, len(failures))
	for _, f := range failures {
		entries = append(entries, FailureEntry{
			Phase:    f.Phase,
			Index:    f.Index,
			Class:    f.Class,
			ExitCode: f.ExitCode,
			Signal:   f.Signal,
			Message:  describeFailure(f),
		})
	}
	return entries
}

// WriteFile stores the report as YAML.
func (r *Report) WriteFile(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// ReadReport loads a report written by WriteFile.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", path, err)
	}
	return &r, nil
}
