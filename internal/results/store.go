// Package results persists sealed experiment results as JSON documents on
// disk. One file per run, named so that a directory listing reads as a
// ledger: task, model, completion time, and a short run identifier.
package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ahrav/go-benchy/internal/domain"
	"github.com/ahrav/go-benchy/internal/scoring"
)

// Store errors.
var (
	// ErrNilResult indicates a save of a record without a result.
	ErrNilResult = errors.New("result must not be nil")

	// ErrUnsealedResult indicates a result that was never sealed; the store
	// persists immutable snapshots only.
	ErrUnsealedResult = errors.New("result must be sealed before persisting")
)

// Record is the persisted envelope: the sealed run result plus the optional
// evaluation produced by scoring it.
type Record struct {
	Result     *domain.ExperimentResult `json:"result"`
	Evaluation *scoring.Evaluation      `json:"evaluation,omitempty"`
}

// Store writes result records under a base directory, creating it on demand.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory does not need to
// exist yet; the first save creates it.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store's base directory.
func (s *Store) Dir() string { return s.dir }

// SaveResult persists one record as indented JSON and returns the path of
// the written file. Files are named
// <task>_<model-slug>_<timestamp>_<run-id-prefix>.json; the model slug
// replaces slashes, colons, and dots with dashes so any model identifier
// yields a portable filename, and the run-id prefix keeps samples of the
// same task and model from colliding.
func (s *Store) SaveResult(record Record) (string, error) {
	if record.Result == nil {
		return "", ErrNilResult
	}
	if !record.Result.Sealed() {
		return "", ErrUnsealedResult
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create results directory: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result record: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(s.dir, filename(record.Result))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write result record: %w", err)
	}
	return path, nil
}

// SaveSuite persists every record of a suite and returns the written paths
// in record order. It stops at the first failure; records already written
// stay on disk.
func (s *Store) SaveSuite(records []Record) ([]string, error) {
	paths := make([]string, 0, len(records))
	for i, record := range records {
		path, err := s.SaveResult(record)
		if err != nil {
			return paths, fmt.Errorf("record %d: %w", i, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// filename derives the record's filename from the sealed result.
func filename(result *domain.ExperimentResult) string {
	completed := result.CompletedAt
	if completed.IsZero() {
		completed = time.Now()
	}

	task := slugify(result.Task)
	if task == "" {
		task = "task"
	}
	model := slugify(result.Model)
	if model == "" {
		model = "model"
	}

	return fmt.Sprintf("%s_%s_%s_%s.json",
		task,
		model,
		completed.UTC().Format("20060102T150405Z"),
		runIDPrefix(result.ExperimentID),
	)
}

// slugify maps an identifier onto filename-safe characters. Separator
// characters that appear in model identifiers (slashes, colons, dots) and
// anything else exotic become dashes; runs of dashes collapse.
func slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastDash := false
	for _, r := range s {
		safe := r == '-' || r == '_' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if safe {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// runIDPrefix shortens the experiment identifier for filename use.
func runIDPrefix(id string) string {
	id = slugify(id)
	if id == "" {
		return "run"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
