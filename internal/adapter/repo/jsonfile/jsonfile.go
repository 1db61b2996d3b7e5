// Package jsonfile persists run summaries as indented JSON documents.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
)

// Repo writes the summary to a single file, replacing it atomically.
type Repo struct {
	Path string
}

var _ domain.SummaryRepository = (*Repo)(nil)

// New creates a Repo writing to path.
func New(path string) *Repo { return &Repo{Path: path} }

// Save writes s to a temporary file in the target directory and renames it into place.
func (r *Repo) Save(ctx context.Context, s domain.ResultSummary) error {
	if r.Path == "" {
		return fmt.Errorf("op=jsonfile.Save: %w: empty path", domain.ErrInvalidArgument)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("op=jsonfile.Save: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("op=jsonfile.Save: %w: %v", domain.ErrInvalidArgument, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(r.Path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(r.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("op=jsonfile.Save: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("op=jsonfile.Save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("op=jsonfile.Save: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("op=jsonfile.Save: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.Path); err != nil {
		return fmt.Errorf("op=jsonfile.Save: %w", err)
	}
	return nil
}

// Load reads a summary written by Save.
func Load(path string) (domain.ResultSummary, error) {
	// #nosec G304 -- result paths are operator supplied
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ResultSummary{}, fmt.Errorf("op=jsonfile.Load: %w: %s", domain.ErrNotFound, path)
		}
		return domain.ResultSummary{}, fmt.Errorf("op=jsonfile.Load: %w", err)
	}
	var s domain.ResultSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.ResultSummary{}, fmt.Errorf("op=jsonfile.Load: %w: %v", domain.ErrInvalidArgument, err)
	}
	return s, nil
}
