package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
)

// ResourceSample is one line of a resource metrics file.
type ResourceSample struct {
	Timestamp float64 `json:"timestamp"`
	WorkerCPU float64 `json:"worker_cpu"`
	RedisCPU  float64 `json:"redis_cpu"`
}

// ResourceSummary holds average CPU usage. A nil field means no positive samples.
type ResourceSummary struct {
	AvgWorkerCPU *float64
	AvgRedisCPU  *float64
}

// LoadResourceSamples reads newline-delimited JSON samples. Blank and
// malformed lines are skipped. A missing file returns domain.ErrNotFound.
func LoadResourceSamples(path string) ([]ResourceSample, error) {
	// #nosec G304 -- metrics files are operator supplied
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("op=report.LoadResourceSamples: %w: %s", domain.ErrNotFound, path)
		}
		return nil, fmt.Errorf("op=report.LoadResourceSamples: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadResourceSamples(f)
}

// ReadResourceSamples parses newline-delimited JSON samples from r.
func ReadResourceSamples(r io.Reader) ([]ResourceSample, error) {
	var out []ResourceSample
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var s ResourceSample
		if err := json.Unmarshal(line, &s); err != nil {
			continue
		}
		out = append(out, s)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("op=report.ReadResourceSamples: %w", err)
	}
	return out, nil
}

// SummarizeResources averages the positive CPU readings of each component.
func SummarizeResources(samples []ResourceSample) ResourceSummary {
	var workerSum, redisSum float64
	var workerN, redisN int
	for _, s := range samples {
		if s.WorkerCPU > 0 {
			workerSum += s.WorkerCPU
			workerN++
		}
		if s.RedisCPU > 0 {
			redisSum += s.RedisCPU
			redisN++
		}
	}
	var rs ResourceSummary
	if workerN > 0 {
		v := workerSum / float64(workerN)
		rs.AvgWorkerCPU = &v
	}
	if redisN > 0 {
		v := redisSum / float64(redisN)
		rs.AvgRedisCPU = &v
	}
	return rs
}

// AddResources appends CPU rows for both runs to c.
func AddResources(c *Comparison, baseline, candidate ResourceSummary) {
	c.Rows = append(c.Rows,
		Row{Metric: "Avg Worker CPU", Baseline: percent(baseline.AvgWorkerCPU), Candidate: percent(candidate.AvgWorkerCPU)},
		Row{Metric: "Avg Redis CPU", Baseline: percent(baseline.AvgRedisCPU), Candidate: percent(candidate.AvgRedisCPU)},
	)
}

func percent(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", *v)
}
