package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario describes the load shape of a run. Zero-valued fields leave the
// environment configuration untouched.
//
// Example scenario.yaml:
//
//	queue_kind: pq
//	users: 50
//	spawn_rate: 5
//	run_time: 5m
//	wait: {min: 1s, max: 1s}
//	weights: {short: 5, long: 5, check: 3}
//	drain_max_wait: 2m
type Scenario struct {
	QueueKind    string        `yaml:"queue_kind"`
	Users        int           `yaml:"users"`
	SpawnRate    float64       `yaml:"spawn_rate"`
	RunTime      time.Duration `yaml:"run_time"`
	Wait         ScenarioWait  `yaml:"wait"`
	Weights      *Weights      `yaml:"weights"`
	DrainMaxWait time.Duration `yaml:"drain_max_wait"`
	ResultPath   string        `yaml:"result_path"`
}

// ScenarioWait is the per-user pause between actions.
type ScenarioWait struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

// Weights are the relative frequencies of the virtual-user actions.
type Weights struct {
	Short int `yaml:"short"`
	Long  int `yaml:"long"`
	Check int `yaml:"check"`
}

// LoadScenario reads a scenario YAML file.
func LoadScenario(path string) (Scenario, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("failed to get absolute path: %w", err)
	}
	// #nosec G304 -- scenario files are operator supplied
	content, err := os.ReadFile(absPath)
	if err != nil {
		return Scenario{}, fmt.Errorf("failed to read scenario file: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(content, &sc); err != nil {
		return Scenario{}, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}
	return sc, nil
}

// Apply overlays the non-zero scenario fields onto cfg.
func (s Scenario) Apply(cfg Config) Config {
	if s.QueueKind != "" {
		cfg.QueueKind = s.QueueKind
	}
	if s.Users > 0 {
		cfg.Users = s.Users
	}
	if s.SpawnRate > 0 {
		cfg.SpawnRate = s.SpawnRate
	}
	if s.RunTime > 0 {
		cfg.RunTime = s.RunTime
	}
	if s.Wait.Min > 0 {
		cfg.WaitMin = s.Wait.Min
	}
	if s.Wait.Max > 0 {
		cfg.WaitMax = s.Wait.Max
	}
	if s.Weights != nil {
		cfg.WeightShort = s.Weights.Short
		cfg.WeightLong = s.Weights.Long
		cfg.WeightCheck = s.Weights.Check
	}
	if s.DrainMaxWait > 0 {
		cfg.DrainMaxWait = s.DrainMaxWait
	}
	if s.ResultPath != "" {
		cfg.ResultPath = s.ResultPath
	}
	return cfg
}
