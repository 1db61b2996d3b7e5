// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/queue-latency-bench/internal/domain"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	// LogLevel overrides the environment default (debug in dev, info elsewhere).
	LogLevel string `env:"LOG_LEVEL" envDefault:"" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`

	// Target API under test
	TargetBaseURL     string        `env:"TARGET_BASE_URL" envDefault:"http://localhost:8080" validate:"required,url"`
	QueueKind         string        `env:"QUEUE_KIND" envDefault:"fifo" validate:"oneof=fifo pq"`
	HTTPClientTimeout time.Duration `env:"HTTP_CLIENT_TIMEOUT" envDefault:"5s" validate:"gt=0"`
	// TargetHealthPath is probed before the load phase starts; empty disables the probe.
	TargetHealthPath   string        `env:"TARGET_HEALTH_PATH" envDefault:""`
	TargetReadyTimeout time.Duration `env:"TARGET_READY_TIMEOUT" envDefault:"30s"`
	// ClientTaskIDs makes the harness send its own task ids for idempotent submission.
	ClientTaskIDs bool `env:"CLIENT_TASK_IDS" envDefault:"false"`

	// Load shape; may be overridden by SCENARIO_FILE
	ScenarioFile string        `env:"SCENARIO_FILE" envDefault:""`
	Users        int           `env:"USERS" envDefault:"10" validate:"gte=1"`
	SpawnRate    float64       `env:"SPAWN_RATE" envDefault:"2" validate:"gt=0"`
	RunTime      time.Duration `env:"RUN_TIME" envDefault:"60s" validate:"gt=0"`
	WaitMin      time.Duration `env:"WAIT_MIN" envDefault:"1s" validate:"gte=0"`
	WaitMax      time.Duration `env:"WAIT_MAX" envDefault:"1s" validate:"gtefield=WaitMin"`
	WeightShort  int           `env:"WEIGHT_SHORT" envDefault:"5" validate:"gte=0"`
	WeightLong   int           `env:"WEIGHT_LONG" envDefault:"5" validate:"gte=0"`
	WeightCheck  int           `env:"WEIGHT_CHECK" envDefault:"3" validate:"gte=0"`

	// Drain phase
	DrainMaxWait       time.Duration `env:"DRAIN_MAX_WAIT" envDefault:"120s" validate:"gte=0"`
	DrainInterval      time.Duration `env:"DRAIN_INTERVAL" envDefault:"1s" validate:"gte=0"`
	DrainProgressEvery int           `env:"DRAIN_PROGRESS_EVERY" envDefault:"100" validate:"gte=1"`

	// Result persistence
	ResultPath   string   `env:"RESULT_PATH" envDefault:"experiment_results.json" validate:"required"`
	ResultsDBURL string   `env:"RESULTS_DB_URL" envDefault:""`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	ResultsTopic string   `env:"RESULTS_TOPIC" envDefault:"loadtest-results"`

	// Status server; empty address disables it
	StatusAddr       string `env:"STATUS_ADDR" envDefault:":9090"`
	CORSAllowOrigins string `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`

	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"queue-latency-bench"`

	// Stub target API
	StubPort        int    `env:"STUB_PORT" envDefault:"8080"`
	RedisURL        string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	StubShortChecks int    `env:"STUB_SHORT_CHECKS" envDefault:"2" validate:"gte=0"`
	StubLongChecks  int    `env:"STUB_LONG_CHECKS" envDefault:"5" validate:"gte=0"`
	RateLimitPerMin int    `env:"RATE_LIMIT_PER_MIN" envDefault:"0" validate:"gte=0"`
}

// Load parses environment variables into a Config, applies the scenario file
// when one is configured, and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	if cfg.ScenarioFile != "" {
		sc, err := LoadScenario(cfg.ScenarioFile)
		if err != nil {
			return Config{}, fmt.Errorf("op=config.Load: %w", err)
		}
		cfg = sc.Apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and cross-field rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	if c.WeightShort+c.WeightLong+c.WeightCheck == 0 {
		return fmt.Errorf("%w: at least one action weight must be positive", domain.ErrInvalidArgument)
	}
	return nil
}

// Queue returns the configured queue kind.
func (c Config) Queue() domain.QueueKind { return domain.QueueKind(c.QueueKind) }

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }

// StubCompleteAfter maps job categories to the number of status reads after
// which the stub target reports success.
func (c Config) StubCompleteAfter() map[domain.JobCategory]int {
	return map[domain.JobCategory]int{
		domain.JobShort: c.StubShortChecks,
		domain.JobLong:  c.StubLongChecks,
	}
}

// GetSaveBackoffConfig returns the retry envelope used when persisting results.
// In test environments, uses much shorter timeouts for faster test execution.
func (c Config) GetSaveBackoffConfig() (maxElapsedTime, initialInterval, maxInterval time.Duration, multiplier float64) {
	if c.IsTest() {
		return 500 * time.Millisecond, 10 * time.Millisecond, 100 * time.Millisecond, 2.0
	}
	return 30 * time.Second, 500 * time.Millisecond, 5 * time.Second, 1.5
}
