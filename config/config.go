// Package config loads the qc-runner configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lzap/qctask"
	"github.com/lzap/qctask/log"
	"github.com/lzap/qctask/runner"
)

const (
	TypeMem      = "mem"
	TypeRedis    = "redis"
	TypeSQS      = "sqs"
	TypePostgres = "postgres"

	DefaultTaskName  = "BER"
	DefaultClassName = "tpc.BER"
	DefaultDetector  = "TPC"
	DefaultBinding   = "tpc-sampled-tracks"
	DefaultTable     = "qc_objects"
	DefaultQueue     = "qc-tpc-sampled-tracks"
	DefaultPrefix    = "qc"

	DefaultServiceName = "qc-runner"
)

type Config struct {
	Logging    log.Config      `yaml:"logging"`
	Transport  Transport       `yaml:"transport"`
	Repository Repository      `yaml:"repository"`
	Activity   qctask.Activity `yaml:"activity"`
	Task       Task            `yaml:"task"`
	Metrics    Metrics         `yaml:"metrics"`
}

// Metrics configures the OTLP export of runner metrics. An empty endpoint keeps the metrics
// in process.
type Metrics struct {
	Endpoint        string `yaml:"endpoint"`
	Insecure        bool   `yaml:"insecure"`
	ServiceName     string `yaml:"serviceName"`
	IntervalSeconds int    `yaml:"intervalSeconds"`
}

type Redis struct {
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Queue    string `yaml:"queue"`
	Prefix   string `yaml:"prefix"`
}

type SQS struct {
	Queue                    string `yaml:"queue"`
	Workers                  int    `yaml:"workers"`
	VisibilityTimeoutSeconds int    `yaml:"visibilityTimeoutSeconds"`
	MaxExtensions            int    `yaml:"maxExtensions"`
}

type Transport struct {
	Type   string `yaml:"type"`
	Buffer int    `yaml:"buffer"`
	Redis  Redis  `yaml:"redis"`
	SQS    SQS    `yaml:"sqs"`
}

type Postgres struct {
	URL   string `yaml:"url"`
	Table string `yaml:"table"`
}

type Repository struct {
	Type     string   `yaml:"type"`
	Redis    Redis    `yaml:"redis"`
	Postgres Postgres `yaml:"postgres"`
}

type Task struct {
	Name                 string            `yaml:"name"`
	ClassName            string            `yaml:"className"`
	DetectorName         string            `yaml:"detectorName"`
	CycleDurationSeconds int               `yaml:"cycleDurationSeconds"`
	MaxNumberCycles      int               `yaml:"maxNumberCycles"`
	ResetAfterCycles     int               `yaml:"resetAfterCycles"`
	Bindings             []string          `yaml:"bindings"`
	TaskParameters       map[string]string `yaml:"taskParameters"`
}

// Load reads the file, substitutes ${VAR} references from the environment, applies defaults
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load without the file access.
func Parse(data []byte) (*Config, error) {
	expanded := substituteEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, qctask.ErrInvalidConfig.Context(fmt.Errorf("unable to parse config: %w", err))
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// substituteEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values,
// any other $ is kept as is.
func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if value, ok := os.LookupEnv(groups[1]); ok {
			return value
		}
		return groups[3]
	})
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Logging.Backend == "" {
		c.Logging.Backend = log.BackendStdout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Transport.Type == "" {
		c.Transport.Type = TypeMem
	}
	if c.Transport.Redis.Queue == "" {
		c.Transport.Redis.Queue = DefaultQueue
	}
	if c.Transport.SQS.Queue == "" {
		c.Transport.SQS.Queue = DefaultQueue
	}
	if c.Transport.SQS.Workers == 0 {
		c.Transport.SQS.Workers = 3
	}
	if c.Transport.SQS.VisibilityTimeoutSeconds == 0 {
		c.Transport.SQS.VisibilityTimeoutSeconds = 30
	}
	if c.Transport.SQS.MaxExtensions == 0 {
		c.Transport.SQS.MaxExtensions = 3
	}
	if c.Repository.Type == "" {
		c.Repository.Type = TypeMem
	}
	if c.Repository.Redis.Prefix == "" {
		c.Repository.Redis.Prefix = DefaultPrefix
	}
	if c.Repository.Postgres.Table == "" {
		c.Repository.Postgres.Table = DefaultTable
	}
	if c.Task.Name == "" {
		c.Task.Name = DefaultTaskName
	}
	if c.Task.ClassName == "" {
		c.Task.ClassName = DefaultClassName
	}
	if c.Task.DetectorName == "" {
		c.Task.DetectorName = DefaultDetector
	}
	if c.Task.CycleDurationSeconds == 0 {
		c.Task.CycleDurationSeconds = 10
	}
	if len(c.Task.Bindings) == 0 {
		c.Task.Bindings = []string{DefaultBinding}
	}
	if c.Metrics.ServiceName == "" {
		c.Metrics.ServiceName = DefaultServiceName
	}
	if c.Metrics.IntervalSeconds == 0 {
		c.Metrics.IntervalSeconds = 10
	}
}

func (c *Config) Validate() error {
	switch c.Transport.Type {
	case TypeMem, TypeRedis:
	case TypeSQS:
		if c.Transport.SQS.VisibilityTimeoutSeconds <= 10 {
			return qctask.ErrInvalidConfig.Context(errors.New("sqs visibility timeout must be longer than 10 seconds"))
		}
	default:
		return qctask.ErrInvalidConfig.Context(fmt.Errorf("unknown transport type %q", c.Transport.Type))
	}

	switch c.Repository.Type {
	case TypeMem, TypeRedis:
	case TypePostgres:
		if c.Repository.Postgres.URL == "" {
			return qctask.ErrInvalidConfig.Context(errors.New("postgres repository requires an url"))
		}
	default:
		return qctask.ErrInvalidConfig.Context(fmt.Errorf("unknown repository type %q", c.Repository.Type))
	}

	if c.Metrics.IntervalSeconds < 0 {
		return qctask.ErrInvalidConfig.Context(errors.New("metrics interval must not be negative"))
	}

	return c.Runner().Validate()
}

// Runner returns the scheduling configuration of the task.
func (c *Config) Runner() runner.Config {
	return runner.Config{
		TaskName:         c.Task.Name,
		Detector:         c.Task.DetectorName,
		CycleDuration:    time.Duration(c.Task.CycleDurationSeconds) * time.Second,
		MaxNumberCycles:  c.Task.MaxNumberCycles,
		ResetAfterCycles: c.Task.ResetAfterCycles,
		Bindings:         c.Task.Bindings,
		CustomParameters: c.Task.TaskParameters,
	}
}
