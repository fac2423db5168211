package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Stage store drivers.
const (
	StageDriverS3     = "s3"
	StageDriverValkey = "valkey"
	StageDriverFS     = "fs"
)

// Config holds the idxmigrate configuration.
type Config struct {
	Source    ServiceConfig   `yaml:"source"`
	Target    ServiceConfig   `yaml:"target"`
	Stage     StageConfig     `yaml:"stage"`
	Migration MigrationConfig `yaml:"migration"`
	Verify    VerifyConfig    `yaml:"verify"`
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServiceConfig identifies one search service and its admin key.
type ServiceConfig struct {
	Name       string `yaml:"name"`
	APIKey     string `yaml:"api_key"`
	Endpoint   string `yaml:"endpoint"` // overrides https://<name>.search.windows.net
	APIVersion string `yaml:"api_version"`
	TimeoutSec int    `yaml:"timeout_sec"` // 0 = transport default
}

// StageConfig selects and configures the durable staging store.
type StageConfig struct {
	Driver        string `yaml:"driver"` // s3, valkey, fs (default: fs)
	Container     string `yaml:"container"`
	PersistSchema bool   `yaml:"persist_schema"`

	// s3
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`

	// valkey
	Addrs     []string `yaml:"addrs"`
	Password  string   `yaml:"password"`
	KeyPrefix string   `yaml:"key_prefix"`
	TTLHours  int      `yaml:"ttl_hours"` // 0 = no expiry

	// fs
	Dir string `yaml:"dir"`
}

// MigrationConfig holds pipeline tuning.
type MigrationConfig struct {
	MaxBatchSize          int    `yaml:"max_batch_size"`
	ParallelJobs          int    `yaml:"parallel_jobs"`
	SynonymMap            string `yaml:"synonym_map"`
	RequireCompleteExport bool   `yaml:"require_complete_export"`
	StopImportOnError     bool   `yaml:"stop_import_on_error"`
}

// VerifyConfig controls post-import reconciliation polling.
type VerifyConfig struct {
	SettleSec       int `yaml:"settle_sec"`
	PollIntervalSec int `yaml:"poll_interval_sec"`
	StablePolls     int `yaml:"stable_polls"`
	TimeoutSec      int `yaml:"timeout_sec"`
}

// HTTPConfig holds trigger server settings (serve mode only).
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// AuthConfig holds trigger API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML bytes, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	for _, s := range []*ServiceConfig{&c.Source, &c.Target} {
		if s.APIVersion == "" {
			s.APIVersion = "2020-06-30"
		}
	}
	if c.Stage.Driver == "" {
		c.Stage.Driver = StageDriverFS
	}
	if c.Stage.Container == "" {
		c.Stage.Container = "idxmigrate"
	}
	if c.Stage.Driver == StageDriverFS && c.Stage.Dir == "" {
		c.Stage.Dir = "stage"
	}
	if c.Stage.Driver == StageDriverValkey && c.Stage.KeyPrefix == "" {
		c.Stage.KeyPrefix = "idxmigrate:"
	}
	if c.Migration.MaxBatchSize <= 0 {
		c.Migration.MaxBatchSize = 500
	}
	if c.Migration.ParallelJobs <= 0 {
		c.Migration.ParallelJobs = 10
	}
	if c.Migration.SynonymMap == "" {
		c.Migration.SynonymMap = "synonym-map"
	}
	if c.Verify.PollIntervalSec <= 0 {
		c.Verify.PollIntervalSec = 2
	}
	if c.Verify.StablePolls <= 0 {
		c.Verify.StablePolls = 3
	}
	if c.Verify.TimeoutSec <= 0 {
		c.Verify.TimeoutSec = 120
	}
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if err := c.Source.validate("source"); err != nil {
		return err
	}
	if err := c.Target.validate("target"); err != nil {
		return err
	}
	if c.Migration.MaxBatchSize > 1000 {
		return fmt.Errorf("migration.max_batch_size must be at most 1000, got %d", c.Migration.MaxBatchSize)
	}
	switch c.Stage.Driver {
	case StageDriverS3:
		if c.Stage.Endpoint == "" {
			return fmt.Errorf("stage.endpoint is required for driver %q", c.Stage.Driver)
		}
	case StageDriverValkey:
		if len(c.Stage.Addrs) == 0 {
			return fmt.Errorf("stage.addrs is required for driver %q", c.Stage.Driver)
		}
	case StageDriverFS:
		// ok
	default:
		return fmt.Errorf("stage.driver must be one of s3, valkey, fs, got %q", c.Stage.Driver)
	}
	if c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	return nil
}

func (s *ServiceConfig) validate(section string) error {
	if s.Name == "" && s.Endpoint == "" {
		return fmt.Errorf("%s.name or %s.endpoint is required", section, section)
	}
	if s.APIKey == "" {
		return fmt.Errorf("%s.api_key is required", section)
	}
	return nil
}

// BaseURL returns the service root URL.
func (s *ServiceConfig) BaseURL() string {
	if s.Endpoint != "" {
		return strings.TrimRight(s.Endpoint, "/")
	}
	return "https://" + s.Name + ".search.windows.net"
}

// Timeout returns the per-request timeout, zero meaning none.
func (s *ServiceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
