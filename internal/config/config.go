// Package config resolves runtime settings for the myimpact client. Values are
// layered: built-in defaults, an optional YAML file, an optional .env file and
// finally process environment variables. Command line flags are applied by the
// caller on top of the result.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DevelopmentBaseURL = "http://localhost:8000"

	DefaultEnvFile = ".env"
)

// Environment variable names.
const (
	KeyAPIBaseURL      = "MYIMPACT_API_BASE_URL"
	KeyEnv             = "MYIMPACT_ENV"
	KeyTimeout         = "MYIMPACT_TIMEOUT"
	KeyMetadataTimeout = "MYIMPACT_METADATA_TIMEOUT"
	KeyLogLevel        = "MYIMPACT_LOG_LEVEL"
	KeyLogFormat       = "MYIMPACT_LOG_FORMAT"
)

// Config holds every tunable of a client session.
type Config struct {
	Env             string        `yaml:"env"`
	APIBaseURL      string        `yaml:"api_base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	MetadataTimeout time.Duration `yaml:"metadata_timeout"`
	HealthTimeout   time.Duration `yaml:"health_timeout"`
	MetadataRetries int           `yaml:"metadata_retries"`
	Log             LogConfig     `yaml:"log"`
	Defaults        FormDefaults  `yaml:"defaults"`
}

// LogConfig selects the zap logger flavour.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// FormDefaults are the values restored by a form reset.
type FormDefaults struct {
	GrowthIntensity string `yaml:"growth_intensity"`
	GoalStyle       string `yaml:"goal_style"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Env:             EnvDevelopment,
		Timeout:         30 * time.Second,
		MetadataTimeout: 5 * time.Second,
		HealthTimeout:   3 * time.Second,
		MetadataRetries: 2,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Defaults: FormDefaults{
			GrowthIntensity: "moderate",
			GoalStyle:       "independent",
		},
	}
}

// LoadOptions controls where Load looks for settings.
type LoadOptions struct {
	// Path is an optional YAML file. A missing file is an error.
	Path string
	// EnvFile is an optional dotenv file. A missing file is ignored.
	EnvFile string
	// Lookup replaces os.LookupEnv, mainly for tests.
	Lookup func(string) (string, bool)
}

// Load layers the configured sources and validates the result.
func Load(opts LoadOptions) (Config, error) {
	cfg := Default()

	if opts.Path != "" {
		data, err := os.ReadFile(opts.Path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", opts.Path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", opts.Path, err)
		}
	}

	dotenv := map[string]string{}
	if opts.EnvFile != "" {
		values, err := godotenv.Read(opts.EnvFile)
		switch {
		case err == nil:
			dotenv = values
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("config: read %s: %w", opts.EnvFile, err)
		}
	}

	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(dotenv[key])
	}

	if err := cfg.applyEnv(get); err != nil {
		return Config{}, err
	}
	if err := cfg.Resolve(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(get func(string) string) error {
	if v := get(KeyEnv); v != "" {
		c.Env = v
	}
	if v := get(KeyAPIBaseURL); v != "" {
		c.APIBaseURL = v
	}
	if v := get(KeyLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := get(KeyLogFormat); v != "" {
		c.Log.Format = v
	}
	if v := get(KeyTimeout); v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", KeyTimeout, err)
		}
		c.Timeout = d
	}
	if v := get(KeyMetadataTimeout); v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", KeyMetadataTimeout, err)
		}
		c.MetadataTimeout = d
	}
	return nil
}

// Resolve fills derived values and validates the configuration. Outside the
// development environment the API base URL must be explicit.
func (c *Config) Resolve() error {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env == "" {
		c.Env = EnvDevelopment
	}
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		if c.Env != EnvDevelopment {
			return fmt.Errorf("config: %s is required in the %s environment", KeyAPIBaseURL, c.Env)
		}
		c.APIBaseURL = DevelopmentBaseURL
	}
	parsed, err := url.Parse(c.APIBaseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("config: invalid API base URL %q", c.APIBaseURL)
	}
	if c.Timeout <= 0 || c.MetadataTimeout <= 0 || c.HealthTimeout <= 0 {
		return errors.New("config: timeouts must be positive")
	}
	if c.MetadataRetries < 0 {
		return errors.New("config: metadata_retries must not be negative")
	}
	return nil
}

// ParseDuration accepts Go duration strings ("5s") or a bare number of
// milliseconds ("5000").
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(raw)
}
