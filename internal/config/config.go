// Package config loads webpilot settings.
//
// Precedence, lowest first: Default, an optional YAML file, then environment
// variables named WEBPILOT_<SECTION>_<FIELD> (for example
// WEBPILOT_BROWSER_HEADLESS=false). CAPTCHA_API_KEY is honored as an alias
// for WEBPILOT_CAPTCHA_API_KEY.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WEBPILOT"

// Config is the complete configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" env:"SERVER"`
	Browser   BrowserConfig   `yaml:"browser" env:"BROWSER"`
	Resolver  ResolverConfig  `yaml:"resolver" env:"RESOLVER"`
	Executor  ExecutorConfig  `yaml:"executor" env:"EXECUTOR"`
	Captcha   CaptchaConfig   `yaml:"captcha" env:"CAPTCHA"`
	Artifacts ArtifactsConfig `yaml:"artifacts" env:"ARTIFACTS"`
	Metrics   MetricsConfig   `yaml:"metrics" env:"METRICS"`
	Log       LogConfig       `yaml:"log" env:"LOG"`
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// RateLimit is the sustained /interact rate per second. Zero disables
	// limiting.
	RateLimit float64 `yaml:"rate_limit" env:"RATE_LIMIT"`
	RateBurst int     `yaml:"rate_burst" env:"RATE_BURST"`
}

// BrowserConfig configures the browser session.
type BrowserConfig struct {
	Headless   bool          `yaml:"headless" env:"HEADLESS"`
	NoSandbox  bool          `yaml:"no_sandbox" env:"NO_SANDBOX"`
	SlowMo     time.Duration `yaml:"slow_mo" env:"SLOW_MO"`
	Width      int           `yaml:"width" env:"WIDTH"`
	Height     int           `yaml:"height" env:"HEIGHT"`
	UserAgent  string        `yaml:"user_agent" env:"USER_AGENT"`
	BinPath    string        `yaml:"bin_path" env:"BIN_PATH"`
	ControlURL string        `yaml:"control_url" env:"CONTROL_URL"`
}

// ResolverConfig holds element lookup budgets.
type ResolverConfig struct {
	Timeout         time.Duration `yaml:"timeout" env:"TIMEOUT"`
	FallbackTimeout time.Duration `yaml:"fallback_timeout" env:"FALLBACK_TIMEOUT"`
	AssocTimeout    time.Duration `yaml:"assoc_timeout" env:"ASSOC_TIMEOUT"`
	ProbeTimeout    time.Duration `yaml:"probe_timeout" env:"PROBE_TIMEOUT"`
}

// ExecutorConfig holds action timing.
type ExecutorConfig struct {
	TypeDelay             time.Duration `yaml:"type_delay" env:"TYPE_DELAY"`
	NavigationTimeout     time.Duration `yaml:"navigation_timeout" env:"NAVIGATION_TIMEOUT"`
	SettleTimeout         time.Duration `yaml:"settle_timeout" env:"SETTLE_TIMEOUT"`
	WaitForElementTimeout time.Duration `yaml:"wait_for_element_timeout" env:"WAIT_FOR_ELEMENT_TIMEOUT"`
}

// CaptchaConfig configures challenge handling.
type CaptchaConfig struct {
	// AutoCheck runs detection after every page-changing action. Off by
	// default: a page that only loads a challenge script reads as present
	// until the poll ceiling.
	AutoCheck    bool          `yaml:"auto_check" env:"AUTO_CHECK"`
	APIKey       string        `yaml:"api_key" env:"API_KEY"`
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	MaxPolls     int           `yaml:"max_polls" env:"MAX_POLLS"`
}

// ArtifactsConfig configures where diagnostic files go. An empty Dir disables
// them.
type ArtifactsConfig struct {
	Dir string `yaml:"dir" env:"DIR"`
}

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// LogConfig configures the logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format is json or console.
	Format string `yaml:"format" env:"FORMAT"`
}

// Load reads path (skipped when empty or missing) and applies environment
// overrides on top of Default. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}
	if err := loadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func loadEnv(cfg *Config) error {
	if err := setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), EnvPrefix); err != nil {
		return err
	}
	if cfg.Captcha.APIKey == "" {
		cfg.Captcha.APIKey = os.Getenv("CAPTCHA_API_KEY")
	}
	return nil
}

func setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		tag := t.Field(i).Tag.Get("env")
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + "_" + tag

		if field.Kind() == reflect.Struct {
			if err := setFieldsFromEnv(field, key); err != nil {
				return err
			}
			continue
		}

		value, ok := os.LookupEnv(key)
		if !ok || value == "" {
			continue
		}
		if err := setField(field, value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}

// Validate rejects settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server.rate_limit must not be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		errs = append(errs, "server.rate_burst must be at least 1 when rate limiting")
	}
	if c.Browser.Width <= 0 || c.Browser.Height <= 0 {
		errs = append(errs, "browser viewport must be positive")
	}
	if c.Browser.SlowMo < 0 {
		errs = append(errs, "browser.slow_mo must not be negative")
	}
	for name, d := range map[string]time.Duration{
		"resolver.timeout":                  c.Resolver.Timeout,
		"resolver.fallback_timeout":         c.Resolver.FallbackTimeout,
		"resolver.assoc_timeout":            c.Resolver.AssocTimeout,
		"resolver.probe_timeout":            c.Resolver.ProbeTimeout,
		"executor.navigation_timeout":       c.Executor.NavigationTimeout,
		"executor.settle_timeout":           c.Executor.SettleTimeout,
		"executor.wait_for_element_timeout": c.Executor.WaitForElementTimeout,
		"captcha.poll_interval":             c.Captcha.PollInterval,
	} {
		if d <= 0 {
			errs = append(errs, name+" must be positive")
		}
	}
	if c.Executor.TypeDelay < 0 {
		errs = append(errs, "executor.type_delay must not be negative")
	}
	if c.Captcha.MaxPolls <= 0 {
		errs = append(errs, "captcha.max_polls must be positive")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q must be json or console", c.Log.Format))
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
