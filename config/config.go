package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/spiffcs/forkaudit/internal/constants"
	"github.com/spiffcs/forkaudit/internal/duration"
	"github.com/spiffcs/forkaudit/internal/retry"
)

// Supported output formats
var formats = []interface{}{"table", "json", "markdown"}

var hostPattern = regexp.MustCompile(`^[A-Za-z0-9.-]+(:[0-9]+)?$`)

// Config represents the application configuration.
// API tokens are never read from or written to config files.
type Config struct {
	DefaultFormat string      `yaml:"default_format,omitempty" json:"default_format,omitempty"`
	CIHost        string      `yaml:"ci_host,omitempty" json:"ci_host,omitempty"`
	CircleCIURL   string      `yaml:"circleci_url,omitempty" json:"circleci_url,omitempty"`
	GitHubURL     string      `yaml:"github_url,omitempty" json:"github_url,omitempty"`
	PRLimit       int         `yaml:"pr_limit,omitempty" json:"pr_limit,omitempty"`
	MaxPages      int         `yaml:"max_pages,omitempty" json:"max_pages,omitempty"`
	GraceWindow   string      `yaml:"grace_window,omitempty" json:"grace_window,omitempty"`
	Timeout       string      `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	IgnoreUsers   []string    `yaml:"ignore_users,omitempty" json:"ignore_users,omitempty"`
	Retry         RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty"`

	GitHubToken string `yaml:"-" json:"-"`
	CircleToken string `yaml:"-" json:"-"`
}

// RetryConfig bounds retries of transient network failures.
type RetryConfig struct {
	MaxRetries      *int   `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	InitialInterval string `yaml:"initial_interval,omitempty" json:"initial_interval,omitempty"`
	MaxInterval     string `yaml:"max_interval,omitempty" json:"max_interval,omitempty"`
}

// envOverrides holds the values that may only, or additionally, come from
// the environment.
type envOverrides struct {
	GitHubToken string `env:"GITHUB_TOKEN"`
	CircleToken string `env:"CIRCLE_TOKEN"`
	CIHost      string `env:"FORKAUDIT_CI_HOST"`
	CircleCIURL string `env:"FORKAUDIT_CIRCLECI_URL"`
	GitHubURL   string `env:"FORKAUDIT_GITHUB_URL"`
}

// Defaults
const (
	DefaultFormat  = "table"
	DefaultTimeout = "10m"
	DefaultGrace   = "1h"
)

// DefaultConfigDir returns the default config directory
func DefaultConfigDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ".forkaudit"
	}
	return filepath.Join(configDir, "forkaudit")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// LocalConfigPath returns the path to the local config file in the current directory
func LocalConfigPath() string {
	return ".forkaudit.yaml"
}

// Load loads the configuration from disk and the environment.
// It first loads the global config from the user config directory, then
// merges any local .forkaudit.yaml on top (local values take precedence).
// Environment variables override both.
func Load() (*Config, error) {
	cfg := &Config{}

	globalPath := ConfigPath()
	if _, err := os.Stat(globalPath); err == nil {
		global, err := readFile(globalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load global config file: %w", err)
		}
		cfg = global
	}

	localPath := LocalConfigPath()
	if _, err := os.Stat(localPath); err == nil {
		local, err := readFile(localPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load local config file: %w", err)
		}
		cfg = mergeConfig(cfg, local)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := cleanenv.ReadEnv(&env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	c.GitHubToken = env.GitHubToken
	c.CircleToken = env.CircleToken
	if env.CIHost != "" {
		c.CIHost = env.CIHost
	}
	if env.CircleCIURL != "" {
		c.CircleCIURL = env.CircleCIURL
	}
	if env.GitHubURL != "" {
		c.GitHubURL = env.GitHubURL
	}
	return nil
}

func (c *Config) fillDefaults() {
	if c.DefaultFormat == "" {
		c.DefaultFormat = DefaultFormat
	}
	if c.CIHost == "" {
		c.CIHost = constants.DefaultCIHost
	}
	if c.CircleCIURL == "" {
		c.CircleCIURL = constants.DefaultCircleCIURL
	}
	if c.PRLimit == 0 {
		c.PRLimit = constants.DefaultPRLimit
	}
	if c.MaxPages == 0 {
		c.MaxPages = constants.MaxPRPages
	}
	if c.GraceWindow == "" {
		c.GraceWindow = DefaultGrace
	}
	if c.Timeout == "" {
		c.Timeout = DefaultTimeout
	}
}

// mergeConfig merges local config on top of global config.
// Local values take precedence; unset local values preserve global values.
func mergeConfig(global, local *Config) *Config {
	result := *global

	if local.DefaultFormat != "" {
		result.DefaultFormat = local.DefaultFormat
	}
	if local.CIHost != "" {
		result.CIHost = local.CIHost
	}
	if local.CircleCIURL != "" {
		result.CircleCIURL = local.CircleCIURL
	}
	if local.GitHubURL != "" {
		result.GitHubURL = local.GitHubURL
	}
	if local.PRLimit != 0 {
		result.PRLimit = local.PRLimit
	}
	if local.MaxPages != 0 {
		result.MaxPages = local.MaxPages
	}
	if local.GraceWindow != "" {
		result.GraceWindow = local.GraceWindow
	}
	if local.Timeout != "" {
		result.Timeout = local.Timeout
	}
	// Ignore lists are additive
	if len(local.IgnoreUsers) > 0 {
		result.IgnoreUsers = append(append([]string{}, global.IgnoreUsers...), local.IgnoreUsers...)
	}
	if local.Retry.MaxRetries != nil {
		result.Retry.MaxRetries = local.Retry.MaxRetries
	}
	if local.Retry.InitialInterval != "" {
		result.Retry.InitialInterval = local.Retry.InitialInterval
	}
	if local.Retry.MaxInterval != "" {
		result.Retry.MaxInterval = local.Retry.MaxInterval
	}

	return &result
}

// Validate checks that every configured value is usable.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultFormat, validation.Required, validation.In(formats...)),
		validation.Field(&c.CIHost, validation.Required, validation.Match(hostPattern)),
		validation.Field(&c.CircleCIURL, validation.Required, validation.By(httpURL)),
		validation.Field(&c.GitHubURL, validation.By(httpURL)),
		validation.Field(&c.PRLimit, validation.Min(1), validation.Max(100)),
		validation.Field(&c.MaxPages, validation.Min(1), validation.Max(100)),
		validation.Field(&c.GraceWindow, validation.By(durationString)),
		validation.Field(&c.Timeout, validation.By(durationString)),
		validation.Field(&c.Retry),
	)
}

// Validate implements validation.Validatable.
func (r RetryConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.MaxRetries, validation.Min(0), validation.Max(20)),
		validation.Field(&r.InitialInterval, validation.By(durationString)),
		validation.Field(&r.MaxInterval, validation.By(durationString)),
	)
}

func durationString(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	_, err := duration.Parse(s)
	return err
}

func httpURL(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if !strings.HasPrefix(s, "https://") && !strings.HasPrefix(s, "http://") {
		return errors.New("must be an http(s) URL")
	}
	return nil
}

// Grace returns the merge-correlation tolerance.
func (c *Config) Grace() time.Duration {
	return parseOr(c.GraceWindow, constants.DefaultMergeGrace)
}

// RunTimeout returns the overall deadline for one invocation.
func (c *Config) RunTimeout() time.Duration {
	return parseOr(c.Timeout, 10*time.Minute)
}

// RetryPolicy builds the retry policy shared by the API clients.
func (c *Config) RetryPolicy() retry.Policy {
	b := retry.NewBackoff()
	if c.Retry.MaxRetries != nil {
		if *c.Retry.MaxRetries == 0 {
			return retry.None{}
		}
		b.MaxRetries = uint64(*c.Retry.MaxRetries)
	}
	b.InitialInterval = parseOr(c.Retry.InitialInterval, b.InitialInterval)
	b.MaxInterval = parseOr(c.Retry.MaxInterval, b.MaxInterval)
	return b
}

func parseOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := duration.Parse(s)
	if err != nil {
		return fallback
	}
	return d
}

// Keys lists the settings accepted by Set.
var Keys = []string{
	"default_format", "ci_host", "circleci_url", "github_url",
	"pr_limit", "max_pages", "grace_window", "timeout", "ignore_users",
	"retry.max_retries", "retry.initial_interval", "retry.max_interval",
}

// Set assigns a single setting by its YAML key and validates the result.
// ignore_users takes a comma-separated list.
func (c *Config) Set(key, value string) error {
	updated := *c

	switch key {
	case "default_format":
		updated.DefaultFormat = value
	case "ci_host":
		updated.CIHost = value
	case "circleci_url":
		updated.CircleCIURL = value
	case "github_url":
		updated.GitHubURL = value
	case "pr_limit", "max_pages", "retry.max_retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", key, err)
		}
		switch key {
		case "pr_limit":
			updated.PRLimit = n
		case "max_pages":
			updated.MaxPages = n
		default:
			updated.Retry.MaxRetries = &n
		}
	case "grace_window":
		updated.GraceWindow = value
	case "timeout":
		updated.Timeout = value
	case "ignore_users":
		updated.IgnoreUsers = splitList(value)
	case "retry.initial_interval":
		updated.Retry.InitialInterval = value
	case "retry.max_interval":
		updated.Retry.MaxInterval = value
	default:
		return fmt.Errorf("unknown config key %q (valid keys: %s)", key, strings.Join(Keys, ", "))
	}

	check := updated
	check.fillDefaults()
	if err := check.Validate(); err != nil {
		return err
	}

	*c = updated
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Save saves the configuration to the global config file
func (c *Config) Save() error {
	return c.SaveFile(ConfigPath())
}

// SaveFile writes the configuration as YAML to path
func (c *Config) SaveFile(path string) error {
	content, err := c.ToYAML()
	if err != nil {
		return err
	}
	return SaveTo(path, content)
}

// ReadFile loads a single config file without merging or environment overrides.
// A missing file yields an empty config.
func ReadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}
	return readFile(path)
}

// DefaultConfig returns a fully populated config with all default values.
// This is useful for generating a complete config file template.
func DefaultConfig() *Config {
	maxRetries := retry.DefaultMaxRetries
	return &Config{
		DefaultFormat: DefaultFormat,
		CIHost:        constants.DefaultCIHost,
		CircleCIURL:   constants.DefaultCircleCIURL,
		PRLimit:       constants.DefaultPRLimit,
		MaxPages:      constants.MaxPRPages,
		GraceWindow:   DefaultGrace,
		Timeout:       DefaultTimeout,
		IgnoreUsers:   []string{},
		Retry: RetryConfig{
			MaxRetries:      &maxRetries,
			InitialInterval: retry.DefaultInitialInterval.String(),
			MaxInterval:     retry.DefaultMaxInterval.String(),
		},
	}
}

// ToYAML returns the config as a YAML string
func (c *Config) ToYAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(data), nil
}

// ConfigPathInfo contains information about config file paths
type ConfigPathInfo struct {
	GlobalPath   string
	GlobalExists bool
	LocalPath    string
	LocalExists  bool
}

// GetConfigPaths returns path info for both global and local configs
func GetConfigPaths() ConfigPathInfo {
	globalPath := ConfigPath()
	localPath := LocalConfigPath()

	absLocalPath, err := filepath.Abs(localPath)
	if err != nil {
		absLocalPath = localPath
	}

	_, globalErr := os.Stat(globalPath)
	_, localErr := os.Stat(localPath)

	return ConfigPathInfo{
		GlobalPath:   globalPath,
		GlobalExists: globalErr == nil,
		LocalPath:    absLocalPath,
		LocalExists:  localErr == nil,
	}
}

// MinimalConfig returns a minimal config template with comments
func MinimalConfig() string {
	return `# forkaudit configuration file
# See: forkaudit config defaults  (for all available options)
# Tokens are read from GITHUB_TOKEN and CIRCLE_TOKEN, never from this file.

# Output format: table, json or markdown
default_format: table

# Forked PRs inspected per project
pr_limit: 10

# Status timestamps this close to PR creation or merge are matched
grace_window: 1h

# Skip PRs from these users (optional)
# ignore_users:
#   - dependabot[bot]
#   - renovate[bot]
`
}

// SaveTo writes content to a specific path, creating directories as needed
func SaveTo(path string, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	return nil
}
