// Package config loads the pipeline's YAML configuration and applies
// environment-variable overrides. Only construction-time problems
// (unreadable file, malformed YAML, missing required endpoints) are
// errors; anything tunable has a working default.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where the config file lives unless overridden
// by --config or NEXINTEL_CONFIG.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".nexintel", "config.yaml")
}

// Config is the full application configuration.
type Config struct {
	App     App     `yaml:"app"`
	Logging Logging `yaml:"logging"`
	Store   Store   `yaml:"store"`
	LLM     LLM     `yaml:"llm"`
	Sources Sources `yaml:"sources"`
	Agents  Agents  `yaml:"agents"`

	// TokenizerFile optionally points to a tokenizer.json; when set,
	// token budgets use real subword counts instead of the rough
	// word-count estimate.
	TokenizerFile string `yaml:"tokenizer_file"`
}

type App struct {
	Name string `yaml:"name"`
	Env  string `yaml:"env"`
}

type Logging struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // optional log file path
}

type Store struct {
	DBPath string `yaml:"db_path"`
}

type LLM struct {
	Provider        string `yaml:"provider"` // deepseek, openrouter
	Model           string `yaml:"model"`
	BaseURL         string `yaml:"base_url"`
	TimeoutSecs     int    `yaml:"timeout_secs"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
	// Temperature defaults to 0.2 when absent; an explicit 0 means
	// deterministic sampling.
	Temperature *float64 `yaml:"temperature"`
}

type Sources struct {
	CoinDesk CoinDesk `yaml:"coindesk"`
}

type CoinDesk struct {
	BaseURL           string   `yaml:"base_url"`
	TimeoutSecs       int      `yaml:"timeout_secs"`
	CacheTTLHours     int      `yaml:"cache_ttl_hours"`
	Lang              string   `yaml:"lang"`
	Limit             int      `yaml:"limit"`
	Categories        []string `yaml:"categories"`
	ExcludeCategories []string `yaml:"exclude_categories"`
	SourceIDs         []string `yaml:"source_ids"`
}

type Agents struct {
	NewsDataAgent NewsDataAgent `yaml:"news_data_agent"`
}

type NewsDataAgent struct {
	Name            string      `yaml:"name"`
	Preference      string      `yaml:"preference"`
	MaxObs          int         `yaml:"max_obs"`
	MaxTokensFactor int         `yaml:"max_tokens_factor"`
	Tags            TagsConfig  `yaml:"tags"`
	SplitByTags     SplitByTags `yaml:"split_by_tags"`
}

type TagsConfig struct {
	MaxPerObservation int               `yaml:"max_per_observation"`
	Canonical         []string          `yaml:"canonical"`
	Synonyms          map[string]string `yaml:"synonyms"`
}

type SplitByTags struct {
	// Enabled defaults to true when absent from the file.
	Enabled         *bool           `yaml:"enabled"`
	Priority        []string        `yaml:"priority"`
	FallbackTag     string          `yaml:"fallback_tag"`
	PerFactorLimits PerFactorLimits `yaml:"per_factor_limits"`
}

type PerFactorLimits struct {
	MaxObs          int `yaml:"max_obs"`
	MaxTokensFactor int `yaml:"max_tokens_factor"`
}

// SplitEnabled resolves the tristate Enabled flag (absent = true).
func (s SplitByTags) SplitEnabled() bool {
	if s.Enabled == nil {
		return true
	}
	return *s.Enabled
}

// Load reads the config file at path (or the default location when
// path is empty), applies defaults and env-var overrides, and
// validates. A missing file at the default location is not an error:
// defaults apply.
func Load(path string) (*Config, error) {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		if env := strings.TrimSpace(os.Getenv("NEXINTEL_CONFIG")); env != "" {
			path = env
			explicit = true
		} else {
			path = DefaultConfigPath()
		}
	}

	cfg := &Config{}
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// fall through to defaults
	default:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "nexintel"
	}
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Store.DBPath == "" {
		c.Store.DBPath = "~/.nexintel/nexintel.db"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "deepseek"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "deepseek-chat"
	}
	if c.LLM.TimeoutSecs <= 0 {
		c.LLM.TimeoutSecs = 60
	}
	if c.LLM.MaxOutputTokens <= 0 {
		c.LLM.MaxOutputTokens = 1200
	}
	if c.LLM.Temperature == nil {
		temp := 0.2
		c.LLM.Temperature = &temp
	}

	agent := &c.Agents.NewsDataAgent
	if agent.Name == "" {
		agent.Name = "NewsDataAgent"
	}
	if agent.MaxObs <= 0 {
		agent.MaxObs = 7
	}
	if agent.MaxTokensFactor <= 0 {
		agent.MaxTokensFactor = 4000
	}
	if agent.Tags.MaxPerObservation <= 0 {
		agent.Tags.MaxPerObservation = 3
	}
	if agent.SplitByTags.FallbackTag == "" {
		agent.SplitByTags.FallbackTag = "misc"
	}
	if agent.SplitByTags.PerFactorLimits.MaxObs <= 0 {
		agent.SplitByTags.PerFactorLimits.MaxObs = agent.MaxObs
	}
	if agent.SplitByTags.PerFactorLimits.MaxTokensFactor <= 0 {
		agent.SplitByTags.PerFactorLimits.MaxTokensFactor = agent.MaxTokensFactor
	}

	if c.Sources.CoinDesk.TimeoutSecs <= 0 {
		c.Sources.CoinDesk.TimeoutSecs = 20
	}
	if c.Sources.CoinDesk.CacheTTLHours < 0 {
		c.Sources.CoinDesk.CacheTTLHours = 0
	}
	if c.Sources.CoinDesk.Lang == "" {
		c.Sources.CoinDesk.Lang = "EN"
	}
	if c.Sources.CoinDesk.Limit <= 0 {
		c.Sources.CoinDesk.Limit = 10
	}
}

// applyEnv overrides file values from the environment. API keys are
// read directly by the llm package at provider construction.
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("NEXINTEL_DB")); v != "" {
		c.Store.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv("NEXINTEL_LLM")); v != "" {
		// "provider" or "provider/model"
		if idx := strings.Index(v, "/"); idx > 0 {
			c.LLM.Provider = v[:idx]
			c.LLM.Model = v[idx+1:]
		} else {
			c.LLM.Provider = v
		}
	}
	if v := strings.TrimSpace(os.Getenv("NEXINTEL_ENV")); v != "" {
		c.App.Env = v
	}
}

func (c *Config) validate() error {
	switch strings.ToLower(c.LLM.Provider) {
	case "deepseek", "openrouter":
	default:
		return fmt.Errorf("unknown llm provider %q (supported: deepseek, openrouter)", c.LLM.Provider)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging level %q", c.Logging.Level)
	}
	return nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return path
}
