package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// weightEpsilon bounds the float drift tolerated when checking that the
// scoring weights sum to 1.0.
const weightEpsilon = 1e-9

// ErrInvalid wraps every configuration validation failure. Configuration
// problems are fatal at startup; a run never begins with a bad config.
var ErrInvalid = errors.New("invalid configuration")

// Config is the immutable per-run configuration handed to the pipeline
// driver. It is unmarshalled from jobradar.yaml by the cli.
type Config struct {
	DataDir  string          `mapstructure:"data-dir"`
	Sources  *SourcesConfig  `mapstructure:"sources"`
	Scoring  *ScoringConfig  `mapstructure:"scoring"`
	Oracle   *OracleConfig   `mapstructure:"oracle"`
	Profile  *ProfileConfig  `mapstructure:"profile"`
	Notify   *NotifyConfig   `mapstructure:"notify"`
}

// SourcesConfig controls which job boards are fetched and how politely.
type SourcesConfig struct {
	Enabled           []string      `mapstructure:"enabled"`
	Keywords          []string      `mapstructure:"keywords"`
	MaxPerSource      int           `mapstructure:"max-per-source"`
	RequestsPerSecond float64       `mapstructure:"requests-per-second"`
	Burst             int           `mapstructure:"burst"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// ScoringConfig holds the weights and thresholds for the combine and
// filter stage. Weights must sum to 1.0.
type ScoringConfig struct {
	RelevanceWeight float64 `mapstructure:"relevance-weight"`
	MatchWeight     float64 `mapstructure:"match-weight"`
	MinRelevance    int     `mapstructure:"min-relevance"`
	MinCombined     float64 `mapstructure:"min-combined"`
	Concurrency     int     `mapstructure:"concurrency"`
}

// OracleConfig selects and tunes the scoring oracle provider.
type OracleConfig struct {
	Provider          string        `mapstructure:"provider"`
	MaxRetries        int           `mapstructure:"max-retries"`
	RequestsPerMinute float64       `mapstructure:"requests-per-minute"`
	Ollama            *OllamaConfig `mapstructure:"ollama"`
	Gemini            *GeminiConfig `mapstructure:"gemini"`
}

// OllamaConfig points at a local inference engine.
type OllamaConfig struct {
	URL     string        `mapstructure:"url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// GeminiConfig configures the hosted provider alternative.
type GeminiConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
}

// ProfileConfig describes the candidate: explicit skills plus an optional
// resume text file to mine for more.
type ProfileConfig struct {
	ResumeFile string   `mapstructure:"resume-file"`
	Skills     []string `mapstructure:"skills"`
}

// NotifyConfig configures the email digest.
type NotifyConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	SMTPHost     string `mapstructure:"smtp-host"`
	SMTPPort     int    `mapstructure:"smtp-port"`
	From         string `mapstructure:"from"`
	To           string `mapstructure:"to"`
	PasswordFile string `mapstructure:"password-file"`
}

// ApplyDefaults fills optional settings the config file may omit.
func (c *Config) ApplyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.Sources == nil {
		c.Sources = &SourcesConfig{}
	}
	if c.Sources.MaxPerSource <= 0 {
		c.Sources.MaxPerSource = 50
	}
	if c.Sources.RequestsPerSecond <= 0 {
		c.Sources.RequestsPerSecond = 1.0
	}
	if c.Sources.Burst <= 0 {
		c.Sources.Burst = 2
	}
	if c.Sources.Timeout <= 0 {
		c.Sources.Timeout = 2 * time.Minute
	}
	if c.Oracle == nil {
		c.Oracle = &OracleConfig{}
	}
	if c.Oracle.Provider == "" {
		c.Oracle.Provider = "ollama"
	}
	if c.Oracle.MaxRetries <= 0 {
		c.Oracle.MaxRetries = 3
	}
	if c.Oracle.RequestsPerMinute <= 0 {
		c.Oracle.RequestsPerMinute = 30
	}
	if c.Oracle.Ollama == nil {
		c.Oracle.Ollama = &OllamaConfig{}
	}
	if c.Oracle.Ollama.URL == "" {
		c.Oracle.Ollama.URL = "http://127.0.0.1:11434"
	}
	if c.Oracle.Ollama.Model == "" {
		c.Oracle.Ollama.Model = "llama3"
	}
	if c.Oracle.Ollama.Timeout <= 0 {
		c.Oracle.Ollama.Timeout = 90 * time.Second
	}
	if c.Scoring != nil && c.Scoring.Concurrency <= 0 {
		c.Scoring.Concurrency = 2
	}
	if c.Profile == nil {
		c.Profile = &ProfileConfig{}
	}
	if c.Notify == nil {
		c.Notify = &NotifyConfig{}
	}
}

// Validate rejects configurations that must never start a run: missing
// thresholds, weights that do not sum to 1.0, no sources enabled.
func (c *Config) Validate() error {
	if c.Scoring == nil {
		return fmt.Errorf("%w: scoring section is required", ErrInvalid)
	}

	s := c.Scoring
	if sum := s.RelevanceWeight + s.MatchWeight; math.Abs(sum-1.0) > weightEpsilon {
		return fmt.Errorf("%w: scoring weights must sum to 1.0, got %.4f", ErrInvalid, sum)
	}
	if s.RelevanceWeight < 0 || s.MatchWeight < 0 {
		return fmt.Errorf("%w: scoring weights must not be negative", ErrInvalid)
	}
	if s.MinRelevance < 1 || s.MinRelevance > 10 {
		return fmt.Errorf("%w: scoring.min-relevance must be in [1,10], got %d", ErrInvalid, s.MinRelevance)
	}
	if s.MinCombined <= 0 || s.MinCombined > 10 {
		return fmt.Errorf("%w: scoring.min-combined must be in (0,10], got %.2f", ErrInvalid, s.MinCombined)
	}

	if c.Sources == nil || len(c.Sources.Enabled) == 0 {
		return fmt.Errorf("%w: at least one source must be enabled", ErrInvalid)
	}
	seen := make(map[string]bool, len(c.Sources.Enabled))
	for _, name := range c.Sources.Enabled {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return fmt.Errorf("%w: empty source name in sources.enabled", ErrInvalid)
		}
		if seen[name] {
			return fmt.Errorf("%w: source %q enabled twice", ErrInvalid, name)
		}
		seen[name] = true
	}

	if c.Oracle != nil {
		switch strings.ToLower(strings.TrimSpace(c.Oracle.Provider)) {
		case "", "ollama":
		case "gemini":
			if c.Oracle.Gemini == nil || c.Oracle.Gemini.APIKeyFile == "" {
				return fmt.Errorf("%w: oracle.gemini.api-key-file is required for the gemini provider", ErrInvalid)
			}
		default:
			return fmt.Errorf("%w: unsupported oracle provider %q", ErrInvalid, c.Oracle.Provider)
		}
	}

	if c.Notify != nil && c.Notify.Enabled {
		if c.Notify.SMTPHost == "" || c.Notify.From == "" || c.Notify.To == "" {
			return fmt.Errorf("%w: notify requires smtp-host, from and to", ErrInvalid)
		}
	}

	return nil
}

// EnabledSources returns the enabled source names, lowercased and
// trimmed, in declaration order. The order is load-bearing: it fixes the
// join order of fetched listings and therefore dedup tie-breaking.
func (c *Config) EnabledSources() []string {
	if c.Sources == nil {
		return nil
	}
	out := make([]string, 0, len(c.Sources.Enabled))
	for _, name := range c.Sources.Enabled {
		out = append(out, strings.ToLower(strings.TrimSpace(name)))
	}
	return out
}
