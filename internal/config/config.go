// Package config loads the infinicraft configuration file.
//
// The file is YAML. Its contents are unified with the closed CUE definition
// #Config (schema.cue) before decoding, so unknown keys, out-of-range values
// and malformed durations are reported with CUE's error details. Defaults
// live in the schema only.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// DefaultPath is read when no --config flag is given and the file exists.
const DefaultPath = "infinicraft.yaml"

// Config is the decoded configuration.
type Config struct {
	// Database is the SQLite path. Empty keeps everything in memory.
	Database  string
	LogLevel  string
	Generator GeneratorConfig
	Engine    EngineConfig
	Canvas    CanvasConfig
	Audio     AudioConfig
	Server    ServerConfig
}

// GeneratorConfig selects and tunes the text-generation backend.
type GeneratorConfig struct {
	Backend      string
	Model        string
	BaseURL      string
	APIKeyEnv    string
	MaxNewTokens int
	Temperature  float64
	Timeout      time.Duration
}

// APIKey reads the key from the configured environment variable.
func (g GeneratorConfig) APIKey() string {
	if g.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(g.APIKeyEnv)
}

// EngineConfig tunes the merge engine.
type EngineConfig struct {
	MaxAttempts    int
	CompletedGrace time.Duration
}

// CanvasConfig is the size used for random placement.
type CanvasConfig struct {
	Width  float64
	Height float64
}

// AudioConfig toggles sound feedback.
type AudioConfig struct {
	Enabled bool
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Listen string
}

// SlogLevel maps LogLevel to a slog.Level. Unknown values mean Info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// raw mirrors #Config field for field; durations are still strings.
type raw struct {
	Database  string `json:"database"`
	LogLevel  string `json:"log_level"`
	Generator struct {
		Backend      string  `json:"backend"`
		Model        string  `json:"model"`
		BaseURL      string  `json:"base_url"`
		APIKeyEnv    string  `json:"api_key_env"`
		MaxNewTokens int     `json:"max_new_tokens"`
		Temperature  float64 `json:"temperature"`
		Timeout      string  `json:"timeout"`
	} `json:"generator"`
	Engine struct {
		MaxAttempts    int    `json:"max_attempts"`
		CompletedGrace string `json:"completed_grace"`
	} `json:"engine"`
	Canvas struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	} `json:"canvas"`
	Audio struct {
		Enabled bool `json:"enabled"`
	} `json:"audio"`
	Server struct {
		Listen string `json:"listen"`
	} `json:"server"`
}

// Default returns the configuration of an empty file.
func Default() Config {
	cfg, err := Parse(nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema is invalid: %v", err))
	}
	return cfg
}

// Load reads and validates the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Resolve loads path if given. Otherwise it loads DefaultPath when that file
// exists, and falls back to Default. It returns the path actually read, or "".
func Resolve(path string) (Config, string, error) {
	if path != "" {
		cfg, err := Load(path)
		return cfg, path, err
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		cfg, err := Load(DefaultPath)
		return cfg, DefaultPath, err
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, "", fmt.Errorf("stat %s: %w", DefaultPath, err)
	}
	return Default(), "", nil
}

// Parse validates a YAML document against the schema and decodes it.
func Parse(data []byte) (Config, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := def.Unify(ctx.Encode(doc))
	if err := value.Validate(); err != nil {
		return Config{}, &ValidationError{Details: cueerrors.Details(err, nil), Err: err}
	}

	var r raw
	if err := value.Decode(&r); err != nil {
		return Config{}, &ValidationError{Details: cueerrors.Details(err, nil), Err: err}
	}
	return r.convert()
}

func (r raw) convert() (Config, error) {
	timeout, err := time.ParseDuration(r.Generator.Timeout)
	if err != nil {
		return Config{}, fmt.Errorf("generator.timeout: %w", err)
	}
	grace, err := time.ParseDuration(r.Engine.CompletedGrace)
	if err != nil {
		return Config{}, fmt.Errorf("engine.completed_grace: %w", err)
	}
	return Config{
		Database: r.Database,
		LogLevel: r.LogLevel,
		Generator: GeneratorConfig{
			Backend:      r.Generator.Backend,
			Model:        r.Generator.Model,
			BaseURL:      r.Generator.BaseURL,
			APIKeyEnv:    r.Generator.APIKeyEnv,
			MaxNewTokens: r.Generator.MaxNewTokens,
			Temperature:  r.Generator.Temperature,
			Timeout:      timeout,
		},
		Engine: EngineConfig{
			MaxAttempts:    r.Engine.MaxAttempts,
			CompletedGrace: grace,
		},
		Canvas: CanvasConfig{Width: r.Canvas.Width, Height: r.Canvas.Height},
		Audio:  AudioConfig{Enabled: r.Audio.Enabled},
		Server: ServerConfig{Listen: r.Server.Listen},
	}, nil
}

// ValidationError reports a document that does not satisfy #Config.
type ValidationError struct {
	// Details is CUE's multi-line description, one problem per line.
	Details string
	Err     error
}

func (e *ValidationError) Error() string {
	return "invalid config: " + e.Details
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
