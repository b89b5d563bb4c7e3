package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/weave/internal/ir"
)

// DefaultConfigFile is read from the working directory when --config is
// not given. A missing default file is not an error.
const DefaultConfigFile = "weave.yaml"

// Config is the optional YAML configuration file. Command-line flags
// override every field.
type Config struct {
	LogLevel      string           `yaml:"log_level"`      // debug | info | warn | error
	LogFormat     string           `yaml:"log_format"`     // text | json
	DB            string           `yaml:"db"`             // event log path
	Aspects       string           `yaml:"aspects"`        // directory of CUE aspect files
	FailurePolicy ir.FailurePolicy `yaml:"failure_policy"` // propagate | suppress
	MaxDepth      int              `yaml:"max_depth"`      // nested dispatch limit, 0 = engine default
}

// LoadConfig reads and validates a config file. Unknown fields are
// rejected so typos surface instead of being ignored.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses and validates config YAML.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	switch cfg.LogFormat {
	case "", "text", "json":
	default:
		return nil, fmt.Errorf("invalid log_format %q: must be text or json", cfg.LogFormat)
	}
	if !cfg.FailurePolicy.Valid() {
		return nil, fmt.Errorf("invalid failure_policy %q: must be %q or %q",
			cfg.FailurePolicy, ir.PolicyPropagate, ir.PolicySuppress)
	}
	if cfg.MaxDepth < 0 {
		return nil, fmt.Errorf("max_depth must be non-negative")
	}
	return &cfg, nil
}

// loadConfig resolves the config for a command run: the explicit path
// must exist, the default file is optional.
func loadConfig(path string) (*Config, error) {
	if path != "" {
		return LoadConfig(path)
	}
	if _, err := os.Stat(DefaultConfigFile); err != nil {
		return &Config{}, nil
	}
	return LoadConfig(DefaultConfigFile)
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log_level %q: must be debug, info, warn or error", s)
}

// newLogger builds the process logger. --verbose forces debug.
func newLogger(w io.Writer, level slog.Level, format string, verbose bool) *slog.Logger {
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
