package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/debugctx/internal/collect"
)

// Config is the full debugctx configuration.
type Config struct {
	// Logging configures log output.
	Logging LoggingConfig `toml:"logging"`

	// Budgets bounds context collection.
	Budgets BudgetsConfig `toml:"budgets"`

	// Adapter configures the debug adapter to launch.
	Adapter AdapterConfig `toml:"adapter"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
}

// BudgetsConfig bounds context collection. Zero values fall back to the
// built-in defaults during Load.
type BudgetsConfig struct {
	// StackItems is the maximum number of retained stack frames.
	StackItems int `toml:"stack_items"`

	// StackBytes is the maximum serialized size of the stack list.
	StackBytes int `toml:"stack_bytes"`

	// SnapshotBytes is the maximum serialized size of the snapshot tree.
	SnapshotBytes int `toml:"snapshot_bytes"`

	// BackendCalls is the maximum number of backend requests per snapshot.
	BackendCalls int `toml:"backend_calls"`

	// ValueDepth is the maximum child nesting depth, with top-level locals
	// at depth zero.
	ValueDepth int `toml:"value_depth"`

	// TraceLines is the maximum number of stack trace lines retained on an
	// exception.
	TraceLines int `toml:"trace_lines"`

	// PrefixLines and SuffixLines bound the enclosing-function excerpt
	// around the current line.
	PrefixLines int `toml:"prefix_lines"`
	SuffixLines int `toml:"suffix_lines"`
}

// AdapterConfig configures the debug adapter to launch.
type AdapterConfig struct {
	// Type selects the adapter: delve, python, or node.
	Type string `toml:"type"`

	// Command overrides the adapter's launch command.
	Command string `toml:"command"`

	// Args are extra arguments appended to the launch command.
	Args []string `toml:"args"`

	// Host and Port select a running adapter to connect to instead of
	// launching one. Port 0 means launch.
	Host string `toml:"host"`
	Port int    `toml:"port"`

	// LaunchTimeout bounds how long to wait for the adapter to accept a
	// connection.
	LaunchTimeout time.Duration `toml:"launch_timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	b := collect.DefaultBudgets()
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Budgets: BudgetsConfig{
			StackItems:    b.MaxStackItems,
			StackBytes:    b.MaxStackBytes,
			SnapshotBytes: b.MaxSnapshotBytes,
			BackendCalls:  b.MaxBackendCalls,
			ValueDepth:    b.MaxValueDepth,
			TraceLines:    b.MaxTraceLines,
			PrefixLines:   b.FunctionPrefixLines,
			SuffixLines:   b.FunctionSuffixLines,
		},
		Adapter: AdapterConfig{
			Type:          "delve",
			Host:          "127.0.0.1",
			LaunchTimeout: 10 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, an optional TOML file, and
// DEBUGCTX_* environment variables. A missing file is not an error; an
// unparsable or invalid one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
			}
		} else if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, &ParseError{Path: path, Err: err}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides settings from DEBUGCTX_* environment variables.
func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("DEBUGCTX_LOG_LEVEL"); ok {
		cfg.Logging.Level = v
	}
	if v, ok := os.LookupEnv("DEBUGCTX_ADAPTER"); ok {
		cfg.Adapter.Type = v
	}
	if v, ok := os.LookupEnv("DEBUGCTX_ADAPTER_HOST"); ok {
		cfg.Adapter.Host = v
	}
	envInt("DEBUGCTX_ADAPTER_PORT", &cfg.Adapter.Port)

	envInt("DEBUGCTX_STACK_ITEMS", &cfg.Budgets.StackItems)
	envInt("DEBUGCTX_STACK_BYTES", &cfg.Budgets.StackBytes)
	envInt("DEBUGCTX_SNAPSHOT_BYTES", &cfg.Budgets.SnapshotBytes)
	envInt("DEBUGCTX_BACKEND_CALLS", &cfg.Budgets.BackendCalls)
	envInt("DEBUGCTX_VALUE_DEPTH", &cfg.Budgets.ValueDepth)
	envInt("DEBUGCTX_TRACE_LINES", &cfg.Budgets.TraceLines)
}

// envInt parses an integer environment variable into dst when set and valid.
func envInt(key string, dst *int) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*dst = n
}

// Validate checks settings for usable values.
func (c Config) Validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{Setting: "logging.level", Message: "must be debug, info, warn, or error", Value: c.Logging.Level}
	}

	if c.Budgets.ValueDepth < 0 {
		return &ValidationError{Setting: "budgets.value_depth", Message: "must be >= 0", Value: c.Budgets.ValueDepth}
	}
	if c.Budgets.BackendCalls < 1 {
		return &ValidationError{Setting: "budgets.backend_calls", Message: "must be >= 1", Value: c.Budgets.BackendCalls}
	}
	if c.Budgets.StackItems < 1 {
		return &ValidationError{Setting: "budgets.stack_items", Message: "must be >= 1", Value: c.Budgets.StackItems}
	}
	if c.Budgets.SnapshotBytes < 1 || c.Budgets.StackBytes < 1 {
		return &ValidationError{Setting: "budgets", Message: "byte budgets must be >= 1", Value: c.Budgets}
	}

	if c.Adapter.Port < 0 || c.Adapter.Port > 65535 {
		return &ValidationError{Setting: "adapter.port", Message: "must be 0-65535", Value: c.Adapter.Port}
	}

	return nil
}

// CollectBudgets converts the configured budgets to the engine's type.
func (c Config) CollectBudgets() collect.Budgets {
	return collect.Budgets{
		MaxStackItems:       c.Budgets.StackItems,
		MaxStackBytes:       c.Budgets.StackBytes,
		MaxSnapshotBytes:    c.Budgets.SnapshotBytes,
		MaxBackendCalls:     c.Budgets.BackendCalls,
		MaxValueDepth:       c.Budgets.ValueDepth,
		MaxTraceLines:       c.Budgets.TraceLines,
		FunctionPrefixLines: c.Budgets.PrefixLines,
		FunctionSuffixLines: c.Budgets.SuffixLines,
	}
}
