// Package config loads, validates, persists and watches the novem
// configuration. Sources merge in precedence order: defaults, then the TOML
// config file, then NOVEM_-prefixed environment variables.
package config

import (
	"github.com/spindleworks/novem/digit"
	"github.com/spindleworks/novem/judge"
	"github.com/spindleworks/novem/store"
	"github.com/spindleworks/novem/subspace"
)

// Config represents the core novem configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Judgment JudgmentConfig `mapstructure:"judgment"`
	Subspace SubspaceConfig `mapstructure:"subspace"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Flow     FlowConfig     `mapstructure:"flow"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig configures the read-only API and event stream server
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AnchorConfig holds the judgment thresholds of a single anchor
type AnchorConfig struct {
	// Coherence is the minimum signal strength to continue forward
	Coherence float64 `mapstructure:"coherence"`
	// Divergence is the maximum tolerated drift before reversal
	Divergence float64 `mapstructure:"divergence"`
}

// JudgmentConfig configures the anchor judgment subsystem. Thresholds are
// independently settable per anchor.
type JudgmentConfig struct {
	Anchor3 AnchorConfig `mapstructure:"anchor3"`
	Anchor6 AnchorConfig `mapstructure:"anchor6"`
	Anchor9 AnchorConfig `mapstructure:"anchor9"`

	// Magnification scales the anchor's distribution slot on amplify
	Magnification float64 `mapstructure:"magnification"`
	// Boost is the fractional signal increase on amplify
	Boost float64 `mapstructure:"boost"`
	// AbsorbFloor is the signal level below which a reversing item is
	// absorbed instead
	AbsorbFloor float64 `mapstructure:"absorb_floor"`
}

// SubspaceConfig configures the signal-subspace integrity monitor
type SubspaceConfig struct {
	// WindowSize is the rolling window capacity per bucket
	WindowSize int `mapstructure:"window_size"`
	// Rank is how many top eigen-directions count as signal (1-3)
	Rank int `mapstructure:"rank"`
	// SignalThreshold flags drift below this signal strength
	SignalThreshold float64 `mapstructure:"signal_threshold"`
	// DivergenceThreshold flags drift above this window divergence
	DivergenceThreshold float64 `mapstructure:"divergence_threshold"`
}

// ArchiveConfig configures the high-value egress boundary
type ArchiveConfig struct {
	// HighValueThreshold is the signal level at which items are offered
	// to the archive sink
	HighValueThreshold float64 `mapstructure:"high_value_threshold"`
	// Retention bounds the built-in memory sink (demo/test only)
	Retention int `mapstructure:"retention"`
}

// FlowConfig configures the traversal worker pool
type FlowConfig struct {
	// Workers is the number of concurrent traversal workers
	Workers int `mapstructure:"workers"`
	// StepsPerSecond rate-limits traversal steps across all workers;
	// 0 disables the limiter
	StepsPerSecond float64 `mapstructure:"steps_per_second"`
	// RekeyInterval is how many steps an item traverses between re-keys
	// of its address from the source counter
	RekeyInterval int `mapstructure:"rekey_interval"`
}

// LogConfig configures logging output
type LogConfig struct {
	// JSON switches to machine-readable structured output
	JSON bool `mapstructure:"json"`
	// Verbose lowers the minimum level to debug
	Verbose bool `mapstructure:"verbose"`
}

// JudgeConfig converts the loaded configuration into judge tuning.
func (c *Config) JudgeConfig() judge.Config {
	return judge.Config{
		Anchors: map[digit.Address]judge.Thresholds{
			digit.Anchor3: {Coherence: c.Judgment.Anchor3.Coherence, Divergence: c.Judgment.Anchor3.Divergence},
			digit.Anchor6: {Coherence: c.Judgment.Anchor6.Coherence, Divergence: c.Judgment.Anchor6.Divergence},
			digit.Anchor9: {Coherence: c.Judgment.Anchor9.Coherence, Divergence: c.Judgment.Anchor9.Divergence},
		},
		Magnification: c.Judgment.Magnification,
		Boost:         c.Judgment.Boost,
		AbsorbFloor:   c.Judgment.AbsorbFloor,
	}
}

// MonitorParams converts the loaded configuration into monitor tuning.
func (c *Config) MonitorParams() subspace.Params {
	return subspace.Params{
		WindowSize:          c.Subspace.WindowSize,
		Rank:                c.Subspace.Rank,
		SignalThreshold:     c.Subspace.SignalThreshold,
		DivergenceThreshold: c.Subspace.DivergenceThreshold,
	}
}

// StoreOptions converts the loaded configuration into store tuning.
func (c *Config) StoreOptions() store.Options {
	return store.Options{HighValueThreshold: c.Archive.HighValueThreshold}
}
