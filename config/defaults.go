package config

import "github.com/spf13/viper"

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 877)
	v.SetDefault("server.allowed_origins", []string{})

	// Judgment defaults: identical thresholds on all three anchors until
	// a deployment tunes them apart
	v.SetDefault("judgment.anchor3.coherence", 0.5)
	v.SetDefault("judgment.anchor3.divergence", 0.15)
	v.SetDefault("judgment.anchor6.coherence", 0.5)
	v.SetDefault("judgment.anchor6.divergence", 0.15)
	v.SetDefault("judgment.anchor9.coherence", 0.5)
	v.SetDefault("judgment.anchor9.divergence", 0.15)
	v.SetDefault("judgment.magnification", 1.5)
	v.SetDefault("judgment.boost", 0.15)
	v.SetDefault("judgment.absorb_floor", 0.05)

	// Subspace monitor defaults
	v.SetDefault("subspace.window_size", 64)
	v.SetDefault("subspace.rank", 2)
	v.SetDefault("subspace.signal_threshold", 0.5)
	v.SetDefault("subspace.divergence_threshold", 0.15)

	// Archive defaults
	v.SetDefault("archive.high_value_threshold", 0.6)
	v.SetDefault("archive.retention", 256)

	// Flow defaults
	v.SetDefault("flow.workers", 4)
	v.SetDefault("flow.steps_per_second", 0.0) // unlimited
	v.SetDefault("flow.rekey_interval", 6)

	// Log defaults
	v.SetDefault("log.json", false)
	v.SetDefault("log.verbose", false)
}
