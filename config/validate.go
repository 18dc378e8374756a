package config

import "github.com/spindleworks/novem/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.Newf("server.port must be positive, got %d", c.Server.Port)
	}

	for name, a := range map[string]AnchorConfig{
		"anchor3": c.Judgment.Anchor3,
		"anchor6": c.Judgment.Anchor6,
		"anchor9": c.Judgment.Anchor9,
	} {
		if a.Coherence < 0 || a.Coherence > 1 {
			return errors.Newf("judgment.%s.coherence must be in [0, 1], got %f", name, a.Coherence)
		}
		if a.Divergence < 0 || a.Divergence > 1 {
			return errors.Newf("judgment.%s.divergence must be in [0, 1], got %f", name, a.Divergence)
		}
	}

	// Magnification below 1 would shrink the anchor slot instead of
	// concentrating it
	if c.Judgment.Magnification < 1 {
		return errors.Newf("judgment.magnification must be >= 1, got %f", c.Judgment.Magnification)
	}
	if c.Judgment.Boost < 0 {
		return errors.Newf("judgment.boost must be >= 0, got %f", c.Judgment.Boost)
	}
	if c.Judgment.AbsorbFloor < 0 || c.Judgment.AbsorbFloor > 1 {
		return errors.Newf("judgment.absorb_floor must be in [0, 1], got %f", c.Judgment.AbsorbFloor)
	}

	if c.Subspace.WindowSize < 2 {
		return errors.Newf("subspace.window_size must be >= 2, got %d", c.Subspace.WindowSize)
	}
	if c.Subspace.Rank < 1 || c.Subspace.Rank > 3 {
		return errors.Newf("subspace.rank must be in [1, 3], got %d", c.Subspace.Rank)
	}
	if c.Subspace.SignalThreshold < 0 || c.Subspace.SignalThreshold > 1 {
		return errors.Newf("subspace.signal_threshold must be in [0, 1], got %f", c.Subspace.SignalThreshold)
	}
	if c.Subspace.DivergenceThreshold < 0 || c.Subspace.DivergenceThreshold > 1 {
		return errors.Newf("subspace.divergence_threshold must be in [0, 1], got %f", c.Subspace.DivergenceThreshold)
	}

	if c.Archive.HighValueThreshold < 0 || c.Archive.HighValueThreshold > 1 {
		return errors.Newf("archive.high_value_threshold must be in [0, 1], got %f", c.Archive.HighValueThreshold)
	}
	if c.Archive.Retention < 0 {
		return errors.Newf("archive.retention must be >= 0, got %d", c.Archive.Retention)
	}

	// Flow workers: 0 = no background traversal, negative = invalid
	if c.Flow.Workers < 0 {
		return errors.Newf("flow.workers must be >= 0, got %d", c.Flow.Workers)
	}
	if c.Flow.StepsPerSecond < 0 {
		return errors.Newf("flow.steps_per_second must be >= 0, got %f", c.Flow.StepsPerSecond)
	}
	if c.Flow.RekeyInterval < 1 {
		return errors.Newf("flow.rekey_interval must be >= 1, got %d", c.Flow.RekeyInterval)
	}

	return nil
}
