package trainer

import "fmt"

// Config controls a training run.
type Config struct {
	// Episodes is the number of episodes per run.
	Episodes int `koanf:"episodes"`

	// MaxSteps bounds the number of actions applied in one episode.
	MaxSteps int `koanf:"max_steps"`

	// Epsilon is the probability of exploring a random action instead of
	// the best known one.
	Epsilon float64 `koanf:"epsilon"`

	// Seed seeds action exploration. Zero picks a random seed.
	Seed uint64 `koanf:"seed"`
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		Episodes: 25,
		MaxSteps: 20,
		Epsilon:  0.2,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Episodes <= 0 {
		return fmt.Errorf("episodes must be positive, got %d", c.Episodes)
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be positive, got %d", c.MaxSteps)
	}
	if c.Epsilon < 0 || c.Epsilon > 1 {
		return fmt.Errorf("epsilon must be within [0, 1], got %g", c.Epsilon)
	}
	return nil
}
