package ratelimit

import "time"

const (
	DefaultMaxAttempts = 3
	DefaultWindow      = time.Minute
	DefaultStorageKey  = "rate_limit"
)

// Config defines a limiter. Zero fields take the package defaults.
//
// StorageKey must be unique per independently limited action: two limiters
// sharing a key and a storage medium share their state.
type Config struct {
	MaxAttempts int
	Window      time.Duration
	StorageKey  string
}

// Normalize fills zero fields with defaults and rejects negative values.
func (c Config) Normalize() (Config, error) {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}

	if c.Window == 0 {
		c.Window = DefaultWindow
	}

	if c.StorageKey == "" {
		c.StorageKey = DefaultStorageKey
	}

	if c.MaxAttempts < 0 {
		return Config{}, ErrInvalidMaxAttempts
	}

	// Windows are tracked in whole milliseconds.
	if c.Window < time.Millisecond {
		return Config{}, ErrInvalidWindow
	}

	return c, nil
}
