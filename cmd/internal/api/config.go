package api

// Config holds HTTP API limits.
type Config struct {
	// MaxBodyBytes caps JSON request bodies.
	MaxBodyBytes int64
}

func DefaultConfig() Config {
	return Config{MaxBodyBytes: 64 << 10}
}

func (c Config) normalized() Config {
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	return c
}
