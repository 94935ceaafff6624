package retrypipe

import (
	"math"
	"math/rand"
	"time"
)

// Config is the retry schedule shared by the failure router and the pipeline.
type Config struct {
	MaxAttempts     int
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		InitialInterval: 1000 * time.Millisecond,
		Multiplier:      2.0,
		MaxInterval:     30000 * time.Millisecond,
	}
}

// Delay computes initial * multiplier^(attempt-1), capped at maxInterval,
// with multiplicative jitter in [0.8, 1.2].
func (c Config) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(c.InitialInterval) * math.Pow(c.Multiplier, float64(attempt-1))
	if max := float64(c.MaxInterval); d > max {
		d = max
	}
	jitter := 0.8 + rand.Float64()*0.4
	return time.Duration(d * jitter)
}
