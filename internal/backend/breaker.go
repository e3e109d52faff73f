package backend

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Default circuit breaker settings.
const (
	DefaultMaxFailures uint32        = 5
	DefaultTimeout     time.Duration = 30 * time.Second
	DefaultInterval    time.Duration = 60 * time.Second
)

// BreakerConfig configures the per-endpoint circuit breakers. Zero fields take
// the defaults above.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens a circuit.
	MaxFailures uint32
	// Timeout is how long an open circuit waits before a half-open probe.
	Timeout time.Duration
	// Interval clears failure counts periodically while closed.
	Interval time.Duration
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.MaxFailures == 0 {
		c.MaxFailures = DefaultMaxFailures
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	return c
}

// Breakers hands out one circuit breaker per key, created on first use.
// A tripped breaker fails calls immediately; nothing is retried.
type Breakers struct {
	cfg    BreakerConfig
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[string]
}

// NewBreakers returns an empty breaker registry.
func NewBreakers(cfg BreakerConfig, logger *slog.Logger) *Breakers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Breakers{
		cfg:      cfg.withDefaults(),
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[string]),
	}
}

// BreakerKey names the breaker guarding kind at endpointURI.
func BreakerKey(kind Kind, endpointURI string) string {
	return kind.String() + "@" + endpointURI
}

// Execute runs fn through the breaker for key.
func (b *Breakers) Execute(key string, fn func() (string, error)) (string, error) {
	return b.get(key).Execute(fn)
}

// State reports the current state of the breaker for key.
func (b *Breakers) State(key string) gobreaker.State {
	return b.get(key).State()
}

// IsOpen reports whether err came from a breaker refusing the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (b *Breakers) get(key string) *gobreaker.CircuitBreaker[string] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[key]; ok {
		return cb
	}
	maxFailures := b.cfg.MaxFailures
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        key,
		MaxRequests: 1,
		Interval:    b.cfg.Interval,
		Timeout:     b.cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		// A caller giving up says nothing about the endpoint's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	b.breakers[key] = cb
	return cb
}
