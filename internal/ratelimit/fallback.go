package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Mohamedseffine/01Blog/internal/logger"
)

type FallbackConfig struct {
	// Consecutive primary failures that open the breaker, 3 if not set
	MaxFailures uint32

	// How long the breaker stays open before probing primary again, 10s if not set
	OpenTimeout time.Duration

	// NoOp logger if not set
	Logger logger.Logger
}

// FallbackStore takes tokens from primary store while it is healthy
// When primary keeps failing the circuit opens and the fallback store serves requests
type FallbackStore struct {
	primary  BucketStore
	fallback BucketStore
	cb       *gobreaker.CircuitBreaker
	logger   logger.Logger
}

func NewFallbackStore(primary BucketStore, fallback BucketStore, cfg FallbackConfig) *FallbackStore {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}

	l := cfg.Logger
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ratelimit-primary",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			l.Warn("bucket store circuit changed state", "name", name, "from", from.String(), "to", to.String())
		},
		// Canceled requests say nothing about store health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &FallbackStore{
		primary:  primary,
		fallback: fallback,
		cb:       cb,
		logger:   l,
	}
}

func (s *FallbackStore) Take(ctx context.Context, key string, limit Limit) (bool, error) {
	allowed, err := s.cb.Execute(func() (any, error) {
		return s.primary.Take(ctx, key, limit)
	})
	if err == nil {
		return allowed.(bool), nil
	}

	if !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests) {
		s.logger.Warn("primary bucket store failed, use fallback", "error", err)
	}

	return s.fallback.Take(ctx, key, limit)
}

// State of the breaker around primary store
func (s *FallbackStore) State() gobreaker.State {
	return s.cb.State()
}
