package nlp

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/donbr/graphrag-platform/pkg/types"
)

// CircuitBreakerConfig tunes the breaker wrapping the LLM call plane.
type CircuitBreakerConfig struct {
	// MaxRequests allowed through while the breaker is half-open.
	MaxRequests uint32
	// Interval is the cyclic period (seconds) for clearing counts while closed.
	Interval int
	// Timeout is how long (seconds) the breaker stays open before probing.
	Timeout int
	// ReadyToTripRatio is the failure ratio that opens the breaker.
	ReadyToTripRatio float64
}

// DefaultCircuitBreakerConfig returns conservative breaker defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests:      1,
		Interval:         60,
		Timeout:          30,
		ReadyToTripRatio: 0.6,
	}
}

// CircuitBreakerClient wraps a Client with circuit breaking logic so a
// misbehaving provider sheds load instead of stalling every query.
type CircuitBreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
	name   string
}

// NewCircuitBreakerClient creates a new circuit breaker client.
func NewCircuitBreakerClient(client Client, cfg CircuitBreakerConfig, logger *slog.Logger, name string) *CircuitBreakerClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadyToTripRatio <= 0 {
		cfg.ReadyToTripRatio = 0.6
	}

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
		},
	}

	return &CircuitBreakerClient{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(st),
		logger: logger,
		name:   name,
	}
}

// Chat implements Client.
func (c *CircuitBreakerClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.Chat(ctx, messages)
	})

	if err != nil {
		return nil, err
	}
	return resp.(*types.Response), nil
}

// Close implements Client.
func (c *CircuitBreakerClient) Close() error {
	return c.client.Close()
}
