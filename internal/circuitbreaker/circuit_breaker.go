// Package circuitbreaker keeps a failing dependency from adding latency to
// every caller. The refresh listeners use it in front of Postgres and
// ClickHouse writes.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gold-portfolio/internal/logging"
)

// State represents the circuit breaker state
type State string

const (
	// StateClosed means the circuit is closed and requests are allowed
	StateClosed State = "closed"
	// StateOpen means the circuit is open and requests are blocked
	StateOpen State = "open"
	// StateHalfOpen means the circuit is testing if the dependency has recovered
	StateHalfOpen State = "half_open"
)

// ErrCircuitOpen is returned when the circuit breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrTooManyRequests is returned when too many requests are made in half-open state
var ErrTooManyRequests = errors.New("too many requests in half-open state")

// Config configures a circuit breaker
type Config struct {
	Name string
	// ConsecutiveFailures opens the circuit from closed
	ConsecutiveFailures int
	// OpenTimeout is how long to wait before probing in half-open
	OpenTimeout time.Duration
	// HalfOpenMaxCalls successful trial calls close the circuit again
	HalfOpenMaxCalls int
	Logger           *logging.Logger
	Now              func() time.Time
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig(name string) *Config {
	return &Config{
		Name:                name,
		ConsecutiveFailures: 3,
		OpenTimeout:         5 * time.Minute,
		HalfOpenMaxCalls:    1,
	}
}

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	name             string
	maxConsecutive   int
	openTimeout      time.Duration
	halfOpenMaxCalls int
	logger           *logging.Logger
	now              func() time.Time

	mu               sync.Mutex
	state            State
	consecutiveFails int
	halfOpenCalls    int
	halfOpenSuccess  int
	totalCalls       int
	totalFailures    int
	rejected         int
	lastFailureTime  time.Time
	lastStateChange  time.Time
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(cfg *Config) *CircuitBreaker {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	maxConsecutive := cfg.ConsecutiveFailures
	if maxConsecutive <= 0 {
		maxConsecutive = 1
	}
	halfOpenMax := cfg.HalfOpenMaxCalls
	if halfOpenMax <= 0 {
		halfOpenMax = 1
	}

	return &CircuitBreaker{
		name:             cfg.Name,
		maxConsecutive:   maxConsecutive,
		openTimeout:      cfg.OpenTimeout,
		halfOpenMaxCalls: halfOpenMax,
		logger:           logger.WithField("circuitBreaker", cfg.Name),
		now:              now,
		state:            StateClosed,
		lastStateChange:  now(),
	}
}

// Execute runs fn unless the circuit is open. Context cancellation of the
// caller is not counted as a dependency failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := fn(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		cb.release()
		return err
	}

	cb.afterRequest(err)
	return err
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastStateChange) < cb.openTimeout {
			cb.rejected++
			return fmt.Errorf("%s: %w", cb.name, ErrCircuitOpen)
		}
		cb.setState(StateHalfOpen)
		cb.logger.Info("circuit breaker half-open, probing")
		fallthrough

	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.halfOpenMaxCalls {
			cb.rejected++
			return fmt.Errorf("%s: %w", cb.name, ErrTooManyRequests)
		}
		cb.halfOpenCalls++
	}
	return nil
}

// release gives back a half-open slot for a call that did not complete
func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateHalfOpen && cb.halfOpenCalls > 0 {
		cb.halfOpenCalls--
	}
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalCalls++
	if err != nil {
		cb.onFailure()
	} else {
		cb.onSuccess()
	}
}

func (cb *CircuitBreaker) onSuccess() {
	cb.consecutiveFails = 0

	if cb.state == StateHalfOpen {
		cb.halfOpenSuccess++
		if cb.halfOpenSuccess >= cb.halfOpenMaxCalls {
			cb.setState(StateClosed)
			cb.logger.Info("circuit breaker closed after successful recovery")
		}
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.totalFailures++
	cb.consecutiveFails++
	cb.lastFailureTime = cb.now()

	switch cb.state {
	case StateClosed:
		if cb.consecutiveFails >= cb.maxConsecutive {
			cb.setState(StateOpen)
			cb.logger.WithFields(map[string]interface{}{
				"consecutiveFails": cb.consecutiveFails,
				"openTimeout":      cb.openTimeout.String(),
			}).Warn("circuit breaker opened due to failures")
		}

	case StateHalfOpen:
		cb.setState(StateOpen)
		cb.logger.Warn("circuit breaker reopened after failure in half-open state")
	}
}

// setState changes state and clears the half-open counters
func (cb *CircuitBreaker) setState(state State) {
	cb.state = state
	cb.lastStateChange = cb.now()
	cb.halfOpenCalls = 0
	cb.halfOpenSuccess = 0
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats represents circuit breaker statistics
type Stats struct {
	Name             string    `json:"name"`
	State            State     `json:"state"`
	TotalCalls       int       `json:"totalCalls"`
	TotalFailures    int       `json:"totalFailures"`
	Rejected         int       `json:"rejected"`
	ConsecutiveFails int       `json:"consecutiveFails"`
	LastFailureTime  time.Time `json:"lastFailureTime,omitempty"`
	LastStateChange  time.Time `json:"lastStateChange"`
}

// GetStats returns statistics about the circuit breaker
func (cb *CircuitBreaker) GetStats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Stats{
		Name:             cb.name,
		State:            cb.state,
		TotalCalls:       cb.totalCalls,
		TotalFailures:    cb.totalFailures,
		Rejected:         cb.rejected,
		ConsecutiveFails: cb.consecutiveFails,
		LastFailureTime:  cb.lastFailureTime,
		LastStateChange:  cb.lastStateChange,
	}
}

// Manager hands out named circuit breakers
type Manager struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	logger   *logging.Logger
}

// NewManager creates a new circuit breaker manager
func NewManager(logger *logging.Logger) *Manager {
	return &Manager{
		breakers: make(map[string]*CircuitBreaker),
		logger:   logger,
	}
}

// GetOrCreate gets an existing circuit breaker or creates a new one
func (m *Manager) GetOrCreate(name string, cfg *Config) *CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cb, exists := m.breakers[name]; exists {
		return cb
	}

	if cfg == nil {
		cfg = DefaultConfig(name)
	}
	if cfg.Logger == nil {
		cfg.Logger = m.logger
	}
	cfg.Name = name

	cb := NewCircuitBreaker(cfg)
	m.breakers[name] = cb
	return cb
}

// AllStats returns statistics for all circuit breakers sorted by name
func (m *Manager) AllStats() []Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make([]Stats, 0, len(m.breakers))
	for _, cb := range m.breakers {
		stats = append(stats, cb.GetStats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}
