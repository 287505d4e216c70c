package circuitbreaker

import (
	"fmt"
	"sync"

	"github.com/SubhajL/online-trading-sub001/clock"
	"github.com/SubhajL/online-trading-sub001/log"
)

// Manager keys breakers by dependency name so all callers of the same
// dependency share one failure gate.
type Manager struct {
	mu        sync.RWMutex
	breakers  map[string]*Breaker
	listeners []StateChangeListener
	clk       clock.Clock
	logger    log.Logger
}

// NewManager creates a circuit breaker manager. A nil clock defaults to the
// real clock, a nil logger to NoneLogger.
func NewManager(clk clock.Clock, logger log.Logger) *Manager {
	if clk == nil {
		clk = clock.NewReal()
	}

	if logger == nil {
		logger = &log.NoneLogger{}
	}

	return &Manager{
		breakers: make(map[string]*Breaker),
		clk:      clk,
		logger:   logger,
	}
}

// GetOrCreate returns the existing breaker for name or creates a new one
// with the given config.
func (m *Manager) GetOrCreate(name string, config Config) (*Breaker, error) {
	m.mu.RLock()
	breaker, exists := m.breakers[name]
	m.mu.RUnlock()

	if exists {
		return breaker, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock.
	if breaker, exists = m.breakers[name]; exists {
		return breaker, nil
	}

	breaker, err := NewBreaker(name, config, m.clk, m.logger)
	if err != nil {
		return nil, err
	}

	breaker.onStateChange = m.handleStateChange
	m.breakers[name] = breaker

	m.logger.Infof("created circuit breaker for dependency: %s", name)

	return breaker, nil
}

// Execute runs fn through the breaker registered for name, recording the
// outcome. A rejected request fails with ErrOpenState or
// ErrTooManyRequests without invoking fn.
func (m *Manager) Execute(name string, fn func() (any, error)) (any, error) {
	m.mu.RLock()
	breaker, exists := m.breakers[name]
	m.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s (call GetOrCreate first)", ErrBreakerNotFound, name)
	}

	if !breaker.Allow() {
		if breaker.State() == StateOpen {
			m.logger.Warnf("circuit breaker [%s] is OPEN - request rejected immediately", name)
			return nil, fmt.Errorf("dependency %s is currently unavailable: %w", name, ErrOpenState)
		}

		m.logger.Warnf("circuit breaker [%s] is HALF-OPEN - probe budget exhausted", name)

		return nil, fmt.Errorf("dependency %s is recovering: %w", name, ErrTooManyRequests)
	}

	result, err := fn()
	if err != nil {
		breaker.RecordFailure()
		return result, err
	}

	breaker.RecordSuccess()

	return result, nil
}

// GetState returns the current state for name, or StateUnknown when no
// breaker is registered.
func (m *Manager) GetState(name string) State {
	m.mu.RLock()
	breaker, exists := m.breakers[name]
	m.mu.RUnlock()

	if !exists {
		return StateUnknown
	}

	return breaker.State()
}

// GetCounts returns the current counts for name, or zero counts when no
// breaker is registered.
func (m *Manager) GetCounts(name string) Counts {
	m.mu.RLock()
	breaker, exists := m.breakers[name]
	m.mu.RUnlock()

	if !exists {
		return Counts{}
	}

	return breaker.Counts()
}

// IsHealthy returns true only when the breaker for name is closed. Open and
// half-open both need health checker intervention.
func (m *Manager) IsHealthy(name string) bool {
	return m.GetState(name) == StateClosed
}

// Reset returns the breaker for name to closed with zeroed counters.
func (m *Manager) Reset(name string) {
	m.mu.RLock()
	breaker, exists := m.breakers[name]
	m.mu.RUnlock()

	if !exists {
		return
	}

	m.logger.Infof("resetting circuit breaker for dependency: %s", name)
	breaker.Reset()
}

// RegisterStateChangeListener registers a listener for state change
// notifications.
func (m *Manager) RegisterStateChangeListener(listener StateChangeListener) {
	if listener == nil {
		m.logger.Warnf("attempted to register a nil state change listener")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.listeners = append(m.listeners, listener)
}

// handleStateChange logs transitions and notifies listeners.
func (m *Manager) handleStateChange(name string, from, to State) {
	switch to {
	case StateOpen:
		m.logger.Errorf("circuit breaker [%s] OPENED - dependency is unhealthy, requests will fast-fail", name)
	case StateHalfOpen:
		m.logger.Infof("circuit breaker [%s] HALF-OPEN - testing dependency recovery", name)
	case StateClosed:
		m.logger.Infof("circuit breaker [%s] CLOSED - dependency is healthy", name)
	}

	m.mu.RLock()
	listeners := make([]StateChangeListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()

	for _, listener := range listeners {
		// Notify in a goroutine so a slow listener cannot block breaker
		// operations.
		go func(l StateChangeListener) {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Errorf("state change listener panic for dependency %s: %v", name, r)
				}
			}()

			l.OnStateChange(name, from, to)
		}(listener)
	}
}
