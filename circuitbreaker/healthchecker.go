package circuitbreaker

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/SubhajL/online-trading-sub001/clock"
	"github.com/SubhajL/online-trading-sub001/log"
)

var (
	// ErrInvalidHealthCheckInterval indicates that the health check interval must be positive.
	ErrInvalidHealthCheckInterval = errors.New("circuitbreaker: health check interval must be positive")
	// ErrInvalidHealthCheckTimeout indicates that the health check timeout must be positive.
	ErrInvalidHealthCheckTimeout = errors.New("circuitbreaker: health check timeout must be positive")
)

// HealthChecker periodically probes unhealthy dependencies and resets their
// breakers on recovery. It is the recovery path for breakers nothing
// queries: the breaker itself never transitions on a timer.
type HealthChecker struct {
	manager        *Manager
	services       map[string]HealthCheckFunc
	interval       time.Duration
	checkTimeout   time.Duration
	clk            clock.Clock
	logger         log.Logger
	stopChan       chan struct{}
	immediateCheck chan string
	wg             sync.WaitGroup
	mu             sync.RWMutex
}

// NewHealthChecker creates a health checker.
// interval: how often to run health checks.
// checkTimeout: timeout for each individual health check operation.
func NewHealthChecker(manager *Manager, interval, checkTimeout time.Duration, clk clock.Clock, logger log.Logger) (*HealthChecker, error) {
	if interval <= 0 {
		return nil, ErrInvalidHealthCheckInterval
	}

	if checkTimeout <= 0 {
		return nil, ErrInvalidHealthCheckTimeout
	}

	if clk == nil {
		clk = clock.NewReal()
	}

	if logger == nil {
		logger = &log.NoneLogger{}
	}

	return &HealthChecker{
		manager:        manager,
		services:       make(map[string]HealthCheckFunc),
		interval:       interval,
		checkTimeout:   checkTimeout,
		clk:            clk,
		logger:         logger,
		stopChan:       make(chan struct{}),
		immediateCheck: make(chan string, 10),
	}, nil
}

// Register adds a dependency to health check.
func (hc *HealthChecker) Register(name string, healthCheckFn HealthCheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	hc.services[name] = healthCheckFn
	hc.logger.Infof("registered health check for dependency: %s", name)
}

// Start begins the health check loop in a separate goroutine.
func (hc *HealthChecker) Start() {
	hc.wg.Add(1)

	go hc.healthCheckLoop()

	hc.logger.Infof("health checker started - checking dependencies every %v", hc.interval)
}

// Stop gracefully stops the health checker.
func (hc *HealthChecker) Stop() {
	close(hc.stopChan)
	hc.wg.Wait()
	hc.logger.Info("health checker stopped")
}

func (hc *HealthChecker) healthCheckLoop() {
	defer hc.wg.Done()

	for {
		select {
		case <-hc.clk.After(hc.interval):
			hc.performHealthChecks()
		case name := <-hc.immediateCheck:
			hc.logger.Debugf("triggering immediate health check for dependency: %s", name)
			hc.checkServiceHealth(name)
		case <-hc.stopChan:
			return
		}
	}
}

func (hc *HealthChecker) performHealthChecks() {
	hc.mu.RLock()
	// Snapshot so the lock is not held during checks.
	services := make(map[string]HealthCheckFunc, len(hc.services))
	maps.Copy(services, hc.services)
	hc.mu.RUnlock()

	unhealthyCount := 0
	recoveredCount := 0

	for name, healthCheckFn := range services {
		if hc.manager.IsHealthy(name) {
			continue
		}

		unhealthyCount++

		if hc.probe(name, healthCheckFn) {
			recoveredCount++
		}
	}

	if unhealthyCount > 0 {
		hc.logger.Infof("health check complete: %d dependencies needed healing, %d recovered", unhealthyCount, recoveredCount)
	}
}

// GetHealthStatus returns the breaker state of every registered dependency.
func (hc *HealthChecker) GetHealthStatus() map[string]string {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	status := make(map[string]string, len(hc.services))

	for name := range hc.services {
		status[name] = string(hc.manager.GetState(name))
	}

	return status
}

// OnStateChange implements StateChangeListener. A breaker opening schedules
// an immediate health check for its dependency.
func (hc *HealthChecker) OnStateChange(name string, _ State, to State) {
	if to != StateOpen {
		return
	}

	// Non-blocking send to avoid deadlock.
	select {
	case hc.immediateCheck <- name:
		hc.logger.Debugf("immediate health check scheduled for %s", name)
	default:
		hc.logger.Warnf("immediate health check channel full for %s, will check on next interval", name)
	}
}

func (hc *HealthChecker) checkServiceHealth(name string) {
	hc.mu.RLock()
	healthCheckFn, exists := hc.services[name]
	hc.mu.RUnlock()

	if !exists {
		hc.logger.Warnf("no health check function registered for dependency: %s", name)
		return
	}

	if hc.manager.IsHealthy(name) {
		return
	}

	hc.probe(name, healthCheckFn)
}

// probe runs one health check and resets the breaker on success.
func (hc *HealthChecker) probe(name string, healthCheckFn HealthCheckFunc) bool {
	hc.logger.Infof("attempting to heal dependency: %s (circuit breaker is not closed)", name)

	ctx, cancel := context.WithTimeout(context.Background(), hc.checkTimeout)
	err := healthCheckFn(ctx)

	cancel()

	if err != nil {
		hc.logger.Warnf("dependency %s still unhealthy: %v - will retry in %v", name, err, hc.interval)
		return false
	}

	hc.logger.Infof("dependency %s recovered - resetting circuit breaker", name)
	hc.manager.Reset(name)

	return true
}
