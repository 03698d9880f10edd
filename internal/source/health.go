package source

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dealhound-cloud/dealhound/internal/domain"
	"github.com/dealhound-cloud/dealhound/internal/metrics"
)

// CircuitState is the breaker state for one source.
type CircuitState int

// Circuit states. Gauge values match the metric encoding.
const (
	CircuitClosed   CircuitState = 0
	CircuitHalfOpen CircuitState = 1
	CircuitOpen     CircuitState = 2
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitHalfOpen:
		return "half-open"
	case CircuitOpen:
		return "open"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// HealthConfig holds limiter and breaker settings for one source.
type HealthConfig struct {
	RatePerSec  float64
	Burst       int
	Trips       int // consecutive failures before the circuit opens
	Cooldown    time.Duration
	MaxCooldown time.Duration
}

// Health owns the mutable per-source state: token budget, consecutive
// failures, circuit state, next retry time. It is the only writer of that
// state; the orchestrator consults it solely through Admit.
type Health struct {
	source string
	cfg    HealthConfig

	mu            sync.Mutex
	tokens        float64
	lastRefill    time.Time
	failures      int
	state         CircuitState
	openedAt      time.Time
	cooldown      time.Duration
	trialInFlight bool

	now func() time.Time // injectable for tests
}

// NewHealth creates per-source health state with a full token bucket.
func NewHealth(source string, cfg HealthConfig) *Health {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Trips <= 0 {
		cfg.Trips = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.MaxCooldown < cfg.Cooldown {
		cfg.MaxCooldown = 10 * cfg.Cooldown
	}
	h := &Health{
		source: source,
		cfg:    cfg,
		tokens: float64(cfg.Burst),
		now:    time.Now,
	}
	h.lastRefill = h.now()
	h.cooldown = cfg.Cooldown
	return h
}

// WithClock overrides the time source. Test hook.
func (h *Health) WithClock(now func() time.Time) *Health {
	h.now = now
	h.lastRefill = now()
	return h
}

// Admit decides synchronously whether a call to the source may proceed.
// It never blocks: a missing token returns ErrRateLimited, an open circuit
// returns ErrCircuitOpen. A successful admit consumes one token.
func (h *Health) Admit() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()

	switch h.state {
	case CircuitOpen:
		if now.Sub(h.openedAt) < h.cooldown {
			return fmt.Errorf("source %s cooling down: %w", h.source, domain.ErrCircuitOpen)
		}
		// Cool-down elapsed: half-open, admit exactly one trial call.
		h.setState(CircuitHalfOpen)
		h.trialInFlight = true
		return nil
	case CircuitHalfOpen:
		if h.trialInFlight {
			return fmt.Errorf("source %s trial in flight: %w", h.source, domain.ErrCircuitOpen)
		}
		h.trialInFlight = true
		return nil
	case CircuitClosed:
	}

	h.refill(now)
	if h.tokens < 1 {
		return fmt.Errorf("source %s budget exhausted: %w", h.source, domain.ErrRateLimited)
	}
	h.tokens--
	return nil
}

// ReportSuccess records a successful call: failures reset, the circuit
// closes, and the cool-down backs off to its base value.
func (h *Health) ReportSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.failures = 0
	h.trialInFlight = false
	h.cooldown = h.cfg.Cooldown
	h.setState(CircuitClosed)
}

// ReportFailure records a failed call. Reaching the consecutive-failure
// threshold opens the circuit; a failed half-open trial reopens it with an
// exponentially increased, capped cool-down.
func (h *Health) ReportFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.failures++
	now := h.now()

	if h.state == CircuitHalfOpen {
		h.trialInFlight = false
		h.cooldown = time.Duration(math.Min(
			float64(h.cooldown)*2, float64(h.cfg.MaxCooldown),
		))
		h.openedAt = now
		h.setState(CircuitOpen)
		return
	}

	if h.failures >= h.cfg.Trips {
		h.openedAt = now
		h.setState(CircuitOpen)
	}
}

// State returns the current circuit state.
func (h *Health) State() CircuitState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Health) setState(s CircuitState) {
	h.state = s
	metrics.CircuitState.WithLabelValues(h.source).Set(float64(s))
}

func (h *Health) refill(now time.Time) {
	elapsed := now.Sub(h.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	h.tokens = math.Min(float64(h.cfg.Burst), h.tokens+elapsed*h.cfg.RatePerSec)
	h.lastRefill = now
}

// HealthSet maps source names to their owned health state. Built once at
// startup and injected into the orchestrator; never shared with other
// components.
type HealthSet map[string]*Health
