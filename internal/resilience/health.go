package resilience

import (
	"context"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

func (s HealthStatus) rank() int {
	switch s {
	case HealthStatusHealthy:
		return 0
	case HealthStatusDegraded:
		return 1
	default:
		return 2
	}
}

// ComponentHealth is the result of one check.
type ComponentHealth struct {
	Name    string         `json:"name"`
	Status  HealthStatus   `json:"status"`
	Message string         `json:"message,omitempty"`
	Latency time.Duration  `json:"latency_ns"`
	Details map[string]any `json:"details,omitempty"`
}

// HealthCheck inspects one component.
type HealthCheck func(ctx context.Context) ComponentHealth

// Report aggregates every registered check. The overall status is the worst
// component status.
type Report struct {
	Status     HealthStatus      `json:"status"`
	Uptime     string            `json:"uptime"`
	CheckedAt  time.Time         `json:"checked_at"`
	Components []ComponentHealth `json:"components"`
}

// Healthy reports whether the overall status is not unhealthy.
func (r Report) Healthy() bool {
	return r.Status != HealthStatusUnhealthy
}

// Checker runs named health checks on demand.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]HealthCheck
	started time.Time
	timeout time.Duration
	now     func() time.Time
}

// NewChecker creates a Checker. timeout bounds each check.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{
		checks:  make(map[string]HealthCheck),
		started: time.Now(),
		timeout: timeout,
		now:     time.Now,
	}
}

// Register adds or replaces a check.
func (c *Checker) Register(name string, check HealthCheck) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Check runs every registered check and recovers from panicking checks.
func (c *Checker) Check(ctx context.Context) Report {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	checks := make(map[string]HealthCheck, len(c.checks))
	for k, v := range c.checks {
		checks[k] = v
	}
	c.mu.RUnlock()
	sort.Strings(names)

	report := Report{
		Status:     HealthStatusHealthy,
		Uptime:     c.now().Sub(c.started).Round(time.Second).String(),
		CheckedAt:  c.now(),
		Components: make([]ComponentHealth, 0, len(names)),
	}
	for _, name := range names {
		h := c.run(ctx, name, checks[name])
		if h.Status.rank() > report.Status.rank() {
			report.Status = h.Status
		}
		report.Components = append(report.Components, h)
	}
	return report
}

func (c *Checker) run(ctx context.Context, name string, check HealthCheck) (h ComponentHealth) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := c.now()
	defer func() {
		if r := recover(); r != nil {
			h = ComponentHealth{Status: HealthStatusUnhealthy, Message: "check panicked"}
		}
		h.Name = name
		h.Latency = c.now().Sub(start)
	}()
	return check(ctx)
}

// PingCheck reports unhealthy when ping fails.
func PingCheck(ping func(ctx context.Context) error) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: HealthStatusUnhealthy, Message: err.Error()}
		}
		return ComponentHealth{Status: HealthStatusHealthy}
	}
}

// BreakerCheck reports an open breaker as degraded.
func BreakerCheck(b *Breaker) HealthCheck {
	return func(context.Context) ComponentHealth {
		s := b.Stats()
		h := ComponentHealth{
			Status: HealthStatusHealthy,
			Details: map[string]any{
				"state":    s.State,
				"calls":    s.Calls,
				"failures": s.Failures,
				"rejected": s.Rejected,
			},
		}
		if s.State != CircuitClosed {
			h.Status = HealthStatusDegraded
			h.Message = s.LastError
		}
		return h
	}
}
