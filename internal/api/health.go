package api

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// HealthChecker runs named dependency probes with a per-probe timeout.
type HealthChecker struct {
	mu      sync.RWMutex
	checks  map[string]HealthCheck
	timeout time.Duration
}

// ComponentHealth is the outcome of one probe.
type ComponentHealth struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// HealthReport aggregates all probes.
type HealthReport struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// NewHealthChecker creates an empty checker.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks:  make(map[string]HealthCheck),
		timeout: 2 * time.Second,
	}
}

// Register adds or replaces a named probe.
func (h *HealthChecker) Register(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Check runs every probe concurrently.
func (h *HealthChecker) Check(ctx context.Context) HealthReport {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	checks := make(map[string]HealthCheck, len(h.checks))
	for k, v := range h.checks {
		checks[k] = v
	}
	h.mu.RUnlock()
	sort.Strings(names)

	report := HealthReport{
		Status:     "healthy",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]ComponentHealth, len(names)),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string, check HealthCheck) {
			defer wg.Done()

			probeCtx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()

			start := time.Now()
			err := check(probeCtx)
			result := ComponentHealth{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				result.Status = "unhealthy"
				result.Error = err.Error()
			}

			mu.Lock()
			report.Components[name] = result
			if err != nil {
				report.Status = "unhealthy"
			}
			mu.Unlock()
		}(name, checks[name])
	}
	wg.Wait()

	return report
}

func (s *Server) handleHealth(c *gin.Context) {
	report := s.deps.Health.Check(c.Request.Context())
	status := http.StatusOK
	if report.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
