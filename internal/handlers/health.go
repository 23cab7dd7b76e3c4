package handlers

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
	"github.com/loziogigio/vinc-pim-sub016/internal/services"
)

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	system  services.SystemService
	clock   func() time.Time
	started time.Time
}

// HealthOption customises the HealthHandlers construction.
type HealthOption func(*HealthHandlers)

// NewHealthHandlers builds the probe handlers with optional overrides.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		clock: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.started.IsZero() {
		h.started = h.clock()
	}
	return h
}

// WithHealthSystemService injects the readiness aggregation service.
func WithHealthSystemService(system services.SystemService) HealthOption {
	return func(h *HealthHandlers) {
		h.system = system
	}
}

// WithHealthClock overrides the time source, mainly for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = func() time.Time { return clock().UTC() }
		}
	}
}

// WithHealthStartedAt pins the process start time used for uptime reporting.
func WithHealthStartedAt(started time.Time) HealthOption {
	return func(h *HealthHandlers) {
		h.started = started.UTC()
	}
}

// Healthz reports process liveness without touching any dependency.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    string(domain.HealthStatusOK),
		"uptime":    now.Sub(h.started).String(),
		"timestamp": now.Format(time.RFC3339),
	})
}

// Readyz probes the service dependencies and reports 503 until all pass.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.system == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, map[string]any{
			"status":  string(domain.HealthStatusError),
			"details": []string{"system service not configured"},
		})
		return
	}

	report, err := h.system.Health(r.Context())
	if err != nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, map[string]any{
			"status":  string(domain.HealthStatusError),
			"details": []string{err.Error()},
		})
		return
	}

	checks := make(map[string]map[string]any, len(report.Checks))
	details := make([]string, 0)
	for name, check := range report.Checks {
		entry := map[string]any{
			"status": string(check.Status),
		}
		if check.Latency > 0 {
			entry["latency"] = check.Latency.String()
		}
		if check.Error != "" {
			entry["error"] = check.Error
			details = append(details, fmt.Sprintf("%s: %s", name, check.Error))
		}
		checks[name] = entry
	}
	sort.Strings(details)

	status := http.StatusOK
	if report.Status != domain.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, status, map[string]any{
		"status":       string(report.Status),
		"checks":       checks,
		"details":      details,
		"generated_at": formatTime(report.GeneratedAt),
	})
}
