// Package health runs connectivity checks against the components answering a
// question depends on.
package health

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Status is the state of one component or of the whole system.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDisabled  Status = "disabled"
)

// ErrDisabled is returned by a check whose component is not configured.
var ErrDisabled = errors.New("component disabled")

// DefaultTimeout bounds each check when Run is given no timeout.
const DefaultTimeout = 10 * time.Second

// Check probes one component. Detail is a short human-readable note such as
// "42 records".
type Check struct {
	Name string
	Run  func(ctx context.Context) (detail string, err error)
}

// ComponentStatus is the result of one check.
type ComponentStatus struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	Detail     string `json:"detail,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Report is the result of a full health run. Status is unhealthy when any
// component is; disabled components do not count.
type Report struct {
	Status     Status            `json:"status"`
	Components []ComponentStatus `json:"components"`
	Unhealthy  []string          `json:"unhealthy_components,omitempty"`
	CheckedAt  time.Time         `json:"checked_at"`
}

// Healthy reports whether no component failed.
func (r Report) Healthy() bool {
	return r.Status == StatusHealthy
}

// Run executes checks concurrently, each under its own timeout, and reports
// them in the order given.
func Run(ctx context.Context, timeout time.Duration, checks []Check) Report {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	report := Report{
		Status:     StatusHealthy,
		Components: make([]ComponentStatus, len(checks)),
		CheckedAt:  time.Now().UTC(),
	}

	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Go(func() {
			report.Components[i] = runCheck(ctx, timeout, c)
		})
	}
	wg.Wait()

	for _, c := range report.Components {
		if c.Status == StatusUnhealthy {
			report.Status = StatusUnhealthy
			report.Unhealthy = append(report.Unhealthy, c.Name)
		}
	}
	return report
}

func runCheck(ctx context.Context, timeout time.Duration, c Check) ComponentStatus {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	detail, err := c.Run(ctx)
	out := ComponentStatus{
		Name:       c.Name,
		Status:     StatusHealthy,
		DurationMs: time.Since(start).Milliseconds(),
		Detail:     detail,
	}
	switch {
	case errors.Is(err, ErrDisabled):
		out.Status = StatusDisabled
	case err != nil:
		out.Status = StatusUnhealthy
		out.Error = err.Error()
	}
	return out
}
