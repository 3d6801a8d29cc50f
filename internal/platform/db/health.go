package db

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
)

// Check probes one dependency; a nil error means healthy.
type Check func(ctx context.Context) error

// ComponentHealth is the outcome of one Check.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// HealthReport aggregates the component checks.
type HealthReport struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
}

// RunChecks runs every check under one deadline.
func RunChecks(ctx context.Context, checks map[string]Check) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	report := HealthReport{Status: "healthy", Components: make(map[string]ComponentHealth, len(checks))}
	for _, name := range names {
		if err := checks[name](ctx); err != nil {
			report.Status = "unhealthy"
			report.Components[name] = ComponentHealth{Error: err.Error()}
			continue
		}
		report.Components[name] = ComponentHealth{Healthy: true}
	}
	return report
}

// HealthHandler serves RunChecks, answering 503 when any check fails.
func HealthHandler(checks map[string]Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		report := RunChecks(c.Request().Context(), checks)
		if report.Status != "healthy" {
			return c.JSON(http.StatusServiceUnavailable, report)
		}
		return c.JSON(http.StatusOK, report)
	}
}
