// internal/diagnostic/checks.go
package diagnostic

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"
)

// NewDatabaseCheck probes connectivity and pool pressure on a database
// handle.
func NewDatabaseCheck(db *sql.DB) Check {
	return Check{
		Name:      "database-connection",
		Component: "database",
		Timeout:   5 * time.Second,
		Retries:   2,
		Enabled:   true,
		Interval:  30 * time.Second,
		Probe: func(ctx context.Context) Result {
			if err := db.PingContext(ctx); err != nil {
				return Result{
					Status:  StatusUnhealthy,
					Message: fmt.Sprintf("database ping failed: %v", err),
					Err:     err,
				}
			}

			stats := db.Stats()
			metrics := map[string]float64{
				"open_connections": float64(stats.OpenConnections),
				"in_use":           float64(stats.InUse),
				"idle":             float64(stats.Idle),
				"wait_count":       float64(stats.WaitCount),
			}

			if stats.MaxOpenConnections > 0 &&
				stats.OpenConnections >= stats.MaxOpenConnections {
				return Result{
					Status:  StatusDegraded,
					Message: "database connection pool saturated",
					Metrics: metrics,
				}
			}
			return Result{
				Status:  StatusHealthy,
				Message: "database reachable",
				Metrics: metrics,
			}
		},
	}
}

// NewHTTPCheck probes an HTTP endpoint. A reachable but slow endpoint
// reports degraded rather than unhealthy.
func NewHTTPCheck(name, component, url string, client *http.Client, slowAfter time.Duration) Check {
	if client == nil {
		client = http.DefaultClient
	}
	if slowAfter <= 0 {
		slowAfter = 2 * time.Second
	}
	return Check{
		Name:      name,
		Component: component,
		Timeout:   10 * time.Second,
		Retries:   2,
		Enabled:   true,
		Interval:  time.Minute,
		Probe: func(ctx context.Context) Result {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return Result{
					Status:  StatusUnhealthy,
					Message: fmt.Sprintf("invalid endpoint %s: %v", url, err),
					Err:     err,
				}
			}

			start := time.Now()
			resp, err := client.Do(req)
			if err != nil {
				return Result{
					Status:  StatusUnhealthy,
					Message: fmt.Sprintf("endpoint unreachable: %v", err),
					Err:     err,
				}
			}
			defer resp.Body.Close()
			elapsed := time.Since(start)

			metrics := map[string]float64{
				"status_code": float64(resp.StatusCode),
				"latency_ms":  float64(elapsed.Milliseconds()),
			}

			switch {
			case resp.StatusCode >= 500:
				return Result{
					Status:  StatusUnhealthy,
					Message: fmt.Sprintf("endpoint returned %d", resp.StatusCode),
					Metrics: metrics,
				}
			case resp.StatusCode >= 400:
				return Result{
					Status:  StatusDegraded,
					Message: fmt.Sprintf("endpoint returned %d", resp.StatusCode),
					Metrics: metrics,
				}
			case elapsed > slowAfter:
				return Result{
					Status:  StatusDegraded,
					Message: fmt.Sprintf("endpoint slow: %v", elapsed.Round(time.Millisecond)),
					Metrics: metrics,
				}
			}
			return Result{
				Status:  StatusHealthy,
				Message: "endpoint responding",
				Metrics: metrics,
			}
		},
	}
}

// NewEnvCheck verifies required environment variables are present.
func NewEnvCheck(component string, required []string) Check {
	return Check{
		Name:      "environment-config",
		Component: component,
		Timeout:   time.Second,
		Enabled:   true,
		Interval:  5 * time.Minute,
		Probe: func(ctx context.Context) Result {
			var missing []string
			for _, name := range required {
				if os.Getenv(name) == "" {
					missing = append(missing, name)
				}
			}
			if len(missing) > 0 {
				return Result{
					Status:  StatusUnhealthy,
					Message: fmt.Sprintf("missing environment variables: %v", missing),
					Metrics: map[string]float64{"missing": float64(len(missing))},
				}
			}
			return Result{
				Status:  StatusHealthy,
				Message: "environment configuration complete",
				Metrics: map[string]float64{"missing": 0},
			}
		},
	}
}
