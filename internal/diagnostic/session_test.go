// internal/diagnostic/session_test.go
package diagnostic

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clinovault/sentinel/internal/faults"
	"github.com/clinovault/sentinel/internal/recovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticCheck(name, component string, status Status) Check {
	return Check{
		Name:      name,
		Component: component,
		Timeout:   time.Second,
		Enabled:   true,
		Probe: func(context.Context) Result {
			return Result{Status: status, Message: string(status)}
		},
	}
}

func newTestEngine(t *testing.T, checks ...Check) *Engine {
	t.Helper()
	registry := NewRegistry()
	for _, c := range checks {
		registry.Register(c)
	}
	return NewEngine(registry, DefaultConfig())
}

func TestEngine_Run(t *testing.T) {
	t.Run("all healthy checks produce a healthy report", func(t *testing.T) {
		e := newTestEngine(t,
			staticCheck("database-connection", "database", StatusHealthy),
			staticCheck("api-health", "api", StatusHealthy))

		report, err := e.Run(context.Background(), TriggerManual)

		require.NoError(t, err)
		assert.Equal(t, StatusHealthy, report.OverallHealth)
		assert.Len(t, report.Components, 2)
		assert.Empty(t, report.CriticalIssues)
		assert.NotEmpty(t, report.ID)
	})

	t.Run("one unhealthy component drags overall health down", func(t *testing.T) {
		e := newTestEngine(t,
			staticCheck("database-connection", "database", StatusHealthy),
			staticCheck("api-health", "api", StatusUnhealthy))

		report, err := e.Run(context.Background(), TriggerManual)

		require.NoError(t, err)
		assert.Equal(t, StatusUnhealthy, report.OverallHealth)

		var api ComponentReport
		for _, c := range report.Components {
			if c.Name == "api" {
				api = c
			}
		}
		require.Len(t, api.Issues, 1)
		assert.False(t, api.Issues[0].Resolved, "issues start unresolved")
		assert.Equal(t, "api", api.Issues[0].Component)
	})

	t.Run("failed probe is retried within the component", func(t *testing.T) {
		var calls atomic.Int32
		e := newTestEngine(t, Check{
			Name:      "flaky",
			Component: "storage",
			Timeout:   time.Second,
			Retries:   2,
			Enabled:   true,
			Probe: func(context.Context) Result {
				if calls.Add(1) < 3 {
					return Result{Status: StatusUnhealthy, Message: "not yet"}
				}
				return Result{Status: StatusHealthy, Message: "ok"}
			},
		})

		report, err := e.Run(context.Background(), TriggerAutomatic)

		require.NoError(t, err)
		assert.Equal(t, int32(3), calls.Load())
		assert.Equal(t, StatusHealthy, report.OverallHealth)
	})

	t.Run("timed out probe reports unhealthy", func(t *testing.T) {
		e := newTestEngine(t, Check{
			Name:      "slow",
			Component: "storage",
			Timeout:   20 * time.Millisecond,
			Enabled:   true,
			Probe: func(ctx context.Context) Result {
				<-ctx.Done()
				time.Sleep(5 * time.Millisecond)
				return Result{Status: StatusHealthy}
			},
		})

		report, err := e.Run(context.Background(), TriggerManual)

		require.NoError(t, err)
		assert.Equal(t, StatusUnhealthy, report.OverallHealth)
		require.Len(t, report.Components, 1)
		assert.Contains(t, report.Components[0].Issues[0].Message, "timeout")
	})

	t.Run("panicking probe becomes a critical issue", func(t *testing.T) {
		e := newTestEngine(t, Check{
			Name:      "volatile",
			Component: "cache",
			Timeout:   time.Second,
			Enabled:   true,
			Probe: func(context.Context) Result {
				panic("probe exploded")
			},
		})

		report, err := e.Run(context.Background(), TriggerManual)

		require.NoError(t, err)
		assert.Equal(t, StatusUnhealthy, report.OverallHealth)
		require.Len(t, report.CriticalIssues, 1)
		assert.Contains(t, report.CriticalIssues[0].Message, "panicked")
	})

	t.Run("cancellation publishes no report", func(t *testing.T) {
		e := newTestEngine(t,
			staticCheck("database-connection", "database", StatusHealthy))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		report, err := e.Run(ctx, TriggerManual)

		assert.Nil(t, report)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, e.LastReport())

		sessions := e.Sessions()
		require.Len(t, sessions, 1)
		assert.Equal(t, SessionCancelled, sessions[0].Status)
	})

	t.Run("error rate escalates component status", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(staticCheck("ok", "api", StatusHealthy))
		registry.Register(staticCheck("degraded", "api", StatusDegraded))

		cfg := DefaultConfig()
		cfg.MaxRetries = 0
		cfg.CriticalThreshold = 0.5
		e := NewEngine(registry, cfg)

		report, err := e.Run(context.Background(), TriggerManual)

		require.NoError(t, err)
		require.Len(t, report.Components, 1)
		assert.Equal(t, StatusUnhealthy, report.Components[0].Status,
			"half the checks failing crosses the critical threshold")
	})

	t.Run("component allow-list filters checks", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(staticCheck("database-connection", "database", StatusUnhealthy))
		registry.Register(staticCheck("api-health", "api", StatusHealthy))

		cfg := DefaultConfig()
		cfg.Components = []string{"api"}
		e := NewEngine(registry, cfg)

		report, err := e.Run(context.Background(), TriggerManual)

		require.NoError(t, err)
		require.Len(t, report.Components, 1)
		assert.Equal(t, "api", report.Components[0].Name)
		assert.Equal(t, StatusHealthy, report.OverallHealth)
	})

	t.Run("session records one action per check", func(t *testing.T) {
		e := newTestEngine(t,
			staticCheck("database-connection", "database", StatusHealthy),
			staticCheck("api-health", "api", StatusUnhealthy))

		_, err := e.Run(context.Background(), TriggerError)
		require.NoError(t, err)

		sessions := e.Sessions()
		require.Len(t, sessions, 1)
		assert.Equal(t, TriggerError, sessions[0].Trigger)
		assert.Equal(t, SessionCompleted, sessions[0].Status)
		assert.Len(t, sessions[0].Actions, 2)
	})

	t.Run("last report tracks the most recent run", func(t *testing.T) {
		e := newTestEngine(t,
			staticCheck("database-connection", "database", StatusHealthy))
		assert.Nil(t, e.LastReport())

		first, err := e.Run(context.Background(), TriggerManual)
		require.NoError(t, err)
		second, err := e.Run(context.Background(), TriggerManual)
		require.NoError(t, err)

		assert.NotEqual(t, first.ID, second.ID)
		assert.Equal(t, second.ID, e.LastReport().ID)
	})
}

func TestEngine_Monitoring(t *testing.T) {
	t.Run("monitoring loop runs sessions until stopped", func(t *testing.T) {
		var runs atomic.Int32
		registry := NewRegistry()
		registry.Register(Check{
			Name:      "counter",
			Component: "api",
			Timeout:   time.Second,
			Enabled:   true,
			Probe: func(context.Context) Result {
				runs.Add(1)
				return Result{Status: StatusHealthy}
			},
		})

		cfg := DefaultConfig()
		cfg.MonitoringInterval = 10 * time.Millisecond
		e := NewEngine(registry, cfg)

		e.StartMonitoring(context.Background())
		assert.Eventually(t, func() bool { return runs.Load() >= 2 },
			time.Second, 5*time.Millisecond)
		e.StopMonitoring()

		settled := runs.Load()
		time.Sleep(50 * time.Millisecond)
		assert.LessOrEqual(t, runs.Load(), settled+1,
			"loop no longer scheduling after stop")
	})

	t.Run("critical issues feed the remediator", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(Check{
			Name:      "broken",
			Component: "database",
			Timeout:   time.Second,
			Enabled:   true,
			Probe: func(context.Context) Result {
				panic("storage corrupted")
			},
		})

		cfg := DefaultConfig()
		cfg.MonitoringInterval = 10 * time.Millisecond
		cfg.MaxRetries = 0
		cfg.EnableAutoRemediation = true

		remediator := &recordingRemediator{}
		e := NewEngine(registry, cfg, WithRemediator(remediator))

		e.StartMonitoring(context.Background())
		defer e.StopMonitoring()

		assert.Eventually(t, func() bool { return remediator.calls.Load() >= 1 },
			time.Second, 5*time.Millisecond)
		assert.Equal(t, "database", remediator.lastComponent.Load().(string))
	})
}

type recordingRemediator struct {
	calls         atomic.Int32
	lastComponent atomic.Value
}

func (r *recordingRemediator) ExecuteRecovery(_ context.Context, perr *faults.ProcessedError) recovery.Result {
	r.calls.Add(1)
	r.lastComponent.Store(perr.Context.Component)
	return recovery.Result{Success: true}
}
