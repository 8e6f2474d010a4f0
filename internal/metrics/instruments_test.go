// internal/metrics/instruments_test.go
package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstruments(t *testing.T) {
	t.Run("collectors register and expose series", func(t *testing.T) {
		i := NewInstruments()
		i.ErrorsTotal.WithLabelValues("network", "high").Inc()
		i.BreakerState.WithLabelValues("load-inventory").Set(1)
		i.ProbeDuration.WithLabelValues("database", "database-connection").Observe(0.05)
		i.AlertsFired.WithLabelValues("critical").Inc()
		i.RecoveriesTotal.WithLabelValues("network-reconnect", "success").Inc()
		i.OverallHealth.Set(HealthScore("degraded"))

		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/metrics", nil)
		i.Handler().ServeHTTP(rec, req)

		body, err := io.ReadAll(rec.Result().Body)
		require.NoError(t, err)
		out := string(body)

		assert.Contains(t, out, `sentinel_errors_total{severity="high",type="network"} 1`)
		assert.Contains(t, out, `sentinel_breaker_state{operation="load-inventory"} 1`)
		assert.Contains(t, out, `sentinel_alerts_fired_total{severity="critical"} 1`)
		assert.Contains(t, out, "sentinel_overall_health 0.5")
	})

	t.Run("instances are isolated", func(t *testing.T) {
		a := NewInstruments()
		b := NewInstruments()
		a.ErrorsTotal.WithLabelValues("network", "high").Inc()

		rec := httptest.NewRecorder()
		b.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
		body, err := io.ReadAll(rec.Result().Body)
		require.NoError(t, err)

		assert.NotContains(t, string(body), "sentinel_errors_total{")
	})
}

func TestHealthScore(t *testing.T) {
	assert.Equal(t, 1.0, HealthScore("healthy"))
	assert.Equal(t, 0.5, HealthScore("degraded"))
	assert.Equal(t, 0.25, HealthScore("unknown"))
	assert.Equal(t, 0.0, HealthScore("unhealthy"))
}
