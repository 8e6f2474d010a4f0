// internal/alerting/manager_test.go
package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/clinovault/sentinel/internal/faults"
	"github.com/clinovault/sentinel/internal/recovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(name string, value float64) Metric {
	return Metric{Name: name, Value: value, Timestamp: time.Now().UTC()}
}

func addRule(t *testing.T, m *Manager, rule *Rule) *Rule {
	t.Helper()
	require.NoError(t, m.AddRule(rule))
	return rule
}

func TestCondition_Holds(t *testing.T) {
	assert.True(t, ConditionGreaterThan.Holds(5.1, 5.0))
	assert.False(t, ConditionGreaterThan.Holds(4.9, 5.0))
	assert.False(t, ConditionGreaterThan.Holds(5.0, 5.0))
	assert.True(t, ConditionLessThan.Holds(4.9, 5.0))
	assert.True(t, ConditionEquals.Holds(5.0, 5.0))
	assert.True(t, ConditionNotEquals.Holds(4.9, 5.0))
	assert.False(t, Condition("between").Holds(5.0, 5.0))
}

func TestManager_CheckRules(t *testing.T) {
	t.Run("fires above threshold and not below", func(t *testing.T) {
		m := NewManager()
		rule := addRule(t, m, &Rule{
			Name: "latency", Metric: "latency_s",
			Condition: ConditionGreaterThan, Threshold: 5.0,
		})

		fired := m.CheckRules(context.Background(), []Metric{sample("latency_s", 4.9)})
		assert.Empty(t, fired)
		assert.Empty(t, m.All(), "suppression and misses create no alert objects")

		fired = m.CheckRules(context.Background(), []Metric{sample("latency_s", 5.1)})
		require.Len(t, fired, 1)
		assert.Equal(t, rule.ID, fired[0].RuleID)
		assert.Equal(t, 5.1, fired[0].Value)
		assert.Equal(t, 5.0, fired[0].Threshold)
		assert.False(t, fired[0].Resolved)
	})

	t.Run("cooldown yields exactly one alert per window", func(t *testing.T) {
		m := NewManager()
		addRule(t, m, &Rule{
			Name: "errors", Metric: "error_rate",
			Condition: ConditionGreaterThan, Threshold: 0.1,
			Cooldown: 50 * time.Millisecond,
		})
		breach := []Metric{sample("error_rate", 0.5)}

		first := m.CheckRules(context.Background(), breach)
		second := m.CheckRules(context.Background(), breach)

		require.Len(t, first, 1)
		assert.Empty(t, second)
		assert.Len(t, m.All(), 1, "no alert object is created for a suppressed breach")

		require.NoError(t, m.ResolveAlert(first[0].ID))
		time.Sleep(60 * time.Millisecond)

		third := m.CheckRules(context.Background(), breach)
		require.Len(t, third, 1)
		assert.NotEqual(t, first[0].ID, third[0].ID)
	})

	t.Run("breach after the cooldown window fires again while unresolved", func(t *testing.T) {
		m := NewManager()
		addRule(t, m, &Rule{
			Name: "errors", Metric: "error_rate",
			Condition: ConditionGreaterThan, Threshold: 0.1,
			Cooldown: 30 * time.Millisecond,
		})
		breach := []Metric{sample("error_rate", 0.5)}

		first := m.CheckRules(context.Background(), breach)
		require.Len(t, first, 1)
		time.Sleep(50 * time.Millisecond)

		second := m.CheckRules(context.Background(), breach)
		require.Len(t, second, 1)
		assert.NotEqual(t, first[0].ID, second[0].ID)
		assert.Len(t, m.Active(), 2, "the earlier alert stays open alongside the new one")
	})

	t.Run("concurrent evaluations of one breach fire once", func(t *testing.T) {
		m := NewManager()
		addRule(t, m, &Rule{
			Name: "errors", Metric: "error_rate",
			Condition: ConditionGreaterThan, Threshold: 0.1,
			Cooldown: time.Minute,
		})
		breach := []Metric{sample("error_rate", 0.5)}

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				m.CheckRules(context.Background(), breach)
			}()
		}
		wg.Wait()

		assert.Len(t, m.All(), 1)
	})

	t.Run("only the latest matching metric is evaluated", func(t *testing.T) {
		m := NewManager()
		addRule(t, m, &Rule{
			Name: "latency", Metric: "latency_s",
			Condition: ConditionGreaterThan, Threshold: 5.0,
		})

		old := Metric{Name: "latency_s", Value: 9.0,
			Timestamp: time.Now().Add(-time.Minute)}
		fresh := Metric{Name: "latency_s", Value: 1.0, Timestamp: time.Now()}

		assert.Empty(t, m.CheckRules(context.Background(), []Metric{old, fresh}),
			"stale breach superseded by a healthy sample")
	})

	t.Run("component-scoped rule ignores other components", func(t *testing.T) {
		m := NewManager()
		addRule(t, m, &Rule{
			Name: "db errors", Component: "database", Metric: "error_rate",
			Condition: ConditionGreaterThan, Threshold: 0.1,
		})

		apiBreach := Metric{Name: "error_rate", Component: "api",
			Value: 0.9, Timestamp: time.Now()}
		assert.Empty(t, m.CheckRules(context.Background(), []Metric{apiBreach}))

		dbBreach := Metric{Name: "error_rate", Component: "database",
			Value: 0.9, Timestamp: time.Now()}
		assert.Len(t, m.CheckRules(context.Background(), []Metric{dbBreach}), 1)
	})

	t.Run("disabled rules never fire", func(t *testing.T) {
		m := NewManager()
		rule := addRule(t, m, &Rule{
			Name: "latency", Metric: "latency_s",
			Condition: ConditionGreaterThan, Threshold: 5.0,
		})
		require.NoError(t, m.SetRuleEnabled(rule.ID, false))

		assert.Empty(t, m.CheckRules(context.Background(), []Metric{sample("latency_s", 10)}))
	})
}

type recordingNotifier struct {
	mu       sync.Mutex
	webhooks []string
	emails   []string
	fail     bool
}

func (n *recordingNotifier) SendWebhook(_ context.Context, endpoint string, _ *Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.webhooks = append(n.webhooks, endpoint)
	if n.fail {
		return errors.New("webhook endpoint down")
	}
	return nil
}

func (n *recordingNotifier) SendEmail(_ context.Context, recipient string, _ *Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emails = append(n.emails, recipient)
	return nil
}

type stubRemediator struct {
	mu    sync.Mutex
	calls []*faults.ProcessedError
	ok    bool
}

func (r *stubRemediator) ExecuteRecovery(_ context.Context, perr *faults.ProcessedError) recovery.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, perr)
	return recovery.Result{Success: r.ok}
}

func TestManager_TriggerAlert(t *testing.T) {
	t.Run("one failing action does not block the rest", func(t *testing.T) {
		notifier := &recordingNotifier{fail: true}
		m := NewManager(WithNotifier(notifier))
		rule := addRule(t, m, &Rule{
			Name: "latency", Metric: "latency_s",
			Condition: ConditionGreaterThan, Threshold: 5.0,
			Actions: []Action{
				{Type: ActionWebhook, Target: "https://hooks.example.com/a", Enabled: true},
				{Type: ActionEmail, Target: "oncall@example.com", Enabled: true},
			},
		})

		fired := m.CheckRules(context.Background(), []Metric{sample("latency_s", 9)})
		require.Len(t, fired, 1)
		require.Equal(t, rule.ID, fired[0].RuleID)

		assert.Equal(t, []string{"https://hooks.example.com/a"}, notifier.webhooks)
		assert.Equal(t, []string{"oncall@example.com"}, notifier.emails,
			"email still delivered after webhook failure")
	})

	t.Run("recovery action reaches the dispatcher", func(t *testing.T) {
		remediator := &stubRemediator{ok: true}
		m := NewManager(WithManagerRemediator(remediator))
		addRule(t, m, &Rule{
			Name: "db down", Component: "database", Metric: "health_score",
			Condition: ConditionLessThan, Threshold: 0.5,
			Actions:   []Action{{Type: ActionRecovery, Enabled: true}},
		})

		breach := Metric{Name: "health_score", Component: "database",
			Value: 0.0, Timestamp: time.Now()}
		fired := m.CheckRules(context.Background(), []Metric{breach})
		require.Len(t, fired, 1)

		require.Len(t, remediator.calls, 1)
		assert.Equal(t, "database", remediator.calls[0].Context.Component)
	})

	t.Run("disabled actions are skipped", func(t *testing.T) {
		notifier := &recordingNotifier{}
		m := NewManager(WithNotifier(notifier))
		addRule(t, m, &Rule{
			Name: "latency", Metric: "latency_s",
			Condition: ConditionGreaterThan, Threshold: 5.0,
			Actions: []Action{
				{Type: ActionWebhook, Target: "https://hooks.example.com/a", Enabled: false},
			},
		})

		m.CheckRules(context.Background(), []Metric{sample("latency_s", 9)})

		assert.Empty(t, notifier.webhooks)
	})
}

func TestManager_ResolveAlert(t *testing.T) {
	m := NewManager()
	addRule(t, m, &Rule{
		Name: "latency", Metric: "latency_s",
		Condition: ConditionGreaterThan, Threshold: 5.0,
	})
	fired := m.CheckRules(context.Background(), []Metric{sample("latency_s", 9)})
	require.Len(t, fired, 1)
	id := fired[0].ID

	require.NoError(t, m.ResolveAlert(id))
	resolved := m.Get(id)
	require.NotNil(t, resolved.ResolvedAt)
	firstStamp := *resolved.ResolvedAt

	require.NoError(t, m.ResolveAlert(id), "second resolve is a no-op")
	assert.Equal(t, firstStamp, *m.Get(id).ResolvedAt)

	assert.Error(t, m.ResolveAlert("no-such-alert"))
	assert.Empty(t, m.Active())
	assert.Len(t, m.All(), 1)
}

func TestManager_AddRule(t *testing.T) {
	m := NewManager()

	assert.Error(t, m.AddRule(nil))
	assert.Error(t, m.AddRule(&Rule{Metric: "x", Condition: ConditionEquals}))
	assert.Error(t, m.AddRule(&Rule{Name: "x", Metric: "x", Condition: "between"}))

	rule := &Rule{Name: "ok", Metric: "x", Condition: ConditionEquals}
	require.NoError(t, m.AddRule(rule))
	assert.NotEmpty(t, rule.ID)
	assert.True(t, rule.Enabled)
	assert.Equal(t, 5*time.Minute, rule.Cooldown)

	dup := &Rule{ID: rule.ID, Name: "dup", Metric: "x", Condition: ConditionEquals}
	assert.Error(t, m.AddRule(dup))
}

func TestDefaultRules(t *testing.T) {
	m := NewManager()
	for _, rule := range DefaultRules() {
		require.NoError(t, m.AddRule(rule))
	}
	assert.Len(t, m.Rules(), 4)
}

func TestHTTPNotifier(t *testing.T) {
	t.Run("webhook posts the alert as JSON", func(t *testing.T) {
		var received Alert
		server := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
				w.WriteHeader(http.StatusAccepted)
			}))
		defer server.Close()

		n := NewHTTPNotifier("")
		alert := &Alert{ID: "a1", Title: "latency", Value: 9}

		require.NoError(t, n.SendWebhook(context.Background(), server.URL, alert))
		assert.Equal(t, "a1", received.ID)
	})

	t.Run("rejection surfaces as an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			}))
		defer server.Close()

		n := NewHTTPNotifier("")
		err := n.SendWebhook(context.Background(), server.URL, &Alert{ID: "a1"})
		assert.ErrorContains(t, err, "502")
	})

	t.Run("email requires a configured relay", func(t *testing.T) {
		n := NewHTTPNotifier("")
		assert.Error(t, n.SendEmail(context.Background(), "oncall@example.com", &Alert{}))
	})
}
