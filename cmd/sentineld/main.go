// cmd/sentineld/main.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinovault/sentinel/internal/alerting"
	"github.com/clinovault/sentinel/internal/api"
	"github.com/clinovault/sentinel/internal/audit"
	"github.com/clinovault/sentinel/internal/config"
	"github.com/clinovault/sentinel/internal/diagnostic"
	"github.com/clinovault/sentinel/internal/faults"
	"github.com/clinovault/sentinel/internal/metrics"
	"github.com/clinovault/sentinel/internal/recovery"
	"github.com/clinovault/sentinel/internal/resilience"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallback, _ := zap.NewProduction()
		fallback.Fatal("failed to load configuration", zap.Error(err))
	}

	logger := newLogger(cfg.Server.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Audit sink
	var sink audit.Sink = audit.NopSink{}
	var pg *audit.PostgresSink
	if cfg.Database.Enabled {
		pg, err = audit.NewPostgresSink(audit.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			logger.Fatal("failed to open audit database", zap.Error(err))
		}
		defer func() { _ = pg.Close() }()

		bootstrap := func(ctx context.Context) error { return pg.CreateTables(ctx) }
		if cfg.ErrorHandler.EnableRetry {
			retry := resilience.NewRetryPolicy(faults.NewClassifier(),
				resilience.WithMaxAttempts(cfg.ErrorHandler.MaxRetries),
				resilience.WithBaseDelay(cfg.ErrorHandler.RetryBaseDelay),
				resilience.WithRetryLogger(logger))
			err = retry.Execute(ctx, faults.ErrorContext{
				Component: "audit", Action: "bootstrap",
			}, bootstrap)
		} else {
			err = bootstrap(ctx)
		}
		if err != nil {
			logger.Fatal("failed to prepare audit tables", zap.Error(err))
		}
		sink = pg
		logger.Info("audit persistence enabled",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.Database))
	}

	instruments := metrics.NewInstruments()

	breakers := resilience.NewBreakerSet(
		resilience.WithFailureThreshold(cfg.ErrorHandler.CircuitBreakerThreshold),
		resilience.WithOpenDuration(cfg.ErrorHandler.CircuitBreakerTimeout),
		resilience.WithCircuitLogger(logger))

	dispatcher := recovery.NewDispatcher(
		recovery.WithDispatcherLogger(logger))
	registerDefaultStrategies(dispatcher, breakers)

	// Every error routed into recovery leaves an audit record.
	remediator := audit.NewRecordingRemediator(dispatcher, sink, logger)

	// Diagnostics
	registry := diagnostic.NewRegistry()
	if pg != nil {
		registry.Register(diagnostic.NewDatabaseCheck(pg.DB()))
	}
	registry.Register(diagnostic.NewEnvCheck("configuration", []string{}))

	diagCfg := diagnostic.Config{
		EnableRealTimeMonitoring: cfg.Diagnostics.EnableRealTimeMonitoring,
		MonitoringInterval:       cfg.Diagnostics.MonitoringInterval,
		HealthCheckTimeout:       cfg.Diagnostics.HealthCheckTimeout,
		MaxRetries:               cfg.Diagnostics.MaxRetries,
		EnableAutoRemediation:    cfg.Diagnostics.EnableAutoRemediation,
		CriticalThreshold:        cfg.Diagnostics.CriticalThreshold,
		WarningThreshold:         cfg.Diagnostics.WarningThreshold,
		Components:               cfg.Diagnostics.Components,
	}
	engine := diagnostic.NewEngine(registry, diagCfg,
		diagnostic.WithEngineLogger(logger),
		diagnostic.WithRemediator(remediator))

	// Alerting
	alertOpts := []alerting.ManagerOption{
		alerting.WithManagerLogger(logger),
		alerting.WithManagerRemediator(remediator),
		alerting.WithNotifier(alerting.NewHTTPNotifier(cfg.Alerting.EmailEndpoint)),
	}
	if cfg.Alerting.ActionTimeout > 0 {
		alertOpts = append(alertOpts, alerting.WithActionTimeout(cfg.Alerting.ActionTimeout))
	}
	alerts := alerting.NewManager(alertOpts...)
	if cfg.Alerting.Enabled {
		for _, rule := range alerting.DefaultRules() {
			if err := alerts.AddRule(rule); err != nil {
				logger.Warn("skipping default alert rule", zap.Error(err))
			}
		}
	}

	server := api.NewServer(cfg, logger, engine, alerts, instruments)

	if cfg.Diagnostics.EnableRealTimeMonitoring {
		engine.StartMonitoring(ctx)
		defer engine.StopMonitoring()
		go evaluateReports(ctx, cfg, engine, alerts, instruments, sink, breakers, logger)
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
		cancel()
	}()

	logger.Info("sentinel started", zap.Int("port", cfg.Server.Port))
	if err := server.Start(); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// registerDefaultStrategies wires the built-in recovery paths. The
// network strategy probes through a fresh breaker-protected no-op so a
// recovering dependency closes its breaker again.
func registerDefaultStrategies(d *recovery.Dispatcher, breakers *resilience.BreakerSet) {
	d.Register(faults.TypeNetwork, recovery.NewNetworkStrategy(func(ctx context.Context) error {
		return breakers.Get("connectivity-probe").Execute(ctx, func(context.Context) error {
			return nil
		})
	}))
	d.Register(faults.TypeValidation, recovery.NewValidationStrategy())
}

// evaluateReports feeds completed diagnostic reports into alerting,
// metrics and the audit sink.
func evaluateReports(ctx context.Context, cfg *config.Config, engine *diagnostic.Engine,
	alerts *alerting.Manager, instruments *metrics.Instruments, sink audit.Sink,
	breakers *resilience.BreakerSet, logger *zap.Logger) {

	ticker := time.NewTicker(cfg.Diagnostics.MonitoringInterval)
	defer ticker.Stop()

	var lastSeen string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, stats := range breakers.Stats() {
			instruments.BreakerState.WithLabelValues(stats.Operation).
				Set(breakerScore(stats.State))
		}

		report := engine.LastReport()
		if report == nil || report.ID == lastSeen {
			continue
		}
		lastSeen = report.ID

		instruments.OverallHealth.Set(metrics.HealthScore(string(report.OverallHealth)))
		if err := sink.RecordReport(ctx, report); err != nil {
			logger.Warn("failed to persist diagnostic report", zap.Error(err))
		}

		now := time.Now().UTC()
		var samples []alerting.Metric
		for _, component := range report.Components {
			samples = append(samples,
				alerting.Metric{Name: "error_rate", Component: component.Name,
					Value: component.ErrorRate, Timestamp: now},
				alerting.Metric{Name: "avg_response_time_ms", Component: component.Name,
					Value: float64(component.ResponseTime.Milliseconds()), Timestamp: now},
				alerting.Metric{Name: "health_score", Component: component.Name,
					Value: metrics.HealthScore(string(component.Status)), Timestamp: now})

			for _, issue := range component.Issues {
				instruments.ErrorsTotal.WithLabelValues("system", string(issue.Severity)).Inc()
				if err := sink.RecordIssue(ctx, issue); err != nil {
					logger.Warn("failed to persist issue", zap.Error(err))
				}
			}
		}

		if cfg.Alerting.Enabled {
			for _, alert := range alerts.CheckRules(ctx, samples) {
				instruments.AlertsFired.WithLabelValues(string(alert.Severity)).Inc()
				if err := sink.RecordAlert(ctx, alert); err != nil {
					logger.Warn("failed to persist alert", zap.Error(err))
				}
			}
		}
	}
}

func breakerScore(state string) float64 {
	switch state {
	case "open":
		return 1
	case "half-open":
		return 2
	default:
		return 0
	}
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if parsed, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(parsed)
	}
	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
