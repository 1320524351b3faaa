package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/t77yq/alert-triage/internal/anomaly"
	"github.com/t77yq/alert-triage/internal/correlation"
	"github.com/t77yq/alert-triage/internal/escalation"
	"github.com/t77yq/alert-triage/internal/ingest"
	"github.com/t77yq/alert-triage/internal/model"
	"github.com/t77yq/alert-triage/internal/monitor"
	"github.com/t77yq/alert-triage/internal/opscontext"
	"github.com/t77yq/alert-triage/internal/storage"
	"github.com/t77yq/alert-triage/internal/triage"
)

func main() {
	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Load configuration
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		logger.Fatal("Failed to read config file", zap.Error(err))
	}

	// Connect to NATS with more options
	opts := []nats.Option{
		nats.Name(viper.GetString("app.name")),
		nats.MaxReconnects(viper.GetInt("nats.max_reconnects")),
		nats.ReconnectWait(viper.GetDuration("nats.reconnect_wait")),
		nats.Timeout(viper.GetDuration("nats.connect_timeout")),
		nats.PingInterval(20 * time.Second),
		nats.MaxPingsOutstanding(5),
		nats.DrainTimeout(30 * time.Second),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error("NATS connection error",
				zap.String("subject", sub.Subject),
				zap.Error(err))
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected",
				zap.String("url", nc.ConnectedUrl()))
		}),
	}

	// Connect with retry
	var nc *nats.Conn
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		nc, err = nats.Connect(viper.GetString("nats.urls.0"), opts...)
		if err == nil {
			break
		}
		logger.Warn("Failed to connect to NATS, retrying...",
			zap.Int("attempt", i+1),
			zap.Error(err))
		time.Sleep(time.Second * time.Duration(i+1))
	}
	if err != nil {
		logger.Fatal("Failed to connect to NATS after retries", zap.Error(err))
	}
	defer nc.Close()

	logger.Info("Connected to NATS successfully",
		zap.String("url", nc.ConnectedUrl()))

	// Create JetStream context
	js, err := nc.JetStream()
	if err != nil {
		logger.Fatal("Failed to create JetStream context", zap.Error(err))
	}

	// Open the historical alert store
	store, err := storage.NewSQLiteHistory(logger, viper.GetString("storage.path"))
	if err != nil {
		logger.Fatal("Failed to open alert history store", zap.Error(err))
	}
	defer store.Close()

	// Operational context provider with timeout fail-safe
	provider := opscontext.NewSnapshotProvider(model.OperationalContext{
		TypicalErrorRate:       viper.GetFloat64("baseline.error_rate"),
		TypicalResponseTime:    viper.GetFloat64("baseline.response_time"),
		TypicalConcurrentUsers: viper.GetFloat64("baseline.concurrent_users"),
	})
	safeProvider := opscontext.NewSafe(provider, viper.GetDuration("context.timeout"), logger)

	// Anomaly model, gate, and retraining schedule
	scorer := anomaly.NewBaselineScorer()
	gate := anomaly.NewGate(scorer, viper.GetDuration("anomaly.score_timeout"), logger)
	retrainer := anomaly.NewRetrainer(
		scorer,
		store,
		viper.GetInt("anomaly.max_samples"),
		viper.GetDuration("anomaly.retention"),
		logger,
	)

	// Triage components
	policy := model.DefaultEscalationPolicy()
	metrics := monitor.NewMetrics()
	correlator := correlation.NewEngine(
		model.DefaultCorrelationRules(),
		viper.GetDuration("correlation.window"),
		logger,
	)

	engine := triage.NewEngine(triage.Config{
		Policy:         policy,
		Threshold:      triage.NewThresholdAdjuster(safeProvider, logger),
		Debounce:       triage.NewDebounceFilter(store, policy, logger),
		Gate:           gate,
		AnomalyEnabled: viper.GetBool("anomaly.enabled"),
		Correlator:     correlator,
		Store:          store,
		Metrics:        metrics,
	}, logger)

	sinks := escalation.MultiSink{escalation.NewNATSSink(js, logger)}
	if viper.GetBool("escalation.email.enabled") {
		sinks = append(sinks, escalation.NewEmailSink(escalation.EmailConfig{
			Host:       viper.GetString("escalation.email.host"),
			Port:       viper.GetInt("escalation.email.port"),
			Username:   viper.GetString("escalation.email.username"),
			Password:   viper.GetString("escalation.email.password"),
			From:       viper.GetString("escalation.email.from"),
			Recipients: viper.GetStringSlice("escalation.email.recipients"),
		}, logger))
	}

	escalator := escalation.NewScheduler(policy, engine, sinks, metrics, logger)
	engine.SetEscalator(escalator)
	defer escalator.Stop()

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	// Start the ingest consumer
	consumer, err := ingest.NewConsumer(js, engine, logger)
	if err != nil {
		logger.Fatal("Failed to create ingest consumer", zap.Error(err))
	}
	if err := consumer.Start(ctx); err != nil {
		logger.Fatal("Failed to start ingest consumer", zap.Error(err))
	}
	defer consumer.Stop()

	// Operator flag updates (deployments, maintenance, load tests)
	flagSub, err := nc.Subscribe("context.update", func(msg *nats.Msg) {
		var update struct {
			DeploymentInProgress *bool `json:"deployment_in_progress,omitempty"`
			MaintenanceWindow    *bool `json:"maintenance_window,omitempty"`
			LoadTestActive       *bool `json:"load_test_active,omitempty"`
		}
		if err := json.Unmarshal(msg.Data, &update); err != nil {
			logger.Error("Failed to unmarshal context update", zap.Error(err))
			return
		}
		if update.DeploymentInProgress != nil {
			provider.SetDeploymentInProgress(*update.DeploymentInProgress)
		}
		if update.MaintenanceWindow != nil {
			provider.SetMaintenanceWindow(*update.MaintenanceWindow)
		}
		if update.LoadTestActive != nil {
			provider.SetLoadTestActive(*update.LoadTestActive)
		}
		logger.Info("Operational context updated")
	})
	if err != nil {
		logger.Fatal("Failed to subscribe to context updates", zap.Error(err))
	}
	defer flagSub.Unsubscribe()

	// Train once at startup if enough history exists, then on schedule
	retrainer.Retrain(ctx)
	if err := retrainer.Start(ctx,
		viper.GetString("anomaly.train_schedule"),
		viper.GetString("anomaly.cleanup_schedule"),
	); err != nil {
		logger.Fatal("Failed to start retrainer", zap.Error(err))
	}
	defer retrainer.Stop()

	// Periodic metrics reporting
	reporter := monitor.NewReporter(js, engine, viper.GetDuration("metrics.interval"), logger)
	if err := reporter.Start(ctx); err != nil {
		logger.Fatal("Failed to start metrics reporter", zap.Error(err))
	}
	defer reporter.Stop()

	logger.Info("Alert triage engine started",
		zap.Bool("anomaly_enabled", viper.GetBool("anomaly.enabled")))

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("Server shutting down gracefully")
}
