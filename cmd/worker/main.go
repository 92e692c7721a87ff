package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"circulation/internal/analytics"
	"circulation/internal/odl/events"
	odlmetrics "circulation/internal/odl/metrics"
	"circulation/internal/odl/mutex"
	"circulation/internal/odl/notify"
	"circulation/internal/odl/ports"
	"circulation/internal/odl/reaper"
	"circulation/internal/odl/reconciler"
	"circulation/internal/odl/scheduler"
	"circulation/internal/odl/store"
	"circulation/internal/odl/tasks"
	"circulation/internal/platform/config"
	"circulation/internal/platform/httpserver"
	"circulation/internal/platform/kafka"
	"circulation/internal/platform/logger"
	"circulation/internal/platform/metrics"
	"circulation/internal/platform/postgres"
	"circulation/internal/platform/redis"
	"circulation/internal/platform/supervisor"
	"circulation/migrations"
	"circulation/pkg/platform/clock"
	"circulation/pkg/platform/retry"
)

// main wires the hold-queue workers and the admin server, then runs them
// under a supervisor until SIGINT or SIGTERM.
func main() {
	if err := run(); err != nil {
		slog.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	log = log.With("service", cfg.Service.Name, "environment", cfg.Service.Environment)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.New(cfg.Service.Name, cfg.Service.Environment)
	odlMetrics := odlmetrics.New(reg.Registry)
	analyticsMetrics := analytics.NewMetrics(reg.Registry)

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	checks := []httpserver.Checker{db}

	if cfg.Postgres.MigrateOnStart {
		if err := migrations.Apply(ctx, db.DB, log); err != nil {
			return err
		}
	}

	lockers, redisClient, err := newLockers(ctx, cfg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		checks = append(checks, redisClient)
	}

	producer, err := kafka.NewProducer(cfg.Kafka, log)
	if err != nil {
		return err
	}
	if producer != nil {
		defer producer.Close()
		checks = append(checks, producer)
		if cfg.Kafka.EnsureTopics {
			if err := producer.EnsureTopics(ctx, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor,
				cfg.Kafka.AnalyticsTopic, cfg.Kafka.NotificationTopic); err != nil {
				return err
			}
		}
	}

	st := store.NewPostgres(db.DB, cfg.Postgres.TxTimeout)
	outbox := analytics.NewPostgresOutbox(db.DB, cfg.Postgres.TxTimeout)

	policy, err := retry.New(
		retry.WithMaxAttempts(cfg.ODL.RetryAttempts),
		retry.WithBaseDelay(cfg.ODL.RetryBaseDelay),
		retry.WithRetryable(store.IsTransient),
	)
	if err != nil {
		return fmt.Errorf("retry policy: %w", err)
	}
	rec, err := reconciler.New(st,
		reconciler.WithLogger(log),
		reconciler.WithMetrics(odlMetrics),
		reconciler.WithRetryPolicy(policy),
	)
	if err != nil {
		return err
	}

	backends := analytics.Backends{
		Logger:  log,
		Topic:   cfg.Kafka.AnalyticsTopic,
		Outbox:  outbox,
		Metrics: analyticsMetrics,
	}
	if producer != nil {
		backends.Publisher = producer
	}
	sink, err := analytics.NewSink(cfg.Analytics, backends)
	if err != nil {
		return err
	}
	collector, err := events.New(st, sink,
		events.WithLogger(log),
		events.WithMetrics(odlMetrics),
		events.WithConcurrency(cfg.Analytics.Concurrency),
	)
	if err != nil {
		return err
	}

	schedOpts := []scheduler.Option{
		scheduler.WithLogger(log),
		scheduler.WithMetrics(odlMetrics),
		scheduler.WithLeaseRenewal(cfg.Mutex.TTL),
	}
	reapOpts := []reaper.Option{
		reaper.WithLogger(log),
		reaper.WithMetrics(odlMetrics),
		reaper.WithBatchSize(cfg.ODL.BatchSize),
	}
	if cfg.Notify.Enabled {
		notifier, err := newNotifier(cfg, st, producer, log, odlMetrics)
		if err != nil {
			return err
		}
		schedOpts = append(schedOpts, scheduler.WithNotifier(notifier))
		reapOpts = append(reapOpts, reaper.WithNotifier(notifier))
	}

	sched, err := scheduler.New(st, lockers, rec, collector, schedOpts...)
	if err != nil {
		return err
	}
	rp, err := reaper.New(st, lockers, rec, collector, reapOpts...)
	if err != nil {
		return err
	}

	queue, err := tasks.NewQueue(cfg.ODL.Workers, cfg.ODL.QueueSize, sched, rp,
		tasks.WithLogger(log),
		tasks.WithMetrics(odlMetrics),
	)
	if err != nil {
		return err
	}

	tree := supervisor.New(cfg.Service.Name, log, supervisor.Config{})
	tree.AddWorker(queue)

	triggers := make(map[string]httpserver.Firer)
	for _, tc := range []tasks.TriggerConfig{
		{Kind: tasks.KindRecalculate, Interval: cfg.ODL.RecalculateInterval, BatchSize: cfg.ODL.BatchSize, Protocols: cfg.ODL.Protocols},
		{Kind: tasks.KindReap, Interval: cfg.ODL.ReapInterval, Protocols: cfg.ODL.Protocols},
	} {
		trigger, err := tasks.NewTrigger(tc, st, queue, log)
		if err != nil {
			return err
		}
		tree.AddWorker(trigger)
		triggers[string(tc.Kind)] = trigger
	}

	if slices.Contains(cfg.Analytics.Sinks, analytics.SinkOutbox) && producer != nil {
		relay, err := analytics.NewRelay(outbox, producer, cfg.Kafka.AnalyticsTopic,
			analytics.WithRelayLogger(log),
			analytics.WithRelayMetrics(analyticsMetrics),
			analytics.WithRelayInterval(cfg.Analytics.RelayInterval),
			analytics.WithRelayBatchSize(cfg.Analytics.RelayBatchSize),
		)
		if err != nil {
			return err
		}
		tree.AddWorker(relay)
	}

	admin := httpserver.New(cfg.Admin.Addr, httpserver.NewAdminRouter(reg.Registry, httpserver.AdminConfig{
		Checks:            checks,
		Token:             cfg.Admin.Token,
		Triggers:          triggers,
		TaskRunsPerMinute: cfg.Admin.TaskRunsPerMinute,
		Logger:            log,
	}))
	tree.AddAdmin(httpserver.NewService("admin", admin))

	log.InfoContext(ctx, "starting circulation worker",
		"admin_addr", cfg.Admin.Addr,
		"mutex_backend", cfg.Mutex.Backend,
		"analytics_sinks", cfg.Analytics.Sinks,
		"notify", cfg.Notify.Enabled,
	)
	err = tree.Serve(ctx)
	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		log.Warn("services did not stop in time", "count", len(report))
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("circulation worker stopped")
	return nil
}

func newLockers(ctx context.Context, cfg *config.Config) (ports.LockerFactory, *redis.Client, error) {
	if cfg.Mutex.Backend == "local" {
		return mutex.NewLocalFactory(cfg.Mutex.Prefix, cfg.Mutex.TTL, clock.NewSystem()), nil, nil
	}
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return nil, nil, errors.New("mutex backend redis requires redis.url")
	}
	return mutex.NewFactory(client.Client, cfg.Mutex.Prefix, cfg.Mutex.TTL), client, nil
}

func newNotifier(cfg *config.Config, st notify.Store, producer *kafka.Producer, log *slog.Logger, m *odlmetrics.Metrics) (*notify.Notifier, error) {
	var sender notify.Sender = notify.NewLogSender(log)
	if cfg.Notify.Sender == "kafka" {
		if producer == nil {
			return nil, errors.New("kafka notification sender requires kafka.brokers")
		}
		sender = notify.NewKafkaSender(producer, cfg.Kafka.NotificationTopic)
	}
	return notify.New(st, sender,
		notify.WithLogger(log),
		notify.WithMetrics(m),
	)
}
