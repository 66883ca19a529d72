package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	httphandler "github.com/ogurasousui/gym-appointments/internal/adapters/http/handler"
	"github.com/ogurasousui/gym-appointments/internal/adapters/lock/redislock"
	"github.com/ogurasousui/gym-appointments/internal/adapters/messaging/outbox"
	"github.com/ogurasousui/gym-appointments/internal/adapters/repository/postgres"
	"github.com/ogurasousui/gym-appointments/internal/core/appointment"
	"github.com/ogurasousui/gym-appointments/internal/core/employee"
	"github.com/ogurasousui/gym-appointments/internal/platform/auth"
	"github.com/ogurasousui/gym-appointments/internal/platform/config"
	pg "github.com/ogurasousui/gym-appointments/internal/platform/db/postgres"
	"github.com/ogurasousui/gym-appointments/internal/platform/logging"
	"github.com/ogurasousui/gym-appointments/internal/platform/server"
	"github.com/ogurasousui/gym-appointments/internal/platform/telemetry"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", logging.Err(err))
		os.Exit(1)
	}

	log := logging.New(cfg.Env)
	log.Info("starting gym appointments service", slog.String("env", cfg.Env))
	log.Debug("debug messages are enabled")

	if err := run(ctx, cfg, log); err != nil {
		log.Error("service stopped with error", logging.Err(err))
		os.Exit(1)
	}
	log.Info("shutdown finished")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error("failed to shut down telemetry", logging.Err(err))
		}
	}()

	dbPool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	txManager := pg.NewTransactionManager(dbPool)
	readyChecks := map[string]httphandler.ReadyCheck{
		"postgres": pg.ReadyCheck(dbPool),
	}

	employeeRepo := postgres.NewEmployeeRepository(dbPool)
	employeeSvc := employee.NewService(employeeRepo, nil, txManager)

	appointmentRepo := postgres.NewAppointmentRepository(dbPool)
	outboxRepo := postgres.NewOutboxRepository(dbPool)
	opts := []appointment.Option{appointment.WithEventRecorder(outboxRepo)}

	if cfg.Redis.Enabled() {
		locker, err := redislock.New(ctx, redislock.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.LockTTL,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := locker.Close(); err != nil {
				log.Error("failed to close redis locker", logging.Err(err))
			}
		}()
		opts = append(opts, appointment.WithSlotLocker(locker))
		readyChecks["redis"] = locker.Ping
		log.Info("redis slot lock enabled", slog.String("addr", cfg.Redis.Addr))
	} else {
		log.Warn("redis is not configured, slot lock disabled")
	}

	appointmentSvc := appointment.NewService(appointmentRepo, employeeSvc, nil, txManager, opts...)

	router := httphandler.NewRouter(httphandler.RouterDeps{
		Appointments: httphandler.NewAppointmentHandler(appointmentSvc, log),
		Employees:    httphandler.NewEmployeeHandler(employeeSvc, log),
		Health:       httphandler.NewHealthHandler(readyChecks, log),
		Verifier:     auth.NewVerifier(cfg.Auth.JWTSecret),
		Logger:       log,
	})

	httpServer := server.NewHTTP(cfg.Server, router)
	grpcServer := server.New(cfg.Server.GRPCAddr)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server listening", slog.String("addr", cfg.Server.HTTPAddr))
		return httpServer.Run(gctx)
	})

	if cfg.Server.GRPCAddr != "" {
		g.Go(func() error {
			log.Info("gRPC health server listening", slog.String("addr", cfg.Server.GRPCAddr))
			return grpcServer.Run(gctx)
		})
		grpcServer.SetServing(true)
	}

	if cfg.Kafka.Enabled() {
		writer := outbox.NewWriter(cfg.Kafka.Brokers)
		defer func() {
			if err := writer.Close(); err != nil {
				log.Error("failed to close kafka writer", logging.Err(err))
			}
		}()

		publisher := outbox.NewPublisher(outboxRepo, txManager, writer, log, outbox.Config{
			TopicPrefix:  cfg.Kafka.TopicPrefix,
			PollInterval: cfg.Kafka.PollInterval,
			BatchSize:    cfg.Kafka.BatchSize,
		})
		g.Go(func() error {
			publisher.Run(gctx)
			return nil
		})
	} else {
		log.Warn("kafka brokers are not configured, outbox events stay unpublished")
	}

	<-gctx.Done()
	log.Info("shutting down", slog.Duration("timeout", cfg.Server.ShutdownTimeout))

	return g.Wait()
}
