package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/zapdesk/golang_services/internal/platform/cache"
	"github.com/zapdesk/golang_services/internal/platform/config"
	"github.com/zapdesk/golang_services/internal/platform/database"
	"github.com/zapdesk/golang_services/internal/platform/logger"
	"github.com/zapdesk/golang_services/internal/platform/messagebroker"

	automationapp "github.com/zapdesk/golang_services/internal/automation_service/app"
	automationpg "github.com/zapdesk/golang_services/internal/automation_service/repository/postgres"
	consumerapp "github.com/zapdesk/golang_services/internal/queue_consumer_service/app"
	queuepg "github.com/zapdesk/golang_services/internal/queue_consumer_service/repository/postgres"
	"github.com/zapdesk/golang_services/internal/webhook_processor_service/adapters/whatsapp"
	processorapp "github.com/zapdesk/golang_services/internal/webhook_processor_service/app"
	processorpg "github.com/zapdesk/golang_services/internal/webhook_processor_service/repository/postgres"
)

const serviceName = "queue_consumer_service"

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel).With("service", serviceName)
	appLogger.Info("Starting service...")

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	nc, err := messagebroker.NewNATSClient(cfg.NATSUrl, appLogger, serviceName)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer nc.Close()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			appLogger.Error("Invalid Redis URL", "error", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
	}

	processor := buildProcessor(cfg, dbPool, nc, rdb, appLogger)

	queueRepo := queuepg.NewPgQueueRepository(dbPool, appLogger)
	consumer := consumerapp.NewConsumer(queueRepo, processor, nc, appLogger, consumerapp.ConsumerConfig{
		PollInterval:    cfg.QueuePollInterval,
		BatchSize:       cfg.QueueBatchSize,
		MaxAttempts:     cfg.QueueMaxAttempts,
		ListenerEnabled: cfg.QueueListenerEnabled,
	})

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		return consumer.Run(groupCtx)
	})

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.QueueConsumerMetricsPort),
		Handler: promhttp.Handler(),
	}
	g.Go(func() error {
		appLogger.Info("Metrics server listening", "port", cfg.QueueConsumerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	appLogger.Info("Service components initialized. Consumer is running.", "identity", consumer.Identity())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		appLogger.Info("Received termination signal", "signal", sig.String())
	case <-groupCtx.Done():
		appLogger.Error("A component failed, initiating shutdown", "error", groupCtx.Err())
	}

	mainCancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Error during graceful shutdown", "error", err)
	}
	appLogger.Info("Service shutdown complete.")
}

// buildProcessor wires the payload processor with its repositories,
// automation gate, outbound sender and avatar cache.
func buildProcessor(
	cfg *config.Config,
	dbPool *pgxpool.Pool,
	nc *messagebroker.NATSClient,
	rdb *redis.Client,
	appLogger *slog.Logger,
) *processorapp.Processor {
	ticketRepo := processorpg.NewPgTicketRepository(dbPool, appLogger)
	messageRepo := processorpg.NewPgMessageRepository(dbPool, appLogger)
	contactRepo := processorpg.NewPgContactRepository(dbPool, appLogger)

	hoursRepo := automationpg.NewPgHoursRepository(dbPool, appLogger)
	settingsRepo := automationpg.NewPgSettingsRepository(dbPool, appLogger)
	blacklistRepo := automationpg.NewPgBlacklistRepository(dbPool, appLogger)
	oohLogRepo := automationpg.NewPgOutOfHoursLogRepository(dbPool, appLogger)

	evaluator := automationapp.NewEvaluator(hoursRepo, appLogger)
	autoReplier := automationapp.NewAutoReplier(
		evaluator, settingsRepo, blacklistRepo, oohLogRepo,
		time.Duration(cfg.OutOfHoursCooldownMinutes)*time.Minute, appLogger,
	)

	var sender processorapp.TextSender
	var avatars processorapp.AvatarResolver
	if cfg.WhatsAppAPIToken != "" {
		client := whatsapp.NewCloudClient(appLogger, cfg.WhatsAppAPIBaseURL, cfg.WhatsAppAPIToken, cfg.WhatsAppPhoneNumberID, nil)
		sender = client
		avatars = cache.New(rdb, client.ProfilePictureURL, cfg.AvatarCacheTTL, appLogger)
	} else {
		appLogger.Warn("WhatsApp API token not configured, using mock sender")
		sender = whatsapp.NewMockClient(appLogger, 0)
	}

	return processorapp.NewProcessor(
		ticketRepo, messageRepo, contactRepo,
		autoReplier, sender, avatars, nc,
		appLogger,
	)
}
