package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"

	"animator/internal/adapter/repo"
	"animator/internal/conversation"
	"animator/internal/http/handlers"
	"animator/internal/http/httpapi"
	"animator/internal/infra"
	"animator/internal/queue"
	"animator/internal/quota"
	"animator/internal/storage"
	"animator/internal/submission"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "api").Logger()
	if err := cfg.RequireServerSecret(); err != nil {
		logger.Fatal().Err(err).Msg("api: configuration invalid")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	store, err := storage.New(ctx, storage.ConfigFrom(cfg))
	if err != nil {
		logger.Fatal().Err(err).Str("provider", cfg.StorageProvider).Msg("api: storage init failed")
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: rabbitmq connection failed")
	}
	defer conn.Close()
	publisher, err := queue.NewRabbitPublisher(conn, cfg.QueueName, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: queue publisher init failed")
	}
	defer publisher.Close()

	quotas := repo.NewQuotaRepository(runner)
	app := handlers.NewApp(handlers.App{
		Admission:     quota.NewController(quotas, cfg.DailyAnimationLimit, quota.WithLogger(logger)),
		Submissions:   submission.NewService(repo.NewSubmissionStore(runner), cfg.DailyAnimationLimit, submission.WithLogger(logger)),
		Publisher:     publisher,
		Jobs:          repo.NewJobRepository(runner),
		Conversations: conversation.NewService(repo.NewConversationRepository(runner), store, logger),
		Ping:          pool.Ping,
		Logger:        logger,
	})

	var media http.Handler
	if fs, ok := store.(*storage.FileStore); ok {
		media = fs.Handler()
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		ServerSecret: cfg.ServerSecret,
		Media:        media,
		Logger:       logger,
	})

	server := infra.NewHTTPServer(cfg, router, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("api: http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: shutdown failed")
	}
	logger.Info().Msg("api: stopped")
}
