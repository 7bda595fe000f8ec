package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"animator/internal/adapter/repo"
	"animator/internal/codegen"
	"animator/internal/infra"
	"animator/internal/infra/credentials"
	"animator/internal/lease"
	"animator/internal/queue"
	"animator/internal/render"
	"animator/internal/storage"
	"animator/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	apiKey, err := credentials.NewStore(runner).ResolveOpenAIKey(ctx, cfg.OpenAIAPIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("worker: failed to load openai api key from store")
	}
	llm, err := codegen.NewOpenAIClient(codegen.OpenAIOptions{
		APIKey:      apiKey,
		Model:       cfg.OpenAIModel,
		BaseURL:     cfg.OpenAIBaseURL,
		Temperature: cfg.CodegenTemperature,
		MaxTokens:   cfg.CodegenMaxTokens,
		HTTPClient:  &http.Client{Timeout: cfg.CodegenTimeout},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: code generation client not configured")
	}

	renderer, err := render.New(cfg.RenderMode, cfg.RenderImage, cfg.RenderBinary, cfg.RenderTimeout, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: renderer not configured")
	}

	store, err := storage.New(ctx, storage.ConfigFrom(cfg))
	if err != nil {
		logger.Fatal().Err(err).Str("provider", cfg.StorageProvider).Msg("worker: storage init failed")
	}

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("worker: redis unavailable, job leases disabled")
	}
	if rdb != nil {
		defer rdb.Close()
	}

	processor, err := worker.NewProcessor(worker.Options{
		Jobs:      repo.NewJobRepository(runner),
		Generator: codegen.NewGenerator(llm),
		Renderer:  renderer,
		Storage:   store,
		Locker:    lease.New(rdb, cfg.JobLeaseTTL),
		Logger:    logger,
		Quality:   render.ParseQuality(cfg.RenderQuality),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: processor init failed")
	}

	consumer := queue.NewConsumer(cfg.RabbitMQURL, cfg.QueueName, cfg.WorkerConcurrency, logger)
	logger.Info().
		Int("concurrency", cfg.WorkerConcurrency).
		Str("render_mode", cfg.RenderMode).
		Str("storage", cfg.StorageProvider).
		Msg("worker: consuming")
	if err := consumer.Run(ctx, processor.Handle); err != nil {
		logger.Error().Err(err).Msg("worker: consumer stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
