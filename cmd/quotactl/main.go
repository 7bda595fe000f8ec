package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"animator/internal/adapter/repo"
	"animator/internal/infra"
	"animator/internal/queue"
	"animator/internal/quota"
)

const usage = `usage: quotactl <command> [flags]

commands:
  show     -user <id>                      print the stored and effective daily count
  reset    -user <id>                      clear today's count for a user
  requeue  [-older-than 15m] [-limit 100]  re-publish jobs stuck in pending
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	cfg, err := infra.LoadConfig()
	if err != nil {
		exitWithError(err)
	}
	logger := infra.NewLogger("cli").With().Str("cmd", "quotactl").Str("action", cmd).Logger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	switch cmd {
	case "show":
		err = show(ctx, runner, cfg, args)
	case "reset":
		err = reset(ctx, runner, args)
	case "requeue":
		err = requeue(ctx, runner, cfg, logger, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		exitWithError(err)
	}
}

func userFlag(name string, args []string) (string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	user := fs.String("user", "", "user ID")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	id := strings.TrimSpace(*user)
	if id == "" {
		return "", errors.New("-user is required")
	}
	return id, nil
}

func show(ctx context.Context, runner *infra.SQLRunner, cfg *infra.Config, args []string) error {
	userID, err := userFlag("show", args)
	if err != nil {
		return err
	}
	rec, err := repo.NewQuotaRepository(runner).GetQuota(ctx, userID)
	if err != nil {
		return err
	}
	last := "never"
	if rec.LastAnimationDate != nil {
		last = rec.LastAnimationDate.Format(time.DateOnly)
	}
	now := time.Now()
	fmt.Printf("user:            %s\n", rec.UserID)
	fmt.Printf("stored count:    %d\n", rec.DailyCount)
	fmt.Printf("last animation:  %s\n", last)
	fmt.Printf("effective today: %d/%d\n", quota.EffectiveCount(*rec, now), cfg.DailyAnimationLimit)
	return nil
}

func reset(ctx context.Context, runner *infra.SQLRunner, args []string) error {
	userID, err := userFlag("reset", args)
	if err != nil {
		return err
	}
	if err := repo.NewQuotaRepository(runner).ResetQuota(ctx, userID); err != nil {
		return err
	}
	fmt.Printf("quota reset for %s\n", userID)
	return nil
}

func requeue(ctx context.Context, runner *infra.SQLRunner, cfg *infra.Config, logger zerolog.Logger, args []string) error {
	fs := flag.NewFlagSet("requeue", flag.ContinueOnError)
	olderThan := fs.Duration("older-than", 15*time.Minute, "minimum age of a pending job")
	limit := fs.Int("limit", 100, "maximum number of jobs to re-publish")
	if err := fs.Parse(args); err != nil {
		return err
	}

	jobs, err := repo.NewJobRepository(runner).ListStalePending(ctx, *olderThan, *limit)
	if err != nil {
		return fmt.Errorf("list pending jobs: %w", err)
	}
	if len(jobs) == 0 {
		fmt.Println("no stale pending jobs")
		return nil
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("connect rabbitmq: %w", err)
	}
	defer conn.Close()
	publisher, err := queue.NewRabbitPublisher(conn, cfg.QueueName, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	var failed int
	for _, j := range jobs {
		payload := queue.Payload{JobID: j.JobID, UserID: j.UserID, ConversationID: j.ConversationID, Prompt: j.Prompt}
		if err := publisher.Publish(ctx, payload); err != nil {
			failed++
			logger.Error().Err(err).Str("job_id", j.JobID).Msg("requeue failed")
			continue
		}
		logger.Info().Str("job_id", j.JobID).Msg("requeued")
	}
	fmt.Printf("requeued %d of %d pending jobs\n", len(jobs)-failed, len(jobs))
	if failed > 0 {
		return fmt.Errorf("%d jobs could not be requeued", failed)
	}
	return nil
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "quotactl: %v\n", err)
	os.Exit(1)
}
