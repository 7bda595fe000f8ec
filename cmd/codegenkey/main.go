package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"animator/internal/infra"
	"animator/internal/infra/credentials"
)

func main() {
	_ = godotenv.Load()

	var (
		keyFlag   string
		modelFlag string
		baseFlag  string
	)
	flag.StringVar(&keyFlag, "key", "", "code generation API key (falls back to OPENAI_API_KEY)")
	flag.StringVar(&modelFlag, "model", "", "model the key is meant for, stored as metadata")
	flag.StringVar(&baseFlag, "base-url", "", "OpenAI-compatible base URL, stored as metadata")
	flag.Parse()

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "API key is required via -key or OPENAI_API_KEY")
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "codegenkey").Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	props := map[string]any{}
	if m := strings.TrimSpace(modelFlag); m != "" {
		props["model"] = m
	}
	if b := strings.TrimSpace(baseFlag); b != "" {
		props["base_url"] = b
	}
	if err := store.SetOpenAIAPIKey(ctx, key, props); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist api key: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("code generation API key stored successfully")
}
