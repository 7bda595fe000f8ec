package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"animator/internal/infra"
	"animator/internal/schema"
)

func main() {
	_ = godotenv.Load()

	var dryRun bool
	flag.BoolVar(&dryRun, "dry-run", false, "print the statements instead of applying them")
	flag.Parse()

	if dryRun {
		for _, stmt := range schema.Statements() {
			fmt.Println(stmt + ";")
		}
		return
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}
	logger := infra.NewLogger("cli").With().Str("cmd", "migrate").Logger()

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	if err := schema.Apply(ctx, db); err != nil {
		logger.Fatal().Err(err).Msg("apply schema")
	}
	logger.Info().Int("statements", len(schema.Statements())).Msg("schema applied")
}
