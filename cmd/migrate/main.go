// Command migrate applies the Postgres schema used by the postgres store
// driver.
//
// Usage:
//
//	migrate [up|down|status]
//
// The database is taken from DATABASE_DSN (or the config file). The default
// command is up.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/heartmarshall/labsim/internal/adapter/postgres"
	"github.com/heartmarshall/labsim/internal/app"
	"github.com/heartmarshall/labsim/internal/config"
)

func main() {
	flag.Parse()
	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := postgres.NewMigrator(db)
	if err != nil {
		logger.Error("init migrator", slog.String("error", err.Error()))
		os.Exit(1)
	}

	switch command {
	case "up":
		err = postgres.Migrate(ctx, db, logger)
	case "down":
		res, derr := provider.Down(ctx)
		err = derr
		if err == nil {
			logger.Info("migration rolled back",
				slog.Int64("version", res.Source.Version),
				slog.Duration("duration", res.Duration),
			)
		}
	case "status":
		statuses, serr := provider.Status(ctx)
		err = serr
		for _, s := range statuses {
			fmt.Printf("%-6s %5d  %s\n", s.State, s.Source.Version, s.Source.Path)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want up, down or status)\n", command)
		os.Exit(1)
	}
	if err != nil {
		logger.Error("migrate "+command, slog.String("error", err.Error()))
		os.Exit(1)
	}
}
