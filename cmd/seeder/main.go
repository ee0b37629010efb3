// Command seeder loads demo laboratories, samples and missions into the
// configured store. It is intended to be run offline, not as part of the
// main server.
//
// Flags:
//
//	--phase          comma-separated list of phases to run (default: all)
//	--dry-run        count what would be written without writing
//	--fixture        path to a fixture YAML file (default: built-in)
//	--seeder-config  path to seeder YAML config file
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/heartmarshall/labsim/internal/app"
	"github.com/heartmarshall/labsim/internal/app/seeder"
	"github.com/heartmarshall/labsim/internal/config"
)

func main() {
	phaseFlag := flag.String("phase", "", "comma-separated phases to run (default: all)")
	dryRunFlag := flag.Bool("dry-run", false, "count what would be written without writing")
	fixtureFlag := flag.String("fixture", "", "path to fixture YAML file")
	seederConfigFlag := flag.String("seeder-config", "", "path to seeder YAML config file")
	flag.Parse()

	// Load app config (for the store connection).
	appCfg, err := config.Load()
	if err != nil {
		log.Fatalf("load app config: %v", err)
	}

	logger := app.NewLogger(appCfg.Log)

	seederCfg, err := seeder.LoadConfig(*seederConfigFlag)
	if err != nil {
		logger.Error("load seeder config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// CLI flags override config.
	if *dryRunFlag {
		seederCfg.DryRun = true
	}
	if *fixtureFlag != "" {
		seederCfg.FixturePath = *fixtureFlag
	}

	var phases []string
	if *phaseFlag != "" {
		phases = strings.Split(*phaseFlag, ",")
		for i := range phases {
			phases[i] = strings.TrimSpace(phases[i])
		}
	}

	fixture, err := seeder.LoadFixture(seederCfg.FixturePath)
	if err != nil {
		logger.Error("load fixture", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	clock := clockwork.NewRealClock()
	infra, err := app.OpenInfra(ctx, appCfg, logger, clock)
	if err != nil {
		logger.Error("open store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer infra.Close()

	svc := app.NewServices(appCfg, infra, logger, clock)
	pipeline := seeder.NewPipeline(logger, seeder.Services{
		Profiles: svc.Profiles,
		Labs:     svc.Labs,
		Samples:  svc.Samples,
		Missions: svc.Missions,
	}, *seederCfg, fixture)

	start := time.Now()
	if err := pipeline.Run(ctx, phases); err != nil {
		logger.Error("seeder failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	for phase, r := range pipeline.Results() {
		logger.Info("phase summary",
			slog.String("phase", phase),
			slog.Int("inserted", r.Inserted),
			slog.Int("skipped", r.Skipped),
			slog.Int("errors", r.Errors),
		)
	}
	logger.Info("seeder completed",
		slog.Bool("dry_run", seederCfg.DryRun),
		slog.Duration("total_duration", time.Since(start)),
	)

	if pipeline.HasErrors() {
		os.Exit(1)
	}
}
