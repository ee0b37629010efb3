// Command labsim-bot plays a headless session against a running server. It
// signs in, joins or creates a laboratory, walks around and lets autosave
// persist the state. It is used for smoke tests and load generation.
//
// Usage:
//
//	labsim-bot --base-url=http://localhost:8080 --token=$LABSIM_TOKEN [--invite=ABC123]
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/heartmarshall/labsim/internal/app"
	"github.com/heartmarshall/labsim/internal/auth"
	"github.com/heartmarshall/labsim/internal/client"
	"github.com/heartmarshall/labsim/internal/config"
	"github.com/heartmarshall/labsim/internal/domain"
	"github.com/heartmarshall/labsim/internal/game"
	"github.com/heartmarshall/labsim/internal/service/laboratory"
	"github.com/heartmarshall/labsim/internal/session"
)

func main() {
	baseURL := flag.String("base-url", "http://localhost:8080", "server base URL")
	token := flag.String("token", os.Getenv("LABSIM_TOKEN"), "identity token (default $LABSIM_TOKEN)")
	name := flag.String("name", "Bot", "display name")
	invite := flag.String("invite", "", "invite code of a laboratory to join")
	duration := flag.Duration("duration", time.Minute, "how long to play")
	tick := flag.Duration("tick", 100*time.Millisecond, "simulation step")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger := app.NewLogger(config.LogConfig{Level: *logLevel, Format: "text"})

	if *token == "" {
		fmt.Fprintln(os.Stderr, "Usage: labsim-bot --token=... (or set LABSIM_TOKEN)")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	if err := run(ctx, logger, botConfig{
		baseURL: *baseURL,
		token:   *token,
		name:    *name,
		invite:  *invite,
		tick:    *tick,
	}); err != nil {
		logger.Error("bot failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

type botConfig struct {
	baseURL string
	token   string
	name    string
	invite  string
	tick    time.Duration
}

func run(ctx context.Context, logger *slog.Logger, cfg botConfig) error {
	clock := clockwork.NewRealClock()
	api := client.New(cfg.baseURL, cfg.token, logger)
	store := game.NewStore(game.WithClock(clock))
	sess := session.New(logger, api, store, clock, session.Config{})

	p, err := sess.Start(ctx, auth.Identity{DisplayName: cfg.name})
	if err != nil {
		return err
	}
	defer sess.Stop()
	logger.Info("signed in", slog.String("user_id", p.ID), slog.Int("level", p.Level))

	lab, err := pickLaboratory(ctx, api, cfg)
	if err != nil {
		return err
	}
	if err := api.SetCurrentLaboratory(ctx, p.ID, lab.ID); err != nil {
		return err
	}
	store.SetCurrentLaboratory(lab)
	logger.Info("entered laboratory", slog.String("laboratory_id", lab.ID), slog.String("name", lab.Name))

	ticker := clock.NewTicker(cfg.tick)
	defer ticker.Stop()
	steps := 0
	for {
		select {
		case <-ctx.Done():
			// Flush with a fresh context: ctx is already done.
			saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := sess.Save(saveCtx); err != nil {
				return err
			}
			st := store.State()
			logger.Info("session finished",
				slog.Int("steps", steps),
				slog.Float64("x", st.Player.Position.X),
				slog.Float64("z", st.Player.Position.Z),
			)
			return nil
		case <-ticker.Chan():
			steps++
			if steps%20 == 1 {
				store.SetControls(randomControls())
			}
			store.Tick(cfg.tick)
			if steps%200 == 0 {
				store.ToggleMissions()
				if _, err := sess.AddExperience(ctx, 10); err != nil && !errors.Is(err, context.DeadlineExceeded) {
					logger.Warn("add experience", slog.String("error", err.Error()))
				}
			}
		}
	}
}

func pickLaboratory(ctx context.Context, api *client.Client, cfg botConfig) (*domain.Laboratory, error) {
	if cfg.invite != "" {
		lab, err := api.JoinLaboratory(ctx, cfg.invite)
		if err == nil || !errors.Is(err, domain.ErrConflict) {
			return lab, err
		}
	}

	labs, err := api.ListLaboratories(ctx)
	if err != nil {
		return nil, err
	}
	if len(labs) > 0 {
		return &labs[0], nil
	}
	return api.CreateLaboratory(ctx, laboratory.CreateInput{Name: cfg.name + "'s lab"})
}

func randomControls() game.Controls {
	return game.Controls{
		Forward:  rand.IntN(2) == 0,
		Backward: rand.IntN(4) == 0,
		Left:     rand.IntN(3) == 0,
		Right:    rand.IntN(3) == 0,
	}
}
