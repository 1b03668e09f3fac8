// Command gomokuplay-server serves a human-versus-engine game over HTTP.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hailam/gomokuplay/internal/config"
	"github.com/hailam/gomokuplay/internal/engine"
	"github.com/hailam/gomokuplay/internal/game"
	"github.com/hailam/gomokuplay/internal/server"
	"github.com/hailam/gomokuplay/internal/storage"
)

var (
	configPath = flag.String("config", "", "JSON settings file")
	addr       = flag.String("addr", "", "listen address, overrides the settings file")
	pvp        = flag.Bool("pvp", false, "two humans; the engine only suggests")
	jsonLogs   = flag.Bool("json", false, "log JSON instead of console output")
)

func main() {
	flag.Parse()

	if !*jsonLogs {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load-config")
	}
	zerolog.SetGlobalLevel(cfg.Level())
	if *addr != "" {
		cfg.ServerAddr = *addr
	}

	store, err := storage.Open(cfg.DataDir)
	if err != nil {
		log.Warn().Err(err).Msg("storage unavailable, nothing will be saved")
		store = nil
	} else {
		defer store.Close()
	}

	if *configPath == "" {
		if cfg, err = game.ApplyPreferences(cfg, store); err != nil {
			log.Warn().Err(err).Msg("preferences")
		}
	}
	if *pvp {
		cfg.TwoPlayer = true
	}

	eng, err := engine.NewEngine(cfg.EngineOptions())
	if err != nil {
		log.Fatal().Err(err).Msg("create-engine")
	}
	defer eng.Close()

	ctrl := game.New(cfg, eng, store)
	defer func() {
		if err := ctrl.Close(); err != nil {
			log.Warn().Err(err).Msg("save-patterns")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(ctrl, eng, server.Options{EngineMoves: !cfg.TwoPlayer})
	if err := srv.Run(ctx, cfg.ServerAddr); err != nil {
		log.Error().Err(err).Msg("server")
	}
}
