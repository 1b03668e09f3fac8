// Command gomokuplay plays Gomoku over a line-based text protocol on
// stdin and stdout.
package main

import (
	"flag"
	"os"
	"runtime/pprof"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hailam/gomokuplay/internal/config"
	"github.com/hailam/gomokuplay/internal/engine"
	"github.com/hailam/gomokuplay/internal/game"
	"github.com/hailam/gomokuplay/internal/protocol"
	"github.com/hailam/gomokuplay/internal/storage"
)

var (
	configPath = flag.String("config", "", "JSON settings file")
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
	logLevel   = flag.String("log", "", "log level, overrides the settings file")
	noStore    = flag.Bool("nostore", false, "do not open the database")
)

func main() {
	flag.Parse()

	// Logs go to stderr; stdout carries the protocol.
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load-config")
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
		if err := cfg.Validate(); err != nil {
			log.Fatal().Err(err).Msg("log-level")
		}
	}
	zerolog.SetGlobalLevel(cfg.Level())

	profilePath := *cpuprofile
	if profilePath == "" {
		profilePath = os.Getenv("CPUPROFILE")
	}
	if profilePath != "" {
		f, err := os.Create(profilePath)
		if err != nil {
			log.Fatal().Err(err).Msg("could not create CPU profile")
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal().Err(err).Msg("could not start CPU profile")
		}
		defer pprof.StopCPUProfile()
		log.Info().Str("path", profilePath).Msg("cpu-profile")
	}

	var store *storage.Storage
	if !*noStore {
		if store, err = storage.Open(cfg.DataDir); err != nil {
			log.Warn().Err(err).Msg("storage unavailable, nothing will be saved")
			store = nil
		} else {
			defer store.Close()
		}
	}

	if *configPath == "" {
		if cfg, err = game.ApplyPreferences(cfg, store); err != nil {
			log.Warn().Err(err).Msg("preferences")
		}
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

	if err := protocol.New(ctrl, eng, os.Stdout).Run(os.Stdin); err != nil {
		log.Error().Err(err).Msg("protocol")
	}
}
