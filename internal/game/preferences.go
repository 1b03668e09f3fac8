package game

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/hailam/gomokuplay/internal/config"
	"github.com/hailam/gomokuplay/internal/storage"
)

// ApplyPreferences seeds cfg from the stored player preferences. On the
// first launch nothing is stored yet: cfg itself is saved as the
// preferences and the launch is marked complete.
func ApplyPreferences(cfg config.Config, store *storage.Storage) (config.Config, error) {
	if store == nil {
		return cfg, nil
	}
	first, err := store.IsFirstLaunch()
	if err != nil {
		return cfg, errors.Wrap(err, "first launch")
	}
	if first {
		if err := store.SavePreferences(cfg.Preferences("")); err != nil {
			return cfg, errors.Wrap(err, "save preferences")
		}
		log.Info().Msg("first-launch")
		return cfg, errors.Wrap(store.MarkFirstLaunchComplete(), "first launch")
	}

	prefs, err := store.LoadPreferences()
	if err != nil {
		return cfg, errors.Wrap(err, "load preferences")
	}
	log.Debug().
		Str("user", prefs.Username).
		Str("difficulty", prefs.Difficulty.String()).
		Time("last_played", prefs.LastPlayed).
		Msg("preferences-loaded")
	return cfg.WithPreferences(prefs), nil
}

func savePreferences(store *storage.Storage, cfg config.Config) error {
	prev, err := store.LoadPreferences()
	if err != nil {
		return err
	}
	return store.SavePreferences(cfg.Preferences(prev.Username))
}
