// Package config holds the settings shared by the command-line front end
// and the HTTP server.
package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/hailam/gomokuplay/internal/board"
	"github.com/hailam/gomokuplay/internal/engine"
	"github.com/hailam/gomokuplay/internal/storage"
)

// Config is the full set of tunables. The zero value is not useful; start
// from Default.
type Config struct {
	Rules RulesConfig `json:"rules"`

	Difficulty string `json:"difficulty"`
	Depth      int    `json:"depth"`       // overrides the difficulty depth when > 0
	MoveTimeMs int    `json:"move_time_ms"` // overrides the difficulty time when > 0
	TTSizeMB   int    `json:"tt_size_mb"`
	Randomize  bool   `json:"randomize"`
	Ponder     bool   `json:"ponder"`

	// Suggestions asks the engine for a hint for the human after each AI move.
	Suggestions bool `json:"suggestions"`
	// HumanWhite makes the engine open with Black at the center.
	HumanWhite bool `json:"human_white"`
	// TwoPlayer is a game between two humans; the engine only suggests.
	TwoPlayer bool `json:"two_player"`

	DataDir         string `json:"data_dir"` // empty: platform default
	PersistPatterns bool   `json:"persist_patterns"`
	LogLevel        string `json:"log_level"`
	ServerAddr      string `json:"server_addr"`
}

// RulesConfig mirrors board.Rules in a file-friendly form.
type RulesConfig struct {
	CaptureThreshold  int    `json:"capture_threshold"`
	ForbidDoubleThree bool   `json:"forbid_double_three"`
	FiveRule          string `json:"five_rule"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	r := board.DefaultRules()
	return Config{
		Rules: RulesConfig{
			CaptureThreshold:  r.CaptureThreshold,
			ForbidDoubleThree: r.ForbidDoubleThree,
			FiveRule:          r.FiveRule.String(),
		},
		Difficulty:      engine.Medium.String(),
		TTSizeMB:        64,
		Ponder:          true,
		Suggestions:     true,
		PersistPatterns: true,
		LogLevel:        "info",
		ServerAddr:      ":5000",
	}
}

// Load reads a JSON file over the defaults. Fields missing from the file
// keep their default value. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, cfg.Validate()
}

// Save writes the configuration as indented JSON.
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), "write config")
}

// Validate checks ranges and names.
func (c Config) Validate() error {
	if c.Rules.CaptureThreshold < 0 {
		return errors.Errorf("capture_threshold must be >= 0, got %d", c.Rules.CaptureThreshold)
	}
	if _, ok := board.ParseFiveRule(c.Rules.FiveRule); !ok {
		return errors.Errorf("unknown five_rule %q", c.Rules.FiveRule)
	}
	if _, ok := engine.ParseDifficulty(c.Difficulty); !ok {
		return errors.Errorf("unknown difficulty %q", c.Difficulty)
	}
	if c.Depth < 0 || c.Depth > engine.MaxDepth {
		return errors.Errorf("depth must be in [0, %d], got %d", engine.MaxDepth, c.Depth)
	}
	if c.MoveTimeMs < 0 {
		return errors.Errorf("move_time_ms must be >= 0, got %d", c.MoveTimeMs)
	}
	if c.TTSizeMB < 1 {
		return errors.Errorf("tt_size_mb must be >= 1, got %d", c.TTSizeMB)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	return nil
}

// BoardRules converts the rules section.
func (c Config) BoardRules() board.Rules {
	fr, _ := board.ParseFiveRule(c.Rules.FiveRule)
	return board.Rules{
		CaptureThreshold:  c.Rules.CaptureThreshold,
		ForbidDoubleThree: c.Rules.ForbidDoubleThree,
		FiveRule:          fr,
	}
}

// EngineDifficulty returns the parsed difficulty, Medium if unknown.
func (c Config) EngineDifficulty() engine.Difficulty {
	d, _ := engine.ParseDifficulty(c.Difficulty)
	return d
}

// Limits returns the search limits: the difficulty preset with Depth and
// MoveTimeMs applied on top.
func (c Config) Limits() engine.SearchLimits {
	l := engine.DifficultySettings[c.EngineDifficulty()]
	if c.Depth > 0 {
		l.Depth = c.Depth
	}
	if c.MoveTimeMs > 0 {
		l.MoveTime = time.Duration(c.MoveTimeMs) * time.Millisecond
	}
	return l
}

// EngineOptions returns the options for engine.NewEngine.
func (c Config) EngineOptions() engine.Options {
	return engine.Options{
		TTSizeMB:   c.TTSizeMB,
		Randomize:  c.Randomize,
		Difficulty: c.EngineDifficulty(),
	}
}

// Level returns the zerolog level, Info if unparsable.
func (c Config) Level() zerolog.Level {
	l, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}

// WithPreferences returns c with the stored player preferences applied.
func (c Config) WithPreferences(p *storage.UserPreferences) Config {
	c.Difficulty = engine.Difficulty(p.Difficulty).String()
	c.HumanWhite = p.PlayerColor == storage.ColorWhite
	c.Suggestions = p.Suggestions
	c.TwoPlayer = p.GameMode == storage.ModeHumanVsHuman
	return c
}

// Preferences returns the player preferences held by c.
func (c Config) Preferences(username string) *storage.UserPreferences {
	p := storage.DefaultPreferences()
	if username != "" {
		p.Username = username
	}
	p.Difficulty = storage.Difficulty(c.EngineDifficulty())
	p.Suggestions = c.Suggestions
	if c.HumanWhite {
		p.PlayerColor = storage.ColorWhite
	}
	if c.TwoPlayer {
		p.GameMode = storage.ModeHumanVsHuman
	}
	return p
}

// GameMode returns the storage game mode.
func (c Config) GameMode() storage.GameMode {
	if c.TwoPlayer {
		return storage.ModeHumanVsHuman
	}
	return storage.ModeHumanVsComputer
}
