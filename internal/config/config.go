// Package config loads the operational knobs for both binaries from a YAML
// file. Every field has a default; a missing file or a missing key falls
// back instead of failing, so both binaries run with no config at all.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Duration parses YAML values like "50ms" or "3s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("bad duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	// Server side.
	ListenAddr          string   `yaml:"listen_addr"`
	MinPlayers          int      `yaml:"min_players"`
	BroadcastInterval   Duration `yaml:"broadcast_interval"`
	CoinRespawnInterval Duration `yaml:"coin_respawn_interval"`
	SimulatedLatency    Duration `yaml:"simulated_latency"`

	// Client side.
	ServerAddr         string   `yaml:"server_addr"`
	InterpolationDelay Duration `yaml:"interpolation_delay"`

	LogLevel string `yaml:"log_level"`
	// LogFile receives client logs; the terminal itself is the game
	// screen. Empty disables client logging.
	LogFile string `yaml:"log_file"`
}

func Default() Config {
	return Config{
		ListenAddr:          "127.0.0.1:12345",
		MinPlayers:          2,
		BroadcastInterval:   Duration(50 * time.Millisecond),
		CoinRespawnInterval: Duration(3 * time.Second),
		SimulatedLatency:    Duration(200 * time.Millisecond),
		ServerAddr:          "127.0.0.1:12345",
		InterpolationDelay:  Duration(200 * time.Millisecond),
		LogLevel:            "info",
	}
}

// Load reads the config at path, or config.yaml when path is empty. Any
// failure to read or parse keeps the defaults; a config file is a
// convenience, never a requirement.
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "config.yaml"
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Info().Str("path", path).Msg("no config file, using defaults")
		return cfg
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("unreadable config, using defaults")
		return Default()
	}
	return cfg
}
