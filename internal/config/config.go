// Package config loads exchange configuration via viper, with an
// fsnotify watch that refreshes a Watcher snapshot when the config
// file changes.
package config

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/saiputravu/ledgerline/internal/exchange"
)

// Config is the exchange's runtime configuration. Fields are grouped
// by the subsystem that reads them.
type Config struct {
	// Server
	ListenAddress string
	ListenPort    int

	// Publisher
	PublisherEndpoint string // "redis://host:port" or "log://" for LogPublisher

	// Exchange
	InstrumentIteration string // "id" or "ticker"

	// Metrics
	MetricsAddress string

	// Logging
	LogLevel string
}

func defaults(v *viper.Viper) {
	v.SetDefault("listen_address", "0.0.0.0")
	v.SetDefault("listen_port", 7890)
	v.SetDefault("publisher_endpoint", "log://")
	v.SetDefault("instrument_iteration", "id")
	v.SetDefault("metrics_address", "0.0.0.0:9100")
	v.SetDefault("log_level", "info")
}

func fromViper(v *viper.Viper) Config {
	return Config{
		ListenAddress:       v.GetString("listen_address"),
		ListenPort:          v.GetInt("listen_port"),
		PublisherEndpoint:   v.GetString("publisher_endpoint"),
		InstrumentIteration: strings.ToLower(v.GetString("instrument_iteration")),
		MetricsAddress:      v.GetString("metrics_address"),
		LogLevel:            v.GetString("log_level"),
	}
}

// IterationOrder translates the configured string into the
// exchange package's enum, defaulting to IterationByID on any
// unrecognized value.
func (c Config) IterationOrder() exchange.IterationOrder {
	if c.InstrumentIteration == "ticker" {
		return exchange.IterationByTicker
	}
	return exchange.IterationByID
}

// Watcher holds the live, possibly-reloading configuration snapshot.
// ledgerline-server reads its configuration once at startup and does
// not consult the Watcher, so a reloaded value (InstrumentIteration
// included) takes effect there only after a restart.
type Watcher struct {
	v       *viper.Viper
	current atomic.Pointer[Config]
}

// Load reads configuration from path (if non-empty) plus the
// LEDGERLINE_-prefixed environment, and starts watching path for
// changes. Returns the initial snapshot and the live Watcher.
func Load(path string) (Config, *Watcher, error) {
	v := viper.New()
	defaults(v)
	v.SetEnvPrefix("ledgerline")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, nil, fmt.Errorf("reading config %q: %w", path, err)
		}
	}

	cfg := fromViper(v)
	w := &Watcher{v: v}
	w.current.Store(&cfg)

	if path != "" {
		v.OnConfigChange(func(e fsnotify.Event) {
			reloaded := fromViper(v)
			w.current.Store(&reloaded)
			log.Info().
				Str("event", e.Name).
				Str("instrumentIteration", reloaded.InstrumentIteration).
				Msg("configuration reloaded")
		})
		v.WatchConfig()
	}

	return cfg, w, nil
}

// Current returns the most recently loaded configuration snapshot.
func (w *Watcher) Current() Config {
	return *w.current.Load()
}
