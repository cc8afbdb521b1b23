package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"
	_ "time/tzdata"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// GamificationConfig holds the tunable rules of the points ledger.
type GamificationConfig struct {
	Timezone        string `mapstructure:"timezone"`
	StrictFrequency bool   `mapstructure:"strictFrequency"`
	TxMaxAttempts   int    `mapstructure:"txMaxAttempts"`
	LogLevel        string `mapstructure:"logLevel"`
}

func DefaultGamificationConfig() GamificationConfig {
	return GamificationConfig{
		Timezone:        "UTC",
		StrictFrequency: false,
		TxMaxAttempts:   3,
		LogLevel:        "info",
	}
}

// Location resolves the timezone that defines a calendar day. Unknown names fall back to UTC.
func (c GamificationConfig) Location() *time.Location {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

type GamificationConfigHolder struct {
	current   atomic.Value // holds GamificationConfig
	listeners []func(GamificationConfig)
}

// NewStaticGamificationConfig returns a holder that never reloads.
func NewStaticGamificationConfig(cfg GamificationConfig) *GamificationConfigHolder {
	holder := &GamificationConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewGamificationConfigHolder() (*GamificationConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("gamification")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/carepoints")
	v.AddConfigPath(".")

	v.SetEnvPrefix("GAMIFICATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultGamificationConfig()
	v.SetDefault("gamification.timezone", defaults.Timezone)
	v.SetDefault("gamification.strictFrequency", defaults.StrictFrequency)
	v.SetDefault("gamification.txMaxAttempts", defaults.TxMaxAttempts)
	v.SetDefault("gamification.logLevel", defaults.LogLevel)
	_ = v.BindEnv("gamification.timezone", "GAMIFICATION_TIMEZONE")
	_ = v.BindEnv("gamification.strictFrequency", "GAMIFICATION_STRICT_FREQUENCY")
	_ = v.BindEnv("gamification.txMaxAttempts", "GAMIFICATION_TX_MAX_ATTEMPTS")
	_ = v.BindEnv("gamification.logLevel", "LOG_LEVEL")

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg GamificationConfig
	if err := v.UnmarshalKey("gamification", &cfg); err != nil {
		return nil, err
	}
	if err := validateGamificationConfig(cfg); err != nil {
		return nil, err
	}

	holder := &GamificationConfigHolder{}
	holder.current.Store(cfg)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated GamificationConfig
			if err := v.UnmarshalKey("gamification", &updated); err != nil {
				log.Printf("[gamification-config] reload failed: %v", err)
				return
			}
			if err := validateGamificationConfig(updated); err != nil {
				log.Printf("[gamification-config] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			for _, fn := range holder.listeners {
				fn(updated)
			}
			log.Printf("[gamification-config] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

func (h *GamificationConfigHolder) Get() GamificationConfig {
	if h == nil {
		return DefaultGamificationConfig()
	}
	return h.current.Load().(GamificationConfig)
}

// OnChange registers fn to run after every successful reload.
// Listeners must be registered during startup, before the watcher fires.
func (h *GamificationConfigHolder) OnChange(fn func(GamificationConfig)) {
	if h == nil || fn == nil {
		return
	}
	h.listeners = append(h.listeners, fn)
}

func validateGamificationConfig(cfg GamificationConfig) error {
	if _, err := time.LoadLocation(strings.TrimSpace(cfg.Timezone)); err != nil {
		return errors.New("gamification.timezone is not a known location")
	}
	if cfg.TxMaxAttempts < 1 || cfg.TxMaxAttempts > 10 {
		return errors.New("gamification.txMaxAttempts must be between 1 and 10")
	}
	return nil
}
