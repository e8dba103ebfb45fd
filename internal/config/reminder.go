package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var reminderConfigPaths = []string{"/etc/invoiceledger", "."}

// ReminderConfig holds the escalation thresholds, in days past the due date,
// at which each reminder tier becomes due.
type ReminderConfig struct {
	FirstAfterDays  int `mapstructure:"firstAfterDays"`
	SecondAfterDays int `mapstructure:"secondAfterDays"`
	FinalAfterDays  int `mapstructure:"finalAfterDays"`
}

func DefaultReminderConfig() ReminderConfig {
	return ReminderConfig{
		FirstAfterDays:  7,
		SecondAfterDays: 14,
		FinalAfterDays:  30,
	}
}

type ReminderConfigHolder struct {
	current atomic.Value // holds ReminderConfig
}

// NewStaticReminderConfigHolder returns a holder that never reloads.
func NewStaticReminderConfigHolder(cfg ReminderConfig) *ReminderConfigHolder {
	holder := &ReminderConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

// NewReminderConfigHolder reads reminder.yml and watches it. Without a file
// the defaults apply and nothing is watched.
func NewReminderConfigHolder(log *zap.Logger) (*ReminderConfigHolder, error) {
	return loadReminderConfig(log.Named("config.reminder"), reminderConfigPaths...)
}

func loadReminderConfig(log *zap.Logger, paths ...string) (*ReminderConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("reminder")
	v.SetConfigType("yml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("INVOICELEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultReminderConfig()
	v.SetDefault("reminder.firstAfterDays", defaults.FirstAfterDays)
	v.SetDefault("reminder.secondAfterDays", defaults.SecondAfterDays)
	v.SetDefault("reminder.finalAfterDays", defaults.FinalAfterDays)

	found := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		found = false
	}

	var cfg ReminderConfig
	if err := v.UnmarshalKey("reminder", &cfg); err != nil {
		return nil, err
	}
	if err := ValidateReminderConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticReminderConfigHolder(cfg)
	if !found {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated ReminderConfig
		if err := v.UnmarshalKey("reminder", &updated); err != nil {
			log.Warn("reminder config reload failed", zap.Error(err))
			return
		}
		if err := ValidateReminderConfig(updated); err != nil {
			log.Warn("invalid reminder config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reminder config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *ReminderConfigHolder) Get() ReminderConfig {
	if h == nil {
		return DefaultReminderConfig()
	}
	cfg, ok := h.current.Load().(ReminderConfig)
	if !ok {
		return DefaultReminderConfig()
	}
	return cfg
}

func ValidateReminderConfig(cfg ReminderConfig) error {
	if cfg.FirstAfterDays <= 0 {
		return errors.New("reminder.firstAfterDays must be positive")
	}
	if cfg.SecondAfterDays <= cfg.FirstAfterDays {
		return errors.New("reminder.secondAfterDays must be greater than firstAfterDays")
	}
	if cfg.FinalAfterDays <= cfg.SecondAfterDays {
		return errors.New("reminder.finalAfterDays must be greater than secondAfterDays")
	}
	return nil
}
