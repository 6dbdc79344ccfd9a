package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/kbukum/speechgate/logger"
)

// Watch loads path into a fresh value of T and calls onChange with it, then
// calls onChange again after every write to the file. Decode errors on reload
// are logged and the previous value stays in effect.
func Watch[T any](path string, onChange func(T)) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	bindPrefixedEnv(v)

	var initial T
	if err := v.Unmarshal(&initial); err != nil {
		return fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	onChange(initial)

	log := logger.Get("config")
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		var next T
		if err := v.Unmarshal(&next); err != nil {
			log.Warn("config reload rejected", logger.Fields("path", e.Name, logger.FieldError, err.Error()))
			return
		}
		log.Info("config reloaded", logger.Fields("path", e.Name))
		onChange(next)
	})
	v.WatchConfig()
	return nil
}
