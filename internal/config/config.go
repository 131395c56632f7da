package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"
	"github.com/tobsdb/tobsql"
)

const ENV_PREFIX = "TOBSQL_"

// Load reads a database config from file (yaml, json or toml; optional)
// and then from TOBSQL_* environment variables, on top of
// tobsql.DefaultConfig. TOBSQL_LOG_SHOW_DEBUG_LOGS sets log.show_debug_logs.
func Load(file string) (tobsql.Config, error) {
	cfg := tobsql.DefaultConfig()
	v := viper.New()

	v.SetDefault("persistent", cfg.Persistent)
	v.SetDefault("history", cfg.History)
	v.SetDefault("memory", cfg.Memory)
	v.SetDefault("size", cfg.Size)
	v.SetDefault("path", cfg.Path)
	v.SetDefault("queue_size", cfg.QueueSize)
	v.SetDefault("log.should_log", cfg.Log.Should_log)
	v.SetDefault("log.show_debug_logs", cfg.Log.Show_debug_logs)

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			var not_found viper.ConfigFileNotFoundError
			if !errors.As(err, &not_found) && !errors.Is(err, fs.ErrNotExist) {
				return cfg, fmt.Errorf("failed to read config %s: %w", file, err)
			}
		}
	}

	known := map[string]string{}
	for _, key := range v.AllKeys() {
		known[strings.ToUpper(strings.ReplaceAll(key, ".", "_"))] = key
	}

	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, ENV_PREFIX) {
			continue
		}
		name := strings.TrimPrefix(key, ENV_PREFIX)
		if prop, ok := known[name]; ok {
			v.Set(prop, value)
			continue
		}
		// TOBSQL_A_B -> a.b
		v.Set(strings.ToLower(strings.ReplaceAll(name, "_", ".")), value)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}
