// Package config loads tasksync settings from defaults, an optional file and
// the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. TASKSYNC_SERVER_ADDR.
const EnvPrefix = "TASKSYNC"

// Config is the root configuration.
type Config struct {
	Debug  bool         `json:"debug"  mapstructure:"debug"`
	Server ServerConfig `json:"server" mapstructure:"server"`
	Client ClientConfig `json:"client" mapstructure:"client"`
}

// ServerConfig configures the reference task API.
type ServerConfig struct {
	Addr         string `json:"addr"          mapstructure:"addr"`
	DBPath       string `json:"db_path"       mapstructure:"db_path"`
	DefaultLimit int    `json:"default_limit" mapstructure:"default_limit"`
}

// ClientConfig configures the sync client.
type ClientConfig struct {
	APIURL           string        `json:"api_url"           mapstructure:"api_url"`
	Timeout          time.Duration `json:"timeout"           mapstructure:"timeout"`
	OptimisticCreate bool          `json:"optimistic_create" mapstructure:"optimistic_create"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":5000",
			DBPath:       "./data/tasks.db",
			DefaultLimit: 100,
		},
		Client: ClientConfig{
			APIURL:  "http://localhost:5000/api/tasks",
			Timeout: 10 * time.Second,
		},
	}
}

// Load merges defaults, the file at path (skipped when empty) and environment
// overrides, then validates the result.
func Load(path string) (Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("debug", def.Debug)
	v.SetDefault("server.db_path", def.Server.DBPath)
	v.SetDefault("server.default_limit", def.Server.DefaultLimit)
	v.SetDefault("client.api_url", def.Client.APIURL)
	v.SetDefault("client.timeout", def.Client.Timeout)
	v.SetDefault("client.optimistic_create", def.Client.OptimisticCreate)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// PORT and DB_PATH are honoured for existing deployments of the server.
	bindings := [][]string{
		{"server.addr", EnvPrefix + "_SERVER_ADDR"},
		{"server.port", "PORT"},
		{"server.db_path", EnvPrefix + "_SERVER_DB_PATH", "DB_PATH"},
	}
	for _, b := range bindings {
		if err := v.BindEnv(b...); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", b[0], err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	raw := v.AllSettings()
	coerceKnown(v, raw)
	if err := ValidateSettings(raw); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
		if port := v.GetString("server.port"); port != "" {
			cfg.Server.Addr = ":" + port
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// coercions convert the known leaves to the types the schema expects.
// Environment overrides arrive as strings whatever the key.
var coercions = map[string]func(v *viper.Viper, key string) any{
	"debug":                    func(v *viper.Viper, key string) any { return v.GetBool(key) },
	"server.port":              func(v *viper.Viper, key string) any { return v.GetString(key) },
	"server.default_limit":     func(v *viper.Viper, key string) any { return v.GetInt(key) },
	"client.timeout":           func(v *viper.Viper, key string) any { return v.GetDuration(key).String() },
	"client.optimistic_create": func(v *viper.Viper, key string) any { return v.GetBool(key) },
}

// coerceKnown rewrites known leaves of raw in place. Unknown keys are kept so
// the schema can reject them.
func coerceKnown(v *viper.Viper, raw map[string]any) {
	for key, coerce := range coercions {
		parts := strings.Split(key, ".")
		parent := raw
		for _, p := range parts[:len(parts)-1] {
			child, ok := parent[p].(map[string]any)
			if !ok {
				parent = nil
				break
			}
			parent = child
		}
		if parent == nil {
			continue
		}
		leaf := parts[len(parts)-1]
		if _, ok := parent[leaf]; ok {
			parent[leaf] = coerce(v, key)
		}
	}
}

// Validate checks a fully resolved Config against the embedded schema.
func (c Config) Validate() error {
	if err := ValidateSettings(c.settings()); err != nil {
		return err
	}
	if c.Client.Timeout <= 0 {
		return fmt.Errorf("%w: client.timeout must be > 0", ErrInvalid)
	}
	return nil
}

// settings renders c as the plain document the schema describes.
func (c Config) settings() map[string]any {
	return map[string]any{
		"debug": c.Debug,
		"server": map[string]any{
			"addr":          c.Server.Addr,
			"db_path":       c.Server.DBPath,
			"default_limit": c.Server.DefaultLimit,
		},
		"client": map[string]any{
			"api_url":           c.Client.APIURL,
			"timeout":           c.Client.Timeout.String(),
			"optimistic_create": c.Client.OptimisticCreate,
		},
	}
}
