// Package config carga la configuración del servicio desde YAML con
// overrides por variables de entorno.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	EventLog struct {
		// memory | postgres
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"eventlog"`

	ReadModel struct {
		// memory | redis
		Driver string `yaml:"driver"`
		Redis  struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"readmodel"`

	AccessToken struct {
		Issuer string `yaml:"issuer"`
		// TTL en formato time.ParseDuration, p.ej. "15m".
		TTL string `yaml:"ttl"`
		// Secret viene de KEYFOLD_ACCESS_SECRET; nunca del YAML en prod.
		Secret string `yaml:"secret"`
	} `yaml:"access_token"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load lee el YAML (opcional) y aplica defaults y overrides de entorno.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	if _, err := time.ParseDuration(cfg.AccessToken.TTL); err != nil {
		return nil, fmt.Errorf("access_token.ttl %q: %w", cfg.AccessToken.TTL, err)
	}
	return cfg, nil
}

// AccessTTL devuelve el TTL parseado. Load ya validó el formato.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.AccessToken.TTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

func applyEnv(cfg *Config) {
	cfg.App.Env = envOr("KEYFOLD_ENV", cfg.App.Env)
	cfg.Server.Addr = envOr("KEYFOLD_ADDR", cfg.Server.Addr)
	cfg.EventLog.Driver = envOr("KEYFOLD_EVENTLOG_DRIVER", cfg.EventLog.Driver)
	cfg.EventLog.DSN = envOr("KEYFOLD_EVENTLOG_DSN", cfg.EventLog.DSN)
	cfg.ReadModel.Driver = envOr("KEYFOLD_READMODEL_DRIVER", cfg.ReadModel.Driver)
	cfg.ReadModel.Redis.Addr = envOr("KEYFOLD_REDIS_ADDR", cfg.ReadModel.Redis.Addr)
	cfg.ReadModel.Redis.DB = envIntOr("KEYFOLD_REDIS_DB", cfg.ReadModel.Redis.DB)
	cfg.AccessToken.Issuer = envOr("KEYFOLD_ISSUER", cfg.AccessToken.Issuer)
	cfg.AccessToken.TTL = envOr("KEYFOLD_ACCESS_TTL", cfg.AccessToken.TTL)
	cfg.AccessToken.Secret = envOr("KEYFOLD_ACCESS_SECRET", cfg.AccessToken.Secret)
	cfg.Log.Level = envOr("KEYFOLD_LOG_LEVEL", cfg.Log.Level)
}

func applyDefaults(cfg *Config) {
	if cfg.App.Env == "" {
		cfg.App.Env = "dev"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.EventLog.Driver == "" {
		cfg.EventLog.Driver = "memory"
	}
	if cfg.ReadModel.Driver == "" {
		cfg.ReadModel.Driver = "memory"
	}
	if cfg.ReadModel.Redis.Prefix == "" {
		cfg.ReadModel.Redis.Prefix = "keyfold:"
	}
	if cfg.AccessToken.Issuer == "" {
		cfg.AccessToken.Issuer = "keyfold"
	}
	if cfg.AccessToken.TTL == "" {
		cfg.AccessToken.TTL = "15m"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
