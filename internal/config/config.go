package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	// DefaultRoom is used when the /ws request carries no room parameter.
	DefaultRoom string `mapstructure:"default_room"`

	// MaxPeers caps concurrent participants per room; 0 removes the cap.
	MaxPeers int `mapstructure:"max_peers"`

	// ResetRoomStateOnEmpty also wipes the room's profile record when the
	// last participant leaves. Off by default: room codes are reused as
	// stable identifiers, so their configuration normally outlives a
	// temporary full disconnect.
	ResetRoomStateOnEmpty bool `mapstructure:"reset_room_state_on_empty"`

	Database DBConfig `mapstructure:"database"`
}

// DBConfig describes the Postgres backend. An empty Host means "run on the
// in-memory store".
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MinConns int    `mapstructure:"min_conns"`
	MaxConns int    `mapstructure:"max_conns"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("default_room", "global")
	v.SetDefault("max_peers", 2)
	v.SetDefault("reset_room_state_on_empty", false)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "prefer")
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conns", 4)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
