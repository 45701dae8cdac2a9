package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/rocketscienceinc/gomoku-lan/internal/entity"
)

const (
	ModeHost = "host"
	ModeJoin = "join"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	LogLevel    string        `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	Mode        string        `yaml:"mode" env:"MODE" env-default:"host"`
	PlayerName  string        `yaml:"player-name" env:"PLAYER_NAME"`
	GridSize    int           `yaml:"grid-size" env:"GRID_SIZE" env-default:"15"`
	GamePort    string        `yaml:"game-port" env:"GAME_PORT" env-default:"6789"`
	ServerAddr  string        `yaml:"server-addr" env:"SERVER_ADDR" env-default:"127.0.0.1"`
	ReadTimeout time.Duration `yaml:"read-timeout" env:"READ_TIMEOUT" env-default:"0s"`
	HTTPPort    string        `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	Redis       Redis         `yaml:"redis"`
}

type Redis struct {
	Enabled bool          `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	Host    string        `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port    string        `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	DB      int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	TTL     time.Duration `yaml:"ttl" env:"REDIS_TTL" env-default:"1h"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

// Load reads path, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (that *Config) Validate() error {
	switch that.Mode {
	case ModeHost, ModeJoin:
	default:
		return fmt.Errorf("%w: mode must be %q or %q, got %q", ErrInvalidConfig, ModeHost, ModeJoin, that.Mode)
	}

	switch that.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, that.LogLevel)
	}

	if err := entity.ValidateGridSize(that.GridSize); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if port, err := strconv.Atoi(that.GamePort); err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("%w: bad game port %q", ErrInvalidConfig, that.GamePort)
	}

	if that.ReadTimeout < 0 {
		return fmt.Errorf("%w: read timeout must not be negative", ErrInvalidConfig)
	}

	if that.Mode == ModeJoin && that.ServerAddr == "" {
		return fmt.Errorf("%w: server address is required to join", ErrInvalidConfig)
	}

	return nil
}

// GameAddr is where the host listens or the joining player dials.
func (that *Config) GameAddr() string {
	if that.Mode == ModeHost {
		return net.JoinHostPort("", that.GamePort)
	}

	return net.JoinHostPort(that.ServerAddr, that.GamePort)
}

// HTTPEnabled reports whether the status API should be served.
func (that *Config) HTTPEnabled() bool {
	return that.HTTPPort != "" && that.HTTPPort != "0"
}

func (that *Redis) GetRedisAddr() string {
	return net.JoinHostPort(that.Host, that.Port)
}
