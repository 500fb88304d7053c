package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8081" validate:"min=1000,max=65535"`

	TurnSeconds         int    `env:"TURN_SECONDS"          envDefault:"15"   validate:"min=1,max=600"`
	PreCountdownSeconds int    `env:"PRE_COUNTDOWN_SECONDS" envDefault:"5"    validate:"min=0,max=60"`
	DefaultTotalTurns   int    `env:"DEFAULT_TOTAL_TURNS"   envDefault:"8"    validate:"min=1,max=100"`
	CountdownActivation string `env:"COUNTDOWN_ACTIVATION"  envDefault:"auto" validate:"oneof=auto request"`

	RedisEnabled  bool   `env:"REDIS_ENABLED"   envDefault:"false"`
	RedisHost     string `env:"REDIS_HOST"      envDefault:"localhost"`
	RedisPort     uint16 `env:"REDIS_PORT"      envDefault:"6379" validate:"min=1000,max=65535"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"0"    validate:"min=0,max=512"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
