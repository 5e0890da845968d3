package main

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type config struct {
	Addr        string        `env:"ADDR" env-default:":8080"`
	DatabaseURL string        `env:"DATABASE_URL" env-default:"postgres://postgres:postgres@db:5432/taskflow?sslmode=disable"`
	JWTSecret   string        `env:"JWT_SECRET" env-default:"dev-secret-change-me"`
	AccessTTL   time.Duration `env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTTL  time.Duration `env:"REFRESH_TOKEN_TTL" env-default:"168h"`
	// Production elides internal error detail from 500 responses.
	Production bool `env:"PRODUCTION" env-default:"false"`
}

func loadConfig() (config, error) {
	var cfg config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return config{}, err
	}
	return cfg, nil
}
