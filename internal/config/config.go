package config

import (
	"time"

	"github.com/caarlos0/env/v9"
)

type Config struct {
	Port string `env:"AGENT_PORT" envDefault:"8080"`

	APIBase    string        `env:"API_BASE,required"` // e.g. https://plataforma.example.com
	APIToken   string        `env:"API_TOKEN"`
	APITimeout time.Duration `env:"API_TIMEOUT" envDefault:"10s"`

	CourierID   int64  `env:"MOTOBOY_ID,required"`
	CourierName string `env:"MOTOBOY_NOME"`

	OfferTTL      time.Duration `env:"OFFER_TTL" envDefault:"15s"`
	DedupeWindow  time.Duration `env:"DEDUPE_WINDOW" envDefault:"150ms"`
	CountdownTick time.Duration `env:"COUNTDOWN_TICK" envDefault:"1s"`

	StatusPollInterval      time.Duration `env:"STATUS_POLL_INTERVAL" envDefault:"3s"`
	AffiliationPollInterval time.Duration `env:"AFFILIATION_POLL_INTERVAL" envDefault:"10s"`
	AbsenceConfirmations    int           `env:"ABSENCE_CONFIRMATIONS" envDefault:"1"`

	HoldThreshold time.Duration `env:"HOLD_THRESHOLD" envDefault:"1500ms"`

	DraftsDB string `env:"DRAFTS_DB" envDefault:"motoboy-agent.db"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
