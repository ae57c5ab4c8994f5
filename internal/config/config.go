package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var (
	logger = log.With().Str("component", "config").Logger()
)

type SanityConfig struct {
	ProjectID string `env:"SANITY_PROJECT_ID"`
	Dataset   string `env:"SANITY_DATASET"`
	Token     string `env:"SANITY_TOKEN"`
}

type Config struct {
	Port    uint   `env:"PORT" envDefault:"3001"`
	GinMode string `env:"GIN_MODE" envDefault:"release"`

	GuildID   string `env:"GUILD_ID"`
	ChannelID string `env:"CHANNEL_ID"`
	RoleID    string `env:"ROLE_ID"`
	BotSecret string `env:"BOT_SECRET"`

	DeleteInvitePassword string `env:"DELETE_INVITE_PASSWORD"`

	// RequireEmail selects the signup variant: when set, POST /invite
	// demands an email and mirrors it into the document store before the
	// invite is created; when unset, GET /invite is also accepted.
	RequireEmail bool `env:"REQUIRE_EMAIL" envDefault:"true"`

	RateLimitRPS        float64 `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst      int     `env:"RATE_LIMIT_BURST" envDefault:"10"`
	CacheRefreshMinutes uint    `env:"CACHE_REFRESH_MINUTES" envDefault:"5"`

	Sanity SanityConfig
}

// Load reads configuration from the environment and fatals on anything
// missing that the bot cannot run without.
func Load() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		logger.Fatal().Err(err).Msg("failed to parse environment")
	}

	cfg.validate()

	return cfg
}

func (c *Config) validate() {
	if c.GuildID == "" {
		logger.Fatal().Msg("GUILD_ID is missing")
	}

	if c.ChannelID == "" {
		logger.Fatal().Msg("CHANNEL_ID is missing")
	}

	if c.RoleID == "" {
		logger.Fatal().Msg("ROLE_ID is missing")
	}

	if c.BotSecret == "" {
		logger.Fatal().Msg("BOT_SECRET is missing")
	}

	if c.DeleteInvitePassword == "" {
		logger.Fatal().Msg("DELETE_INVITE_PASSWORD is missing")
	}

	if c.RequireEmail {
		if c.Sanity.ProjectID == "" {
			logger.Fatal().Msg("SANITY_PROJECT_ID is missing")
		}

		if c.Sanity.Dataset == "" {
			logger.Fatal().Msg("SANITY_DATASET is missing")
		}

		if c.Sanity.Token == "" {
			logger.Fatal().Msg("SANITY_TOKEN is missing")
		}
	}
}
