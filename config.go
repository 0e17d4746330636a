package identity

import (
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

// Config is the environment-driven configuration for the authentication core.
// The signing key is the only hard requirement; every TTL and the bcrypt cost
// carry the platform defaults.
type Config struct {
	SigningKey string   `env:"AUTH_SIGNING_KEY,required,notEmpty"`
	Issuer     string   `env:"AUTH_ISSUER" envDefault:"studyhall"`
	Audience   []string `env:"AUTH_AUDIENCE" envSeparator:","`

	AccessTokenTTL  time.Duration `env:"AUTH_ACCESS_TOKEN_TTL" envDefault:"168h"`
	RefreshTokenTTL time.Duration `env:"AUTH_REFRESH_TOKEN_TTL" envDefault:"720h"`
	ResetTokenTTL   time.Duration `env:"AUTH_RESET_TOKEN_TTL" envDefault:"10m"`

	BcryptCost int `env:"AUTH_BCRYPT_COST" envDefault:"12"`

	// DeterministicIDs derives account IDs from the email, keeping fixtures
	// stable across environment rebuilds.
	DeterministicIDs bool `env:"AUTH_DETERMINISTIC_IDS" envDefault:"false"`
}

var defaultEnvLoaded sync.Once

// LoadConfig reads the configuration from the environment, loading a .env
// file first when one exists.
func LoadConfig() (Config, error) {
	defaultEnvLoaded.Do(func() {
		// the .env file might not exist and that's ok
		_ = godotenv.Load()
	})

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse identity configuration")
	}

	return cfg, nil
}

// TokenIssuerConfig derives the issuer settings from the loaded config.
func (c Config) TokenIssuerConfig() TokenIssuerConfig {
	return TokenIssuerConfig{
		Issuer:     c.Issuer,
		Audience:   c.Audience,
		AccessTTL:  c.AccessTokenTTL,
		RefreshTTL: c.RefreshTokenTTL,
	}
}
