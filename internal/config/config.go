// Package config loads storefront settings from the environment.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const prefix = "STOREFRONT"

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreMySQL  = "mysql"

	CatalogSeed  = "seed"
	CatalogMySQL = "mysql"

	IdentityStatic = "static"
	IdentityOIDC   = "oidc"
)

// devSessionSecret is the SESSION_SECRET default. It is public, so only the
// static development identity may run with it.
const devSessionSecret = "change-me-change-me-change-me-00"


type Config struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	GRPCAddr string `envconfig:"GRPC_ADDR" default:":50051"`
	BaseURL  string `envconfig:"BASE_URL" default:"http://localhost:8080"`

	Store    string        `envconfig:"STORE" default:"memory"`
	RedisURL string        `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	MySQLDSN string        `envconfig:"MYSQL_DSN" default:"root:root@tcp(localhost:3306)/storefront?parseTime=true"`
	CartTTL  time.Duration `envconfig:"CART_TTL" default:"720h"`

	Catalog      string `envconfig:"CATALOG" default:"seed"`
	PageSize     int    `envconfig:"PAGE_SIZE" default:"6"`
	PriceCeiling int64  `envconfig:"PRICE_CEILING" default:"2000"`

	PaymentSimulated bool          `envconfig:"PAYMENT_SIMULATED" default:"true"`
	PaymentDelay     time.Duration `envconfig:"PAYMENT_DELAY" default:"2s"`
	Workers          int           `envconfig:"WORKERS" default:"4"`
	QueueSize        int           `envconfig:"QUEUE_SIZE" default:"1000"`
	CheckoutRate     float64       `envconfig:"CHECKOUT_RATE" default:"5"`
	CheckoutBurst    int           `envconfig:"CHECKOUT_BURST" default:"10"`

	Identity         string        `envconfig:"IDENTITY" default:"static"`
	OIDCIssuer       string        `envconfig:"OIDC_ISSUER"`
	OIDCClientID     string        `envconfig:"OIDC_CLIENT_ID"`
	OIDCClientSecret string        `envconfig:"OIDC_CLIENT_SECRET"`
	SessionSecret    string        `envconfig:"SESSION_SECRET" default:"change-me-change-me-change-me-00"`
	SessionTTL       time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	StaticUserID     string        `envconfig:"STATIC_USER_ID" default:"dev|1"`
	StaticUserEmail  string        `envconfig:"STATIC_USER_EMAIL" default:"dev@localhost"`
	StaticUserName   string        `envconfig:"STATIC_USER_NAME" default:"Developer"`
	SecureCookies    bool          `envconfig:"SECURE_COOKIES" default:"false"`
	SessionIdle      time.Duration `envconfig:"SESSION_IDLE" default:"30m"`
	SweepInterval    time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`

	OTLPEndpoint string `envconfig:"OTLP_ENDPOINT"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"LOG_FORMAT" default:"json"`
}

// Load reads an optional .env file and then the STOREFRONT_* environment.
// Variables already set in the environment win over the file.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return Config{}, errors.Wrapf(err, "load %s", f)
		}
	}

	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "process environment")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreRedis, StoreMySQL:
	default:
		return errors.Errorf("unknown store %q", c.Store)
	}
	switch c.Catalog {
	case CatalogSeed, CatalogMySQL:
	default:
		return errors.Errorf("unknown catalog source %q", c.Catalog)
	}
	switch c.Identity {
	case IdentityStatic:
	case IdentityOIDC:
		if c.OIDCIssuer == "" || c.OIDCClientID == "" {
			return errors.New("oidc identity needs OIDC_ISSUER and OIDC_CLIENT_ID")
		}
		if c.SessionSecret == devSessionSecret {
			return errors.New("oidc identity needs a private SESSION_SECRET, the default is public")
		}
	default:
		return errors.Errorf("unknown identity provider %q", c.Identity)
	}
	if !c.PaymentSimulated {
		return errors.New("no payment processor is configured; set PAYMENT_SIMULATED=true")
	}
	if c.PageSize <= 0 {
		return errors.Errorf("page size must be positive, got %d", c.PageSize)
	}
	if c.PriceCeiling <= 0 {
		return errors.Errorf("price ceiling must be positive, got %d", c.PriceCeiling)
	}
	if c.Workers <= 0 {
		return errors.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.SessionIdle <= 0 || c.SweepInterval <= 0 {
		return errors.New("SESSION_IDLE and SWEEP_INTERVAL must be positive")
	}
	return nil
}
