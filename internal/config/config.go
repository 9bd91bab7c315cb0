// Package config reads the server configuration from the environment.
//
// A .env file in the working directory is loaded first when present, so
// local development does not need exported variables. Real environment
// variables always win over the file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage backends accepted by STORE_BACKEND.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

const minSecretLength = 16

// Config holds every setting the server needs.
type Config struct {
	Port      int    `env:"PORT"       envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	Backend     string `env:"STORE_BACKEND" envDefault:"sqlite"`
	DBPath      string `env:"DB_PATH"       envDefault:"data/instalitre.db"`
	DatabaseURL string `env:"DATABASE_URL"`

	Mongo MongoConfig

	JWTSecret    string        `env:"JWT_SECRET"`
	SessionTTL   time.Duration `env:"SESSION_TTL"   envDefault:"24h"`
	SecureCookie bool          `env:"SECURE_COOKIE" envDefault:"false"`
	BcryptCost   int           `env:"BCRYPT_COST"   envDefault:"12"`

	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	ImageWorkers   int    `env:"IMAGE_WORKERS"    envDefault:"4"`
	ListRetries    uint64 `env:"LIST_RETRIES"     envDefault:"3"`
}

// MongoConfig describes the MongoDB connection. URI takes precedence; when
// it is empty a mongodb+srv URI is assembled from Username, Password and Host.
type MongoConfig struct {
	URI      string `env:"MONGO_URI"`
	Username string `env:"MONGO_USERNAME"`
	Password string `env:"MONGO_PASSWORD"`
	Host     string `env:"MONGO_HOST"`
	Database string `env:"MONGO_DATABASE" envDefault:"instalitre"`
}

// ConnectionURI returns the URI to dial.
func (m MongoConfig) ConnectionURI() string {
	if m.URI != "" {
		return m.URI
	}
	u := url.URL{
		Scheme: "mongodb+srv",
		User:   url.UserPassword(m.Username, m.Password),
		Host:   m.Host,
		Path:   "/",
	}
	return u.String()
}

// Load reads .env (if any) and the environment, then validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting, naming its variable.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	}

	switch c.Backend {
	case BackendSQLite:
		if c.DBPath == "" {
			return errors.New("config: DB_PATH is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres backend")
		}
	case BackendMongo:
		if c.Mongo.URI == "" && c.Mongo.Host == "" {
			return errors.New("config: MONGO_URI or MONGO_HOST is required for the mongo backend")
		}
		if c.Mongo.Database == "" {
			return errors.New("config: MONGO_DATABASE must not be empty")
		}
	default:
		return fmt.Errorf("config: STORE_BACKEND %q is not one of sqlite, postgres, mongo", c.Backend)
	}

	if len(c.JWTSecret) < minSecretLength {
		return fmt.Errorf("config: JWT_SECRET must be at least %d characters", minSecretLength)
	}
	if c.SessionTTL <= 0 {
		return errors.New("config: SESSION_TTL must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("config: BCRYPT_COST %d outside [4, 31]", c.BcryptCost)
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("config: MAX_UPLOAD_BYTES must be positive")
	}
	if c.ImageWorkers <= 0 {
		return errors.New("config: IMAGE_WORKERS must be positive")
	}
	return nil
}
