package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	_ "github.com/joho/godotenv/autoload"
)

// Logging profiles accepted in ENV.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Datastores accepted in DB_DRIVER.
const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

// Config is the whole service configuration, read from the environment.
type Config struct {
	Env    string `env:"ENV" env-default:"dev" env-description:"logging profile: local, dev or prod"`
	HTTP   HTTPConfig
	DB     DBConfig
	Static StaticConfig
}

// HTTPConfig configures the listener, CORS and graceful shutdown.
type HTTPConfig struct {
	Host            string        `env:"HOST" env-description:"listening host"`
	Port            string        `env:"PORT" env-default:"4000" env-description:"listening port"`
	CORSOrigin      string        `env:"CORS_ORIGIN" env-default:"*" env-description:"allowed cross-origin source, comma separated"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"5s" env-description:"graceful shutdown budget"`
}

// DBConfig selects the datastore and holds its connection settings.
type DBConfig struct {
	Driver              string        `env:"DB_DRIVER" env-default:"mongo" env-description:"datastore: mongo or sqlite"`
	MongoURI            string        `env:"MONGODB_URI" env-default:"mongodb://127.0.0.1:27017/tmrapi" env-description:"mongo connection string"`
	MongoDatabase       string        `env:"MONGODB_DATABASE" env-description:"database name, overrides the uri path"`
	MongoConnectTimeout time.Duration `env:"MONGODB_CONNECT_TIMEOUT" env-default:"10s" env-description:"initial ping and server selection timeout"`
	SQLitePath          string        `env:"SQLITE_PATH" env-default:"data/tasks.db" env-description:"sqlite database file"`
}

// StaticConfig configures where the browser client is served from.
type StaticConfig struct {
	Dir string `env:"STATIC_DIR" env-description:"serve the client from this directory instead of the embedded bundle"`
}

// Addr is the listen address built from host and port.
func (c HTTPConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// CORSOrigins splits the configured origin list.
func (c HTTPConfig) CORSOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Read loads the configuration from the environment (and .env, if present).
func Read() (*Config, error) {
	cfg := new(Config)
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("unknown env: %s", c.Env)
	}
	switch c.DB.Driver {
	case DriverMongo, DriverSQLite:
	default:
		return fmt.Errorf("unknown db driver: %s", c.DB.Driver)
	}
	return nil
}
