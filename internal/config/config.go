// Package config собирает конфигурацию сервиса: значения по умолчанию,
// затем YAML-файл, затем .env и переменные окружения. Последний источник побеждает.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

type HTTP struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type Store struct {
	Driver            string `yaml:"driver"`
	MongoURI          string `yaml:"mongo_uri"`
	MongoDatabase     string `yaml:"mongo_database"`
	MongoTransactions bool   `yaml:"mongo_transactions"`
	PostgresDSN       string `yaml:"postgres_dsn"`
}

type Redis struct {
	// URL пустой: очередь очистки корзин держится в памяти процесса
	URL string `yaml:"url"`
}

type Auth struct {
	JWTSecret   string `yaml:"jwt_secret"`
	AdminAPIKey string `yaml:"admin_api_key"`
}

type CORS struct {
	Origins []string `yaml:"origins"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Tracing struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type Cleanup struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type Orders struct {
	FreeShippingOver       float64 `yaml:"free_shipping_over"`
	FlatShipping           float64 `yaml:"flat_shipping"`
	ReserveStock           bool    `yaml:"reserve_stock"`
	VerifyAddressOwnership bool    `yaml:"verify_address_ownership"`
}

// Config конфигурация сервиса целиком
type Config struct {
	HTTP    HTTP    `yaml:"http"`
	Store   Store   `yaml:"store"`
	Redis   Redis   `yaml:"redis"`
	Auth    Auth    `yaml:"auth"`
	CORS    CORS    `yaml:"cors"`
	Log     Log     `yaml:"log"`
	Tracing Tracing `yaml:"tracing"`
	Cleanup Cleanup `yaml:"cleanup"`
	Orders  Orders  `yaml:"orders"`
}

func Default() Config {
	return Config{
		HTTP:    HTTP{Addr: ":9091", ShutdownTimeout: 5 * time.Second},
		Store:   Store{Driver: DriverMemory, MongoDatabase: "marketplace"},
		CORS:    CORS{Origins: []string{"*"}},
		Log:     Log{Level: "info", Format: "json"},
		Tracing: Tracing{ServiceName: "marketplace"},
		Cleanup: Cleanup{SweepInterval: time.Minute},
		Orders:  Orders{FreeShippingOver: 50, FlatShipping: 5},
	}
}

// Load читает конфигурацию. path может быть пустым; .env в рабочем каталоге необязателен
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	boolean := func(dst *bool, key string) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	float := func(dst *float64, key string) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	duration := func(dst *time.Duration, key string) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str(&c.HTTP.Addr, "HTTP_ADDR")
	if port, ok := lookup("PORT"); ok && port != "" {
		c.HTTP.Addr = ":" + port
	}
	duration(&c.HTTP.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT")
	str(&c.Store.Driver, "STORE_DRIVER")
	str(&c.Store.MongoURI, "MONGO_URI", "MONGODB_URI")
	str(&c.Store.MongoDatabase, "MONGO_DATABASE")
	boolean(&c.Store.MongoTransactions, "MONGO_TRANSACTIONS")
	str(&c.Store.PostgresDSN, "POSTGRES_DSN", "DATABASE_URL")
	str(&c.Redis.URL, "REDIS_URL")
	str(&c.Auth.JWTSecret, "JWT_SECRET")
	str(&c.Auth.AdminAPIKey, "ADMIN_API_KEY")
	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		c.CORS.Origins = splitList(v)
	}
	str(&c.Log.Level, "LOG_LEVEL")
	str(&c.Log.Format, "LOG_FORMAT")
	boolean(&c.Tracing.Enabled, "TRACING_ENABLED")
	str(&c.Tracing.ServiceName, "OTEL_SERVICE_NAME")
	duration(&c.Cleanup.SweepInterval, "CART_SWEEP_INTERVAL")
	float(&c.Orders.FreeShippingOver, "FREE_SHIPPING_OVER")
	float(&c.Orders.FlatShipping, "FLAT_SHIPPING_FEE")
	boolean(&c.Orders.ReserveStock, "RESERVE_STOCK")
	boolean(&c.Orders.VerifyAddressOwnership, "VERIFY_ADDRESS_OWNERSHIP")

	return errors.Join(errs...)
}

// Validate проверяет согласованность настроек
func (c Config) Validate() error {
	var errs []error
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http addr is required"))
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverMongo:
		if c.Store.MongoURI == "" {
			errs = append(errs, errors.New("mongo uri is required for the mongo driver"))
		}
		if c.Store.MongoDatabase == "" {
			errs = append(errs, errors.New("mongo database is required"))
		}
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("jwt secret is required"))
	}
	if c.Auth.AdminAPIKey == "" {
		errs = append(errs, errors.New("admin api key is required"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if c.Cleanup.SweepInterval <= 0 {
		errs = append(errs, errors.New("cart sweep interval must be positive"))
	}
	if c.Orders.FreeShippingOver < 0 || c.Orders.FlatShipping < 0 {
		errs = append(errs, errors.New("shipping amounts must not be negative"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	out := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
