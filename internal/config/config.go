package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Stores lists the backing store names VC_STORE accepts.
var Stores = []string{"memory", "sqlite", "postgres", "nats", "mongo", "blob"}

// Config contains the application configuration, to be unmarshalled into by Viper.
type Config struct {
	ListenAddr   string        `mapstructure:"VC_LISTEN_ADDR"`
	Path         string        `mapstructure:"VC_PATH"`
	Key          string        `mapstructure:"VC_KEY"`
	Store        string        `mapstructure:"VC_STORE"`
	StoreTimeout time.Duration `mapstructure:"VC_STORE_TIMEOUT"`

	SqlitePath string `mapstructure:"VC_SQLITE_PATH"`

	DbHost string `mapstructure:"VC_DB_HOST"`
	DbPort int    `mapstructure:"VC_DB_PORT"`
	DbUser string `mapstructure:"POSTGRES_USER"`
	DbPass string `mapstructure:"POSTGRES_PASSWORD"`
	DbName string `mapstructure:"POSTGRES_DB"`

	NatsURL    string `mapstructure:"VC_NATS_URL"`
	NatsBucket string `mapstructure:"VC_NATS_BUCKET"`

	MongoURI        string `mapstructure:"VC_MONGO_URI"`
	MongoDB         string `mapstructure:"VC_MONGO_DB"`
	MongoCollection string `mapstructure:"VC_MONGO_COLLECTION"`

	BlobURL   string `mapstructure:"VC_BLOB_URL"`
	BlobToken string `mapstructure:"BLOB_READ_WRITE_TOKEN"`
}

var defaults = map[string]any{
	"VC_LISTEN_ADDR":        ":8080",
	"VC_PATH":               "/api/views",
	"VC_KEY":                "portfolio-views",
	"VC_STORE":              "sqlite",
	"VC_STORE_TIMEOUT":      5 * time.Second,
	"VC_SQLITE_PATH":        "views.db",
	"VC_DB_HOST":            "localhost",
	"VC_DB_PORT":            5432,
	"POSTGRES_USER":         "views",
	"POSTGRES_PASSWORD":     "",
	"POSTGRES_DB":           "views",
	"VC_NATS_URL":           "nats://127.0.0.1:4222",
	"VC_NATS_BUCKET":        "views",
	"VC_MONGO_URI":          "",
	"VC_MONGO_DB":           "views",
	"VC_MONGO_COLLECTION":   "blobs",
	"VC_BLOB_URL":           "",
	"BLOB_READ_WRITE_TOKEN": "",
}

// Get looks in <dir>/config.env and environment variables for needed values.
func Get(dir string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("env")
	v.AddConfigPath(dir)

	for key, value := range defaults {
		v.SetDefault(key, value)
		_ = v.BindEnv(key)
	}

	// Will error if no config file, but we also load from env vars so no need to fail.
	_ = v.ReadInConfig()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, err
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate checks the values a given store needs are present and sane.
func (c Config) Validate() error {
	if c.Key == "" {
		return fmt.Errorf("VC_KEY must not be empty")
	}
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("VC_PATH must start with /, got %q", c.Path)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("VC_STORE_TIMEOUT must be positive, got %s", c.StoreTimeout)
	}

	switch c.Store {
	case "memory", "postgres":
	case "sqlite":
		if c.SqlitePath == "" {
			return fmt.Errorf("VC_SQLITE_PATH must be set for the sqlite store")
		}
	case "nats":
		if c.NatsBucket == "" {
			return fmt.Errorf("VC_NATS_BUCKET must be set for the nats store")
		}
	case "mongo":
		if c.MongoURI == "" || c.MongoDB == "" || c.MongoCollection == "" {
			return fmt.Errorf("VC_MONGO_URI, VC_MONGO_DB and VC_MONGO_COLLECTION must be set for the mongo store")
		}
	case "blob":
		if c.BlobURL == "" {
			return fmt.Errorf("VC_BLOB_URL must be set for the blob store")
		}
	default:
		return fmt.Errorf("unknown VC_STORE %q, want one of %s", c.Store, strings.Join(Stores, ", "))
	}

	return nil
}

func (c Config) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s",
		c.DbUser, c.DbPass,
		c.DbHost, c.DbPort,
		c.DbName,
	)
}

func (c Config) CensoredConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s",
		c.DbUser, "******",
		c.DbHost, c.DbPort,
		c.DbName,
	)
}
