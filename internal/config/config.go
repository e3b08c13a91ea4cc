// Package config читает настройки из переменных окружения PAY2WIN_* и
// необязательного config.yaml. Переменные окружения важнее файла.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "PAY2WIN"

const (
	StoreEmbedded = "embedded"
	StorePostgres = "postgres"
)

type Config struct {
	HTTPAddr string `mapstructure:"http_addr"`
	GRPCAddr string `mapstructure:"grpc_addr"`
	Store    string `mapstructure:"store"`

	Embedded EmbeddedConfig `mapstructure:"embedded"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Rabbit   RabbitConfig   `mapstructure:"rabbit"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	OTel     OTelConfig     `mapstructure:"otel"`
}

type EmbeddedConfig struct {
	DSN string `mapstructure:"dsn"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

func (p PostgresConfig) DSN() string {
	return "postgres://" + p.User + ":" + p.Password + "@" + p.Host + ":" + p.Port + "/" + p.Database
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"` // через запятую
	Topic   string `mapstructure:"topic"`
	Group   string `mapstructure:"group"`
}

func (k KafkaConfig) BrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

type RabbitConfig struct {
	URL          string `mapstructure:"url"`
	Queue        string `mapstructure:"queue"`
	ConfirmQueue string `mapstructure:"confirm_queue"`
	Workers      int    `mapstructure:"workers"`
}

type NATSConfig struct {
	URL          string `mapstructure:"url"`
	Subject      string `mapstructure:"subject"`
	ResetSubject string `mapstructure:"reset_subject"`
}

type AuthConfig struct {
	Secret            string        `mapstructure:"secret"`
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
	LoginRate         float64       `mapstructure:"login_rate"` // запросов в секунду на IP
	LoginBurst        int           `mapstructure:"login_burst"`
	ExposeResetTokens bool          `mapstructure:"expose_reset_tokens"` // только для разработки
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Dev        bool   `mapstructure:"dev"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type OTelConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

var defaults = map[string]any{
	"http_addr":                ":8080",
	"grpc_addr":                ":9090",
	"store":                    StoreEmbedded,
	"embedded.dsn":             "file:pay2win.db",
	"postgres.host":            "",
	"postgres.port":            "5432",
	"postgres.user":            "",
	"postgres.password":        "",
	"postgres.database":        "pay2win",
	"mongo.uri":                "",
	"mongo.database":           "pay2win",
	"redis.addr":               "",
	"redis.user":               "",
	"redis.password":           "",
	"redis.ttl":                5 * time.Minute,
	"kafka.brokers":            "",
	"kafka.topic":              "purchases",
	"kafka.group":              "purchases_pay2win",
	"rabbit.url":               "",
	"rabbit.queue":             "redemptions",
	"rabbit.confirm_queue":     "redemption_confirms",
	"rabbit.workers":           3,
	"nats.url":                 "",
	"nats.subject":             "pay2win.transactions",
	"nats.reset_subject":       "pay2win.accounts.reset",
	"auth.secret":              "",
	"auth.token_ttl":           24 * time.Hour,
	"auth.login_rate":          1.0,
	"auth.login_burst":         5,
	"auth.expose_reset_tokens": false,
	"log.level":                "info",
	"log.dev":                  false,
	"log.file":                 "",
	"log.max_size_mb":          100,
	"log.max_backups":          3,
	"log.max_age_days":         28,
	"otel.endpoint":            "",
}

// Load: path - явный файл настроек; пустой path - необязательный ./config.yaml
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EnvName - имя переменной окружения для ключа настроек
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func required(pairs ...string) error {
	var errs []error
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			errs = append(errs, fmt.Errorf("env %s is not set", EnvName(pairs[i])))
		}
	}
	return errors.Join(errs...)
}

// Validate - общие настройки сервера и выбранного хранилища
func (c *Config) Validate() error {
	var errs []error
	switch c.Store {
	case StoreEmbedded:
		errs = append(errs, required("embedded.dsn", c.Embedded.DSN))
	case StorePostgres:
		errs = append(errs, c.ValidatePostgres(), required("mongo.uri", c.Mongo.URI))
	default:
		errs = append(errs, fmt.Errorf("env %s must be %s or %s", EnvName("store"), StoreEmbedded, StorePostgres))
	}
	errs = append(errs, required("auth.secret", c.Auth.Secret))
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("env %s must be positive", EnvName("auth.token_ttl")))
	}
	return errors.Join(errs...)
}

func (c *Config) ValidatePostgres() error {
	return required(
		"postgres.host", c.Postgres.Host,
		"postgres.port", c.Postgres.Port,
		"postgres.user", c.Postgres.User,
		"postgres.password", c.Postgres.Password,
		"postgres.database", c.Postgres.Database,
	)
}

func (c *Config) ValidateKafka() error {
	return required("kafka.brokers", c.Kafka.Brokers, "kafka.topic", c.Kafka.Topic, "kafka.group", c.Kafka.Group)
}

func (c *Config) ValidateRabbit() error {
	err := required("rabbit.url", c.Rabbit.URL, "rabbit.queue", c.Rabbit.Queue, "rabbit.confirm_queue", c.Rabbit.ConfirmQueue)
	if c.Rabbit.Workers < 1 {
		err = errors.Join(err, fmt.Errorf("env %s must be at least 1", EnvName("rabbit.workers")))
	}
	return err
}
