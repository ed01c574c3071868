// Package config loads server configuration from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/mitchellh/go-homedir"

	"github.com/envdash/uda/threshold"
)

const DefaultPath = "~/.uda/config.yaml"

type Config struct {
	Env    string       `yaml:"env" env:"UDA_ENV" env-default:"prod"`
	Server ServerConfig `yaml:"server"`
	Source SourceConfig `yaml:"source"`
	Poll   PollConfig   `yaml:"poll"`
	Push   PushConfig   `yaml:"push"`
	Influx InfluxConfig `yaml:"influxdb"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	Kafka  KafkaConfig  `yaml:"kafka"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Address         string        `yaml:"address" env:"UDA_ADDRESS" env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"15s"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"UDA_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
	// AppEngine sends request logs through the App Engine log API.
	AppEngine bool `yaml:"app_engine" env:"UDA_APP_ENGINE"`
}

type SourceConfig struct {
	// Kind is http, postgres or simulated.
	Kind    string        `yaml:"kind" env:"UDA_SOURCE" env-default:"http"`
	URL     string        `yaml:"url" env:"UDA_SOURCE_URL"`
	Token   string        `yaml:"token" env:"UDA_SOURCE_TOKEN"`
	DSN     string        `yaml:"dsn" env:"DATABASE_URL"`
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
	// Devices per domain of the simulated source.
	SimulatedDevices int `yaml:"simulated_devices" env-default:"3"`
}

type PollConfig struct {
	Spec            string        `yaml:"spec" env:"UDA_POLL_SPEC" env-default:"@every 30s"`
	Domains         []string      `yaml:"domains" env:"UDA_POLL_DOMAINS" env-separator:","`
	CacheTTL        time.Duration `yaml:"cache_ttl" env-default:"10m"`
	JanitorInterval time.Duration `yaml:"janitor_interval" env-default:"1m"`
}

type PushConfig struct {
	// Token must match the token query parameter of push requests. Push is
	// disabled when empty.
	Token string `yaml:"token" env:"PUBSUB_VERIFICATION_TOKEN"`
	// Audience enables verification of the Pub/Sub signed JWT.
	Audience       string   `yaml:"audience" env:"PUBSUB_AUDIENCE"`
	IgnoredDevices []string `yaml:"ignored_devices" env:"UDA_IGNORED_DEVICES" env-separator:","`
}

type InfluxConfig struct {
	URL    string `yaml:"url" env:"INFLUXDB_URL"`
	Token  string `yaml:"token" env:"INFLUXDB_TOKEN"`
	Org    string `yaml:"org" env:"INFLUXDB_ORG"`
	Bucket string `yaml:"bucket" env:"INFLUXDB_BUCKET"`
}

func (c InfluxConfig) Enabled() bool {
	return c.URL != ""
}

type MQTTConfig struct {
	BrokerURL   string `yaml:"broker_url" env:"MQTT_BROKER_URL"`
	ClientID    string `yaml:"client_id" env-default:"uda"`
	Username    string `yaml:"username" env:"MQTT_USERNAME"`
	Password    string `yaml:"password" env:"MQTT_PASSWORD"`
	TopicPrefix string `yaml:"topic_prefix" env-default:"uda"`
}

func (c MQTTConfig) Enabled() bool {
	return c.BrokerURL != ""
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"uda.status"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type LogConfig struct {
	Level  string `yaml:"level" env:"UDA_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"UDA_LOG_FORMAT" env-default:"json"`
}

// Path resolves the config file to read: the given path, else $CONFIG_PATH,
// else DefaultPath, with a leading ~ expanded.
func Path(path string) (string, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = DefaultPath
	}
	return homedir.Expand(path)
}

// Load reads the config file if it exists and the environment otherwise.
// Environment variables override values from the file.
func Load(path string) (*Config, error) {
	p, err := Path(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var cfg Config
	if _, statErr := os.Stat(p); statErr == nil {
		err = cleanenv.ReadConfig(p, &cfg)
	} else if errors.Is(statErr, os.ErrNotExist) {
		err = cleanenv.ReadEnv(&cfg)
	} else {
		err = statErr
	}
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", p, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) Validate() error {
	switch c.Source.Kind {
	case "http":
		if c.Source.URL == "" {
			return errors.New("config: source.url is required for the http source")
		}
	case "postgres":
		if c.Source.DSN == "" {
			return errors.New("config: source.dsn is required for the postgres source")
		}
	case "simulated":
	default:
		return fmt.Errorf("config: unknown source kind %q", c.Source.Kind)
	}

	if c.Poll.JanitorInterval < 0 {
		return fmt.Errorf("config: poll.janitor_interval must not be negative, got %v", c.Poll.JanitorInterval)
	}
	if c.Poll.CacheTTL < 0 {
		return fmt.Errorf("config: poll.cache_ttl must not be negative, got %v", c.Poll.CacheTTL)
	}

	if _, err := c.Domains(); err != nil {
		return err
	}
	return nil
}

// Domains returns the domains to poll, all of them if none are configured.
func (c *Config) Domains() ([]threshold.Domain, error) {
	if len(c.Poll.Domains) == 0 {
		return threshold.Domains(), nil
	}

	out := make([]threshold.Domain, 0, len(c.Poll.Domains))
	for _, s := range c.Poll.Domains {
		d, ok := threshold.ParseDomain(s)
		if !ok {
			return nil, fmt.Errorf("config: unknown domain %q in poll.domains", s)
		}
		out = append(out, d)
	}
	return out, nil
}
