package ops

import (
	"os"
	"strings"
	"time"

	"arbview/internal/journal"
	"arbview/pkg/conn"
	"arbview/pkg/exception"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/yanun0323/errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. ARBVIEW_FEED_URL.
const EnvPrefix = "ARBVIEW"

// Config mirrors the YAML config layout.
type Config struct {
	Feed      FeedConfig      `yaml:"feed"`
	Queue     QueueConfig     `yaml:"queue"`
	HTTP      HTTPConfig      `yaml:"http"`
	Sink      SinkConfig      `yaml:"sink"`
	Redis     RedisConfig     `yaml:"redis"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Pyroscope PyroscopeConfig `yaml:"pyroscope"`
	Journal   JournalConfig   `yaml:"journal"`
	Obs       ObsConfig       `yaml:"obs"`
}

// FeedConfig describes the upstream websocket.
type FeedConfig struct {
	URL              string        `yaml:"url" split_words:"true"`
	HandshakeTimeout time.Duration `yaml:"handshakeTimeout" split_words:"true"`
	ReadTimeout      time.Duration `yaml:"readTimeout" split_words:"true"`
	BackoffMin       time.Duration `yaml:"backoffMin" split_words:"true"`
	BackoffMax       time.Duration `yaml:"backoffMax" split_words:"true"`
}

// QueueConfig sizes the ingress and sink queues.
type QueueConfig struct {
	Ingress int `yaml:"ingress" split_words:"true"`
	Sink    int `yaml:"sink" split_words:"true"`
}

// HTTPConfig describes the view endpoint.
type HTTPConfig struct {
	Addr string `yaml:"addr" split_words:"true"`
}

// SinkConfig tunes sink writes.
type SinkConfig struct {
	WriteTimeout time.Duration `yaml:"writeTimeout" split_words:"true"`
}

// RedisConfig enables the Redis mirror.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" split_words:"true"`
	Host     string `yaml:"host" split_words:"true"`
	Port     int    `yaml:"port" split_words:"true"`
	Password string `yaml:"password" split_words:"true"`
	DB       int    `yaml:"db" split_words:"true"`
	Prefix   string `yaml:"prefix" split_words:"true"`
}

// PostgresConfig enables the archive.
type PostgresConfig struct {
	Enabled  bool   `yaml:"enabled" split_words:"true"`
	Host     string `yaml:"host" split_words:"true"`
	Port     int    `yaml:"port" split_words:"true"`
	User     string `yaml:"user" split_words:"true"`
	Password string `yaml:"password" split_words:"true"`
	Database string `yaml:"database" split_words:"true"`
	SSLMode  string `yaml:"sslMode" split_words:"true"`
	Migrate  bool   `yaml:"migrate" split_words:"true"`
}

// PyroscopeConfig enables continuous profiling.
type PyroscopeConfig struct {
	Enabled         bool   `yaml:"enabled" split_words:"true"`
	ServerAddress   string `yaml:"serverAddress" split_words:"true"`
	ApplicationName string `yaml:"applicationName" split_words:"true"`
}

// JournalConfig enables recording of raw ingress frames.
type JournalConfig struct {
	Enabled            bool          `yaml:"enabled" split_words:"true"`
	Dir                string        `yaml:"dir" split_words:"true"`
	SegmentMaxBytes    int64         `yaml:"segmentMaxBytes" split_words:"true"`
	SegmentMaxDuration time.Duration `yaml:"segmentMaxDuration" split_words:"true"`
	FlushInterval      time.Duration `yaml:"flushInterval" split_words:"true"`
}

// ObsConfig tunes runtime reporting.
type ObsConfig struct {
	// MemoryReportInterval logs runtime memory stats periodically. Zero disables it.
	MemoryReportInterval time.Duration `yaml:"memoryReportInterval" split_words:"true"`
}

// Default returns the config used when nothing is set.
func Default() Config {
	return Config{
		Feed: FeedConfig{
			URL:              "ws://localhost:8090/arb",
			HandshakeTimeout: 5 * time.Second,
			BackoffMin:       200 * time.Millisecond,
			BackoffMax:       10 * time.Second,
		},
		Queue: QueueConfig{
			Ingress: 4096,
			Sink:    4096,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Sink: SinkConfig{
			WriteTimeout: 3 * time.Second,
		},
		Redis: RedisConfig{
			Prefix: "arb",
		},
		Postgres: PostgresConfig{
			Database: "arbview",
			SSLMode:  "disable",
			Migrate:  true,
		},
		Pyroscope: PyroscopeConfig{
			ServerAddress:   "http://localhost:4040",
			ApplicationName: "arbview",
		},
		Journal: JournalConfig{
			Dir:                "data/journal",
			SegmentMaxDuration: 15 * time.Minute,
			FlushInterval:      time.Second,
		},
	}
}

// Load reads an optional YAML file over the defaults, then applies .env and
// ARBVIEW_* environment overrides, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}
	}

	// .env is optional
	_ = godotenv.Load()

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "env overrides")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks configuration validity.
func (c Config) Validate() error {
	if !strings.HasPrefix(c.Feed.URL, "ws://") && !strings.HasPrefix(c.Feed.URL, "wss://") {
		return exception.ErrConfigFeedURL
	}
	if c.Feed.BackoffMin > 0 && c.Feed.BackoffMax > 0 && c.Feed.BackoffMax < c.Feed.BackoffMin {
		return exception.ErrConfigBackoff
	}
	if c.Queue.Ingress <= 0 || c.Queue.Sink <= 0 {
		return exception.ErrConfigQueueCapacity
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return exception.ErrConfigHTTPAddr
	}
	if c.Pyroscope.Enabled && c.Pyroscope.ServerAddress == "" {
		return exception.ErrConfigPyroscopeAddr
	}
	if c.Journal.Enabled && strings.TrimSpace(c.Journal.Dir) == "" {
		return exception.ErrConfigJournalDir
	}
	return nil
}

// WriterConfig converts the config for the journal writer.
func (c JournalConfig) WriterConfig() journal.Config {
	cfg := journal.DefaultConfig(c.Dir)
	if c.SegmentMaxBytes > 0 {
		cfg.SegmentMaxBytes = c.SegmentMaxBytes
	}
	if c.SegmentMaxDuration > 0 {
		cfg.SegmentMaxDuration = c.SegmentMaxDuration
	}
	if c.FlushInterval > 0 {
		cfg.FlushInterval = c.FlushInterval
	}
	return cfg
}

// RedisOption converts the config for pkg/conn.
func (c RedisConfig) RedisOption() conn.RedisOption {
	return conn.RedisOption{
		Host:     c.Host,
		Port:     c.Port,
		Password: c.Password,
		DB:       c.DB,
	}
}

// PostgresOption converts the config for pkg/conn.
func (c PostgresConfig) PostgresOption() conn.PostgresOption {
	return conn.PostgresOption{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Database: c.Database,
		SSLMode:  c.SSLMode,
	}
}
