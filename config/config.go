package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Track17  Track17Config  `yaml:"track17"`
	Cache    CacheConfig    `yaml:"cache"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Server   ServerConfig   `yaml:"server"`
	Carriers CarriersConfig `yaml:"carriers"`
}

type LogConfig struct {
	Env   string `yaml:"env"`
	Level string `yaml:"level"`
}

type Track17Config struct {
	// BaseURL points at the proxy exposing /api/packages. Empty means the built-in demo remote.
	BaseURL           string `yaml:"base_url"`
	Token             string `yaml:"token"`
	PageSize          int    `yaml:"page_size"`
	RequestIntervalMs int    `yaml:"request_interval_ms"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
}

type CacheConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // "sqlite" | "badger" | "redis" | "postgres"
	Path   string `yaml:"path"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type RedisConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	QuotaPerMinute int    `yaml:"quota_per_minute"`
}

type KafkaConfig struct {
	Enabled                 bool   `yaml:"enabled"`
	Host                    string `yaml:"host"`
	Port                    int    `yaml:"port"`
	PackageUpdatedTopicName string `yaml:"package_updated_topic_name"`
	ConsumerGroup           string `yaml:"consumer_group"`
}

type ServerConfig struct {
	HTTPAddr               string `yaml:"http_addr"`
	SwaggerPath            string `yaml:"swagger_path"`
	RefreshIntervalSeconds int    `yaml:"refresh_interval_seconds"`
	DetailsWarmup          int    `yaml:"details_warmup"` // due packages warmed per cycle, negative disables
}

type CarriersConfig struct {
	Path string `yaml:"path"`
}

func LoadConfig(filename string) (*Config, error) {
	var config Config

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
		}
	}

	applyEnv(&config)
	config.applyDefaults()

	return &config, nil
}

// applyEnv lets PARCELDESK_* variables override the file, e.g. PARCELDESK_STORAGE_DRIVER.
// The API token is also read from TRACK17_TOKEN so it never has to live in the file.
func applyEnv(c *Config) {
	v := viper.New()
	v.SetEnvPrefix("PARCELDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("track17.token", "PARCELDESK_TRACK17_TOKEN", "TRACK17_TOKEN")

	setString(v, "log.env", &c.Log.Env)
	setString(v, "log.level", &c.Log.Level)
	setString(v, "track17.base_url", &c.Track17.BaseURL)
	setString(v, "track17.token", &c.Track17.Token)
	setString(v, "storage.driver", &c.Storage.Driver)
	setString(v, "storage.path", &c.Storage.Path)
	setString(v, "database.host", &c.Database.Host)
	setString(v, "database.password", &c.Database.Password)
	setString(v, "redis.host", &c.Redis.Host)
	setString(v, "kafka.host", &c.Kafka.Host)
	setString(v, "server.http_addr", &c.Server.HTTPAddr)
	setString(v, "server.swagger_path", &c.Server.SwaggerPath)
	setString(v, "carriers.path", &c.Carriers.Path)
	if v.IsSet("kafka.enabled") {
		c.Kafka.Enabled = v.GetBool("kafka.enabled")
	}
}

func setString(v *viper.Viper, key string, dst *string) {
	if s := v.GetString(key); s != "" {
		*dst = s
	}
}

func (c *Config) applyDefaults() {
	if c.Log.Env == "" {
		c.Log.Env = "development"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Track17.PageSize <= 0 || c.Track17.PageSize > 40 {
		c.Track17.PageSize = 40
	}
	if c.Track17.RequestIntervalMs <= 0 {
		c.Track17.RequestIntervalMs = 350
	}
	if c.Track17.TimeoutSeconds <= 0 {
		c.Track17.TimeoutSeconds = 10
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = 30 * 60
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "parceldesk.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Kafka.Host == "" {
		c.Kafka.Host = "localhost"
	}
	if c.Kafka.Port == 0 {
		c.Kafka.Port = 9092
	}
	if c.Kafka.PackageUpdatedTopicName == "" {
		c.Kafka.PackageUpdatedTopicName = "package.updated"
	}
	if c.Kafka.ConsumerGroup == "" {
		c.Kafka.ConsumerGroup = "parceldesk-watch"
	}
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Server.RefreshIntervalSeconds <= 0 {
		c.Server.RefreshIntervalSeconds = 60
	}
	if c.Server.DetailsWarmup == 0 {
		c.Server.DetailsWarmup = 5
	}
}

// PostgresDSN builds the pgx connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.Username, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.DBName, c.Database.SSLMode)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func (c *Config) KafkaBrokers() []string {
	return []string{fmt.Sprintf("%s:%d", c.Kafka.Host, c.Kafka.Port)}
}
