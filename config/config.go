package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Mongo         MongoConfig         `mapstructure:"mongo"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Lock          LockConfig          `mapstructure:"lock"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Voice         VoiceConfig         `mapstructure:"voice"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Log           LogConfig           `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

// StorageConfig selects the account store backend.
type StorageConfig struct {
	Backend  string `mapstructure:"backend"`   // memory, postgres, mongo
	SeedFile string `mapstructure:"seed_file"` // optional accounts to create at startup
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LockConfig controls the per-account-pair critical section.
type LockConfig struct {
	Backend string        `mapstructure:"backend"` // memory, redis
	TTL     time.Duration `mapstructure:"ttl"`
	Wait    time.Duration `mapstructure:"wait"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// AuthConfig tunes the multi-factor step machine.
type AuthConfig struct {
	MaxBiometricAttempts int           `mapstructure:"max_biometric_attempts"`
	SessionTTL           time.Duration `mapstructure:"session_ttl"`
	DeviceSecret         string        `mapstructure:"device_secret"`
	AttestationMaxAge    time.Duration `mapstructure:"attestation_max_age"`
	BankTag              string        `mapstructure:"bank_tag"`
}

// VoiceConfig points at the remote voice-biometric service.
type VoiceConfig struct {
	Mode         string        `mapstructure:"mode"` // sync, async
	URL          string        `mapstructure:"url"`
	SubmitURL    string        `mapstructure:"submit_url"`
	StatusURL    string        `mapstructure:"status_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxWait      time.Duration `mapstructure:"max_wait"`
}

// TranscriptionConfig points at the remote speech-to-text service.
type TranscriptionConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	MaxWait       time.Duration `mapstructure:"max_wait"`
	Backoff       string        `mapstructure:"backoff"` // fixed, exponential
	MaxInterval   time.Duration `mapstructure:"max_interval"`
	SubmitRetries uint64        `mapstructure:"submit_retries"`
	Commands      []string      `mapstructure:"commands"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: STG_ (Secure Transfer Gateway).
// Nested keys use underscore: STG_DATABASE_HOST, STG_VOICE_URL, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.seed_file", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "transfer_gateway")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "transfer_gateway")
	v.SetDefault("mongo.collection", "users")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("lock.backend", "memory")
	v.SetDefault("lock.ttl", "10s")
	v.SetDefault("lock.wait", "5s")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "secure-transfer-gateway")
	v.SetDefault("auth.max_biometric_attempts", 3)
	v.SetDefault("auth.session_ttl", "10m")
	v.SetDefault("auth.device_secret", "")
	v.SetDefault("auth.attestation_max_age", "2m")
	v.SetDefault("auth.bank_tag", "YourBank")
	v.SetDefault("voice.mode", "sync")
	v.SetDefault("voice.url", "http://localhost:5000/authenticate")
	v.SetDefault("voice.submit_url", "")
	v.SetDefault("voice.status_url", "")
	v.SetDefault("voice.timeout", "30s")
	v.SetDefault("voice.poll_interval", "1s")
	v.SetDefault("voice.max_wait", "30s")
	v.SetDefault("transcription.base_url", "https://api.assemblyai.com/v2")
	v.SetDefault("transcription.api_key", "")
	v.SetDefault("transcription.poll_interval", "5s")
	v.SetDefault("transcription.max_wait", "2m")
	v.SetDefault("transcription.backoff", "fixed")
	v.SetDefault("transcription.max_interval", "30s")
	v.SetDefault("transcription.submit_retries", 3)
	v.SetDefault("transcription.commands", []string{"login"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// STG_VOICE_URL -> voice.url
	v.SetEnvPrefix("STG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "memory", "postgres", "mongo":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Lock.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown lock backend %q", c.Lock.Backend)
	}
	switch c.Voice.Mode {
	case "sync", "async":
	default:
		return fmt.Errorf("unknown voice mode %q", c.Voice.Mode)
	}
	switch c.Transcription.Backoff {
	case "fixed", "exponential":
	default:
		return fmt.Errorf("unknown transcription backoff %q", c.Transcription.Backoff)
	}
	if c.Auth.MaxBiometricAttempts < 1 {
		return fmt.Errorf("auth.max_biometric_attempts must be at least 1")
	}
	return nil
}
