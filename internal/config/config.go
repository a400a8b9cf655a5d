package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config is the process-wide configuration, loaded once at startup.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Security SecurityConfig `mapstructure:"security"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	CodeRedeemed string `mapstructure:"code_redeemed"`
}

type SecurityConfig struct {
	// APIKeys gates every /api/v1 route; mobile builds each carry one.
	APIKeys []string `mapstructure:"api_keys"`
}

type BusinessConfig struct {
	SessionTTLDays       int   `mapstructure:"session_ttl_days"`
	RegistrationBonus    int64 `mapstructure:"registration_bonus"`
	IdemReserveTTLSecs   int   `mapstructure:"idem_reserve_ttl_seconds"`
	IdemResultTTLHours   int   `mapstructure:"idem_result_ttl_hours"`
	MaxRetryCount        int   `mapstructure:"max_retry_count"`
	SessionSweepInterval int   `mapstructure:"session_sweep_interval_minutes"`
}

func (b BusinessConfig) SessionTTL() time.Duration {
	days := b.SessionTTLDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

func (b BusinessConfig) IdemReserveTTL() time.Duration {
	secs := b.IdemReserveTTLSecs
	if secs <= 0 {
		secs = 30
	}
	return time.Duration(secs) * time.Second
}

func (b BusinessConfig) IdemResultTTL() time.Duration {
	hours := b.IdemResultTTLHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

var GlobalConfig *Config

// LoadConfig reads and parses the yaml config file.
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("failed to read config file: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("failed to parse config file: %v", err)
	}

	GlobalConfig = config
	return config
}
