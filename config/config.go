package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database     DatabaseConfig     `yaml:"database"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	Redis        RedisConfig        `yaml:"redis"`
	AvanTracking AvanTrackingConfig `yaml:"avantracking"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                 string `yaml:"host"`
	Port                 int    `yaml:"port"`
	OrderSyncedTopicName string `yaml:"order_synced_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type AvanTrackingConfig struct {
	HTTPAddr                string `yaml:"http_addr"`
	KafkaConsumerGroup      string `yaml:"kafka_consumer_group"`
	CurrentStatusTTLSeconds int    `yaml:"current_status_ttl_seconds"`

	// Tracking provider. Mode "fake" answers locally and is the default for
	// dev compose; "intelipost" talks to the real GraphQL endpoint.
	TrackingProviderMode string `yaml:"tracking_provider_mode"` // "intelipost" | "fake"
	IntelipostBaseURL    string `yaml:"intelipost_base_url"`
	IntelipostClientID   string `yaml:"intelipost_client_id"`
	IntelipostOrigin     string `yaml:"intelipost_origin"`

	StorefrontBaseURL     string `yaml:"storefront_base_url"`
	StorefrontAccessToken string `yaml:"storefront_access_token"`

	RateLimitMaxRequests   int `yaml:"rate_limit_max_requests"`
	RateLimitWindowSeconds int `yaml:"rate_limit_window_seconds"`

	SyncIntervalSeconds int `yaml:"sync_interval_seconds"`
	SyncPacingMillis    int `yaml:"sync_pacing_millis"`

	WorkerHTTPAddr string `yaml:"worker_http_addr"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
