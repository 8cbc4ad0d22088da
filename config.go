package main

import "time"

type Config struct {
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Database DatabaseConfig `yaml:"database"`
	Web      WebConfig      `yaml:"web"`
}

type MQTTConfig struct {
	Broker       string `yaml:"broker"`
	ClientID     string `yaml:"client_id"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	PasswordFile string `yaml:"password_file"`

	// Keepalive in seconds; 0 means the 60s default.
	Keepalive int `yaml:"keepalive"`

	TLS        bool   `yaml:"tls"`
	CAFile     string `yaml:"ca_file"`
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	SkipVerify bool   `yaml:"skip_verify"`
}

type PipelineConfig struct {
	// QueueCapacity bounds each inter-stage queue; 0 means the 1024 default.
	QueueCapacity int `yaml:"queue_capacity"`

	// DiscoveryGracePeriod is how long start-up waits for retained discovery
	// payloads before asking discovered devices for their state. 0 means the
	// 2s default.
	DiscoveryGracePeriod time.Duration `yaml:"discovery_grace_period"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite file path
}

type WebConfig struct {
	ListenAddress string `yaml:"listen_address"`
}
