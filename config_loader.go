package main

import (
	"log"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// Config is defined in config.go

// Global immutable configuration instance.
// Loaded once by MustLoadConfig() at program start.
var ConfigInstance *Config

// MustLoadConfig loads the configuration from the first existing candidate path
// and stores it in ConfigInstance. It fatals if no valid config is found.
// If CONFIG_PATH env var is set, it is tried first.
func MustLoadConfig() *Config {
	if ConfigInstance != nil {
		return ConfigInstance
	}

	candidates := []string{
		os.Getenv("CONFIG_PATH"),
		"bridge.yaml",
		"./bridge.yaml",
		"/etc/bridge.yaml",
	}

	var tried []string
	for _, path := range candidates {
		if path == "" {
			continue
		}
		tried = append(tried, path)

		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var cfg Config
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Failed to parse YAML in %s: %v", path, err)
		}

		validateConfig(&cfg, path)
		ConfigInstance = &cfg
		log.Printf("Loaded config from %s", path)
		return ConfigInstance
	}

	log.Fatalf("No configuration file found. Tried: %v", tried)
	return nil
}

// GetConfig returns the loaded configuration (nil if not yet loaded).
func GetConfig() *Config {
	return ConfigInstance
}

// Basic validation & warnings.
func validateConfig(cfg *Config, path string) {
	loadSecret(&cfg.MQTT.Password, cfg.MQTT.PasswordFile)

	if cfg.MQTT.Broker == "" {
		log.Printf("warning: mqtt.broker is empty in %s", path)
	}
	if cfg.MQTT.TLS && cfg.MQTT.CertFile != "" && cfg.MQTT.KeyFile == "" {
		log.Fatalf("error: mqtt.cert_file set without mqtt.key_file in %s", path)
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "bridge.db"
	}
	if cfg.Web.ListenAddress == "" {
		cfg.Web.ListenAddress = ":8080"
	}
}

func loadSecret(target *string, file string) {
	if *target == "" && file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			log.Printf("warning: failed to read secret from file %s: %v", file, err)
			return
		}
		*target = strings.TrimSpace(string(data))
	}
}
