// Package config carries the application settings shared by the telinga
// binaries: a YAML file with environment-variable overrides. Recognition
// credentials stay out of here; the recognizer reads VOLCENGINE_* values
// directly so the protocol engine stays configurable on its own.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Environment string            `yaml:"environment"`
	Server      ServerConfig      `yaml:"server"`
	Recognition RecognitionConfig `yaml:"recognition"`
}

// ServerConfig tunes the mock recognition server binary.
type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`

	// AppKey and AccessKey, when set, are demanded from every client.
	AppKey    string `yaml:"app_key"`
	AccessKey string `yaml:"access_key"`

	// Hypotheses scripts the phrases played back to clients.
	Hypotheses []string `yaml:"hypotheses"`

	// AckEvery injects an acknowledgement frame before every Nth
	// hypothesis; zero disables them.
	AckEvery int `yaml:"ack_every"`
}

// RecognitionConfig tunes the transcription client binary.
type RecognitionConfig struct {
	// Realtime paces chunk sends at recording speed instead of pushing
	// the whole file as fast as the connection allows.
	Realtime bool `yaml:"realtime"`
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Bind, s.Port)
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Environment: "development",
		Server: ServerConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Recognition: RecognitionConfig{
			Realtime: false,
		},
	}
}

// Load reads the YAML file at path (skipped when empty), applies
// TELINGA_* environment overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Environment, "TELINGA_ENVIRONMENT")
	overrideString(&cfg.Server.Bind, "TELINGA_SERVER_BIND")
	overrideInt(&cfg.Server.Port, "TELINGA_SERVER_PORT")
	overrideString(&cfg.Server.AppKey, "TELINGA_SERVER_APP_KEY")
	overrideString(&cfg.Server.AccessKey, "TELINGA_SERVER_ACCESS_KEY")
	overrideStringSlice(&cfg.Server.Hypotheses, "TELINGA_SERVER_HYPOTHESES")
	overrideInt(&cfg.Server.AckEvery, "TELINGA_SERVER_ACK_EVERY")
	overrideBool(&cfg.Recognition.Realtime, "TELINGA_RECOGNITION_REALTIME")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		var trimmed []string
		for _, part := range strings.Split(value, ",") {
			if s := strings.TrimSpace(part); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	switch cfg.Environment {
	case "development", "production":
	default:
		return errors.New("environment must be one of development|production")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	if cfg.Server.AckEvery < 0 {
		return errors.New("server.ack_every must be >= 0")
	}
	return nil
}
