package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Backend struct {
		BaseURL string `yaml:"baseURL"`
		Timeout string `yaml:"timeout"`
		// ServiceToken authenticates outbox flushes made after the player has gone.
		ServiceToken string `yaml:"serviceToken"`
	} `yaml:"backend"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Session struct {
		FeedbackMode  string `yaml:"feedbackMode"`
		FeedbackDelay string `yaml:"feedbackDelay"`
		TickInterval  string `yaml:"tickInterval"`
		LowTime       string `yaml:"lowTime"`
	} `yaml:"session"`
	Integrity struct {
		TabSwitchMin      string `yaml:"tabSwitchMin"`
		ScreenshotBlipMin string `yaml:"screenshotBlipMin"`
		AFKThreshold      string `yaml:"afkThreshold"`
		AFKPoll           string `yaml:"afkPoll"`
		TouchBlurWindow   string `yaml:"touchBlurWindow"`
		DevtoolsDelta     int    `yaml:"devtoolsDelta"`
	} `yaml:"integrity"`
	Submit struct {
		ManualRetries  *int   `yaml:"manualRetries"`
		AutoRetries    *int   `yaml:"autoRetries"`
		InitialBackoff string `yaml:"initialBackoff"`
		MaxBackoff     string `yaml:"maxBackoff"`
	} `yaml:"submit"`
	Outbox struct {
		FlushInterval string `yaml:"flushInterval"`
	} `yaml:"outbox"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// IntOr returns *v, or fallback when the key was absent.
func IntOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}
