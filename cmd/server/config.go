package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultGreeting = "Hello! I'm VaxAssist. Ask me anything about vaccines and immunization schedules."

type config struct {
	Port            string `yaml:"port"`
	BackendURL      string `yaml:"backendUrl"`
	Greeting        string `yaml:"greeting"`
	DBPath          string `yaml:"dbPath"`
	SessionTTLHours int    `yaml:"sessionTTLHours"`
	LogLevel        string `yaml:"logLevel"`
}

// loadConfig layers defaults, the optional YAML file in the user config
// directory, and environment variables, in that order.
func loadConfig() (config, error) {
	cfg := config{
		Port:            "8080",
		Greeting:        defaultGreeting,
		SessionTTLHours: 24 * 7,
		LogLevel:        "info",
	}

	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return config{}, fmt.Errorf("error getting user config dir: %w", err)
	}
	appDir := filepath.Join(cfgDir, "vaxwebui")
	if err := os.MkdirAll(appDir, 0755); err != nil {
		return config{}, fmt.Errorf("error creating config directory: %w", err)
	}
	cfg.DBPath = filepath.Join(appDir, "sessions.db")

	cfgFile, err := os.Open(filepath.Join(appDir, "config.yaml"))
	switch {
	case err == nil:
		defer cfgFile.Close()
		if err := yaml.NewDecoder(cfgFile).Decode(&cfg); err != nil {
			return config{}, fmt.Errorf("error decoding config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// Running purely on env vars is fine.
	default:
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := os.Getenv("GREETING"); v != "" {
		cfg.Greeting = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("SESSION_TTL_HOURS"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil {
			return config{}, fmt.Errorf("invalid SESSION_TTL_HOURS: %w", err)
		}
		cfg.SessionTTLHours = hours
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if cfg.BackendURL == "" {
		return config{}, fmt.Errorf("backend URL is required (backendUrl in config.yaml or BACKEND_URL)")
	}
	return cfg, nil
}

func (c config) sessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}
