package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultServerURL = "http://localhost:8000"
	defaultLogLevel  = "warn"
	defaultTimeout   = 15 * time.Second

	configFileName = ".recruitctl.yaml"
	stateFileName  = ".recruitctl-state.json"
)

// Config is the resolved configuration of one recruitctl run.
type Config struct {
	ServerURL string        `yaml:"server_url"`
	StateFile string        `yaml:"state_file"`
	LogLevel  string        `yaml:"log_level"`
	LogFile   string        `yaml:"log_file"`
	Timeout   time.Duration `yaml:"timeout"`
}

// globalFlags holds the persistent command line flags.
type globalFlags struct {
	configFile string
	serverURL  string
	stateFile  string
	logLevel   string
	logFile    string
	output     string
	timeout    time.Duration
	plain      bool
}

// loadConfig resolves every setting with priority: flag > env > config file > default.
func loadConfig(f *globalFlags) (Config, error) {
	path := getConfig(f.configFile, "RECRUITCTL_CONFIG", "")
	file, err := readConfigFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		ServerURL: getConfig(f.serverURL, "SERVER_URL", or(file.ServerURL, defaultServerURL)),
		StateFile: getConfig(f.stateFile, "STATE_FILE", or(file.StateFile, defaultStatePath())),
		LogLevel:  getConfig(f.logLevel, "LOG_LEVEL", or(file.LogLevel, defaultLogLevel)),
		LogFile:   getConfig(f.logFile, "LOG_FILE", file.LogFile),
		Timeout:   f.timeout,
	}

	if cfg.Timeout == 0 {
		if v := getEnv("RECRUITCTL_TIMEOUT", ""); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return Config{}, fmt.Errorf("invalid RECRUITCTL_TIMEOUT: %w", err)
			}
			cfg.Timeout = d
		}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = file.Timeout
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	if err := validateServerURL(cfg.ServerURL); err != nil {
		return Config{}, fmt.Errorf("invalid SERVER_URL: %w", err)
	}
	return cfg, nil
}

// readConfigFile loads the YAML config file. An explicit path must exist;
// the default ~/.recruitctl.yaml is optional.
func readConfigFile(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, nil
		}
		path = filepath.Join(home, configFileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return stateFileName
	}
	return filepath.Join(home, stateFileName)
}

// getConfig returns value with priority: flag > env > default
func getConfig(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return getEnv(envKey, defaultValue)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func or(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

// validateServerURL validates that the server URL is properly formatted
func validateServerURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("server URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL must include a host")
	}

	return nil
}

// insecureServer reports whether tokens would travel in plaintext.
func insecureServer(serverURL string) bool {
	return strings.HasPrefix(strings.ToLower(serverURL), "http://")
}
