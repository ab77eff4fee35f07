package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"

	ddns "github.com/Travis-Britz/imds-duckdns"
)

const (
	// EnvPrefix is prepended to every key when looking for an environment override.
	EnvPrefix = "DDNS_"

	DefaultLogPath = "/var/log/imds-duckdns.log"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalidValue    = errors.New("invalid configuration value")
)

// Config holds all configuration
type Config struct {
	Domain           string
	Token            string
	CheckInterval    time.Duration
	LogPath          string
	EnableIPv6       bool
	MetadataURL      string
	UpdateURL        string
	UpdateAttempts   int
	UpdateRetryDelay time.Duration
	HeartbeatEvery   int
	MetricsAddr      string
}

// String renders the config for logging with the token redacted.
func (c *Config) String() string {
	token := ""
	if c.Token != "" {
		token = "<redacted>"
	}
	return fmt.Sprintf("{Domain:%s Token:%s CheckInterval:%s LogPath:%s EnableIPv6:%t MetadataURL:%s UpdateURL:%s UpdateAttempts:%d UpdateRetryDelay:%s HeartbeatEvery:%d MetricsAddr:%s}",
		c.Domain, token, c.CheckInterval, c.LogPath, c.EnableIPv6, c.MetadataURL, c.UpdateURL,
		c.UpdateAttempts, c.UpdateRetryDelay, c.HeartbeatEvery, c.MetricsAddr)
}

// source looks up a raw value by its upper-case key.
type source func(key string) (string, bool)

// Load reads configuration from path with environment variable override.
//
// Files ending in .ini are parsed as INI (section [ddns], or the default section)
// with case-insensitive keys;
// anything else is treated as a shell-style KEY=value file.
// An empty path reads the environment only.
func Load(path string) (*Config, error) {
	file, err := fileSource(path)
	if err != nil {
		return nil, err
	}
	return load(file, os.LookupEnv)
}

func fileSource(path string) (source, error) {
	if path == "" {
		return func(string) (string, bool) { return "", false }, nil
	}

	if strings.EqualFold(filepath.Ext(path), ".ini") {
		cfgFile, err := ini.InsensitiveLoad(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load INI file: %w", err)
		}
		return func(key string) (string, bool) {
			k := strings.ToLower(key)
			for _, section := range []string{"ddns", ini.DefaultSection} {
				if cfgFile.Section(section).HasKey(k) {
					return cfgFile.Section(section).Key(k).String(), true
				}
			}
			return "", false
		}, nil
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}, nil
}

func load(file source, lookupEnv source) (*Config, error) {
	// Priority: environment variable, then file, then default
	getValue := func(key string) (string, bool) {
		if v, ok := lookupEnv(EnvPrefix + key); ok && v != "" {
			return strings.TrimSpace(v), true
		}
		if v, ok := file(key); ok && v != "" {
			return strings.TrimSpace(v), true
		}
		return "", false
	}

	var invalid []string
	getString := func(key, defaultValue string) string {
		if v, ok := getValue(key); ok {
			return v
		}
		return defaultValue
	}
	getInt := func(key string, defaultValue, minimum int) int {
		v, ok := getValue(key)
		if !ok {
			return defaultValue
		}
		i, err := strconv.Atoi(v)
		if err != nil || i < minimum {
			invalid = append(invalid, fmt.Sprintf("%s=%q (want an integer >= %d)", key, v, minimum))
			return defaultValue
		}
		return i
	}
	getBool := func(key string, defaultValue bool) bool {
		v, ok := getValue(key)
		if !ok {
			return defaultValue
		}
		b, err := strconv.ParseBool(strings.ToLower(v))
		if err != nil {
			switch strings.ToLower(v) {
			case "yes", "on":
				return true
			case "no", "off":
				return false
			}
			invalid = append(invalid, fmt.Sprintf("%s=%q (want a boolean)", key, v))
			return defaultValue
		}
		return b
	}

	cfg := &Config{
		Domain:           getString("DOMAIN", ""),
		Token:            getString("TOKEN", ""),
		CheckInterval:    time.Duration(getInt("CHECK_INTERVAL", int(ddns.DefaultInterval/time.Second), 1)) * time.Second,
		LogPath:          getString("LOG_PATH", DefaultLogPath),
		EnableIPv6:       getBool("ENABLE_IPV6", true),
		MetadataURL:      getString("METADATA_URL", ddns.DefaultMetadataURL),
		UpdateURL:        getString("UPDATE_URL", ddns.DefaultUpdateURL),
		UpdateAttempts:   getInt("UPDATE_ATTEMPTS", ddns.DefaultUpdateAttempts, 1),
		UpdateRetryDelay: time.Duration(getInt("UPDATE_RETRY_DELAY", int(ddns.DefaultUpdateRetryDelay/time.Second), 0)) * time.Second,
		HeartbeatEvery:   getInt("HEARTBEAT_EVERY", ddns.DefaultHeartbeatEvery, 1),
		MetricsAddr:      getString("METRICS_ADDR", ""),
	}

	// Validate required fields
	var missing []string
	if cfg.Domain == "" {
		missing = append(missing, "DOMAIN")
	}
	if cfg.Token == "" {
		missing = append(missing, "TOKEN")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidValue, strings.Join(invalid, ", "))
	}

	return cfg, nil
}
