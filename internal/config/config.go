// internal/config/config.go - Configuration management
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

const (
	DefaultValidator    = "evmosvalcons1nsczfx3qr75f3anp4lklcanm585x7vwfuw3mt4"
	DefaultPagerDutyURL = "https://events.eu.pagerduty.com/v2/enqueue"
	DefaultValidatorURL = "https://www.mintscan.io/evmos/validators/evmosvaloper1dgpv4leszpeg2jusx2xgyfnhdzghf3rf0qq22v"
)

// DefaultEndpoints are the public Evmos REST mirrors, in failover order.
var DefaultEndpoints = []string{
	"https://rest.bd.evmos.org:1317",
	"https://api-evmos-ia.cosmosia.notional.ventures",
	"https://evmos-api.polkachu.com",
	"https://rest-evmos.ecostake.com",
}

type Config struct {
	Validator             string   `yaml:"validator"`
	RoutingKey            string   `yaml:"routing_key"`
	Endpoints             []string `yaml:"endpoints"`
	PagerDutyURL          string   `yaml:"pagerduty_url"`
	PollInterval          int      `yaml:"poll_interval_seconds"`
	RequestTimeout        int      `yaml:"request_timeout_seconds"`
	MaxTimeout            int      `yaml:"max_timeout_seconds"`
	MissedBlocksThreshold int64    `yaml:"missed_blocks_threshold"`
	AlertCooldown         int      `yaml:"alert_cooldown_seconds"`
	AlertRetryInterval    int      `yaml:"alert_retry_seconds"`
	ShoutrrrURLs          []string `yaml:"shoutrrr_urls"`
	EnablePrometheus      bool     `yaml:"enable_prometheus"`
	PrometheusPort        int      `yaml:"prometheus_port"`
	LogLevel              string   `yaml:"log_level"`
	AlertSource           string   `yaml:"alert_source"`
	AlertClient           string   `yaml:"alert_client"`
	AlertClientURL        string   `yaml:"alert_client_url"`
	ValidatorLink         string   `yaml:"validator_link"`
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Config {
	return Config{
		Validator:             DefaultValidator,
		Endpoints:             append([]string(nil), DefaultEndpoints...),
		PagerDutyURL:          DefaultPagerDutyURL,
		PollInterval:          2,
		RequestTimeout:        2,
		MaxTimeout:            120,
		MissedBlocksThreshold: 2000,
		AlertCooldown:         300,
		AlertRetryInterval:    60,
		PrometheusPort:        8080,
		LogLevel:              "debug",
		AlertSource:           "Hanchon.live",
		AlertClient:           "Validator Monitoring Service",
		AlertClientURL:        "https://hanchon.live",
		ValidatorLink:         DefaultValidatorURL,
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// CONFIG_FILE and finally the environment.
func Load() (Config, error) {
	config := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &config); err != nil {
			return config, err
		}
	}

	config.Validator = getEnvDefault("VAL_KEY", config.Validator)
	config.RoutingKey = getEnvDefault("ROUTING_KEY", config.RoutingKey)
	config.PagerDutyURL = getEnvDefault("PAGERDUTY_URL", config.PagerDutyURL)
	config.Endpoints = getEnvList("API_ENDPOINTS", config.Endpoints)
	config.ShoutrrrURLs = getEnvList("SHOUTRRR_URLS", config.ShoutrrrURLs)

	// Parse intervals
	config.PollInterval = getEnvInt("POLL_INTERVAL_SECONDS", config.PollInterval)
	config.RequestTimeout = getEnvInt("REQUEST_TIMEOUT_SECONDS", config.RequestTimeout)
	config.MaxTimeout = getEnvInt("MAX_TIMEOUT_SECONDS", config.MaxTimeout)
	config.AlertCooldown = getEnvInt("ALERT_COOLDOWN_SECONDS", config.AlertCooldown)
	config.AlertRetryInterval = getEnvInt("ALERT_RETRY_SECONDS", config.AlertRetryInterval)
	config.MissedBlocksThreshold = int64(getEnvInt("MISSED_BLOCKS_THRESHOLD", int(config.MissedBlocksThreshold)))

	config.EnablePrometheus = getEnvBool("ENABLE_PROMETHEUS", config.EnablePrometheus)
	config.PrometheusPort = getEnvInt("PROMETHEUS_PORT", config.PrometheusPort)
	config.LogLevel = getEnvDefault("LOG_LEVEL", config.LogLevel)

	// Alert branding
	config.AlertSource = getEnvDefault("ALERT_SOURCE", config.AlertSource)
	config.AlertClient = getEnvDefault("ALERT_CLIENT", config.AlertClient)
	config.AlertClientURL = getEnvDefault("ALERT_CLIENT_URL", config.AlertClientURL)
	config.ValidatorLink = getEnvDefault("VALIDATOR_LINK", config.ValidatorLink)

	return config, config.Validate()
}

// Validate reports the first required field that is missing or out of range.
func (c Config) Validate() error {
	if c.RoutingKey == "" {
		return fmt.Errorf("ROUTING_KEY is required")
	}
	if c.Validator == "" {
		return fmt.Errorf("VAL_KEY is required")
	}
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("at least one API endpoint is required")
	}
	if c.PagerDutyURL == "" {
		return fmt.Errorf("PAGERDUTY_URL must not be empty")
	}

	positive := map[string]int{
		"POLL_INTERVAL_SECONDS":   c.PollInterval,
		"REQUEST_TIMEOUT_SECONDS": c.RequestTimeout,
		"MAX_TIMEOUT_SECONDS":     c.MaxTimeout,
		"ALERT_RETRY_SECONDS":     c.AlertRetryInterval,
	}
	for key, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", key, value)
		}
	}
	if c.AlertCooldown < 0 {
		return fmt.Errorf("ALERT_COOLDOWN_SECONDS must not be negative, got %d", c.AlertCooldown)
	}

	return nil
}

func loadFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var list []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			list = append(list, part)
		}
	}
	return list
}
