package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"x402-backend/internal/polkadot"
)

// Config application configuration structure. Both binaries read the same
// file; each validates only its own section.
type Config struct {
	Facilitator FacilitatorConfig `yaml:"facilitator"`
	Server      ServerConfig      `yaml:"server"`
}

// FacilitatorConfig facilitator service configuration
type FacilitatorConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Network        string `yaml:"network"`        // paseo | westend | polkadot
	ProbeTimeoutMs int    `yaml:"probeTimeoutMs"` // per-node health probe bound
}

// ServerConfig resource server configuration
type ServerConfig struct {
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	FacilitatorURL        string `yaml:"facilitatorUrl"`
	ReceiverWalletAddress string `yaml:"receiverWalletAddress"`
	DefaultPrice          uint64 `yaml:"defaultPrice"` // plancks
	Network               string `yaml:"network"`
}

// LoadConfig loads configuration from a YAML file and applies environment
// variable overrides. A missing file is not an error; defaults plus the
// environment are enough to run.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
		}
	}

	config := defaultConfig()

	data, err := os.ReadFile(configPath)
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	overrideFromEnv(config)
	return config, nil
}

func defaultConfig() *Config {
	return &Config{
		Facilitator: FacilitatorConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			Network:        "paseo",
			ProbeTimeoutMs: 5000,
		},
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         3000,
			Network:      "paseo",
			DefaultPrice: 1000000000000,
		},
	}
}

// overrideFromEnv applies environment variable overrides on top of the file.
func overrideFromEnv(config *Config) {
	if network := os.Getenv("POLKADOT_NETWORK"); network != "" {
		config.Facilitator.Network = network
		config.Server.Network = network
	}
	if host := os.Getenv("FACILITATOR_HOST"); host != "" {
		config.Facilitator.Host = host
	}
	if port := os.Getenv("FACILITATOR_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Facilitator.Port = p
		}
	}
	if timeout := os.Getenv("PROBE_TIMEOUT_MS"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil {
			config.Facilitator.ProbeTimeoutMs = t
		}
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if url := os.Getenv("FACILITATOR_URL"); url != "" {
		config.Server.FacilitatorURL = url
	}
	if addr := os.Getenv("RECEIVER_WALLET_ADDRESS"); addr != "" {
		config.Server.ReceiverWalletAddress = addr
	}
	if price := os.Getenv("DEFAULT_PRICE"); price != "" {
		if p, err := strconv.ParseUint(price, 10, 64); err == nil {
			config.Server.DefaultPrice = p
		}
	}
}

// Validate checks the facilitator section. Unknown networks are rejected
// instead of silently falling back to a default profile.
func (c *FacilitatorConfig) Validate() error {
	if _, err := polkadot.ProfileForNetwork(c.Network); err != nil {
		return fmt.Errorf("invalid facilitator config: %w", err)
	}
	if c.ProbeTimeoutMs <= 0 {
		return fmt.Errorf("invalid facilitator config: probeTimeoutMs must be positive, got %d", c.ProbeTimeoutMs)
	}
	return nil
}

// Validate checks the resource server section.
func (c *ServerConfig) Validate() error {
	if c.FacilitatorURL == "" {
		return fmt.Errorf("invalid server config: facilitatorUrl must be set (FACILITATOR_URL)")
	}
	if c.ReceiverWalletAddress == "" {
		return fmt.Errorf("invalid server config: receiverWalletAddress must be set (RECEIVER_WALLET_ADDRESS)")
	}
	return nil
}

// BindAddress returns host:port for the facilitator listener.
func (c *FacilitatorConfig) BindAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BindAddress returns host:port for the resource server listener.
func (c *ServerConfig) BindAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
