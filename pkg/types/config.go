// Package types provides shared type definitions for the gateway environment codec.
package types

import "fmt"

// AuthMechanism selects how worker credentials are provisioned.
type AuthMechanism string

const (
	// AuthDefault forwards only the gateway token.
	AuthDefault AuthMechanism = "default"
	// AuthCustomToken also provisions provider credentials derived from the gateway token.
	AuthCustomToken AuthMechanism = "custom_token"
)

// Cipher schemes understood by the codec.
const (
	SchemeFernet = "fernet"
	SchemeAge    = "age"
)

// Config represents the main configuration.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Auth     AuthConfig     `yaml:"auth"`
	Provider ProviderConfig `yaml:"provider"`
	Crypto   CryptoConfig   `yaml:"crypto"`
	Store    StoreConfig    `yaml:"store"`
	Executor ExecutorConfig `yaml:"executor"`
	Log      LogConfig      `yaml:"log"`
}

// GatewayConfig defines how workers reach the gateway.
type GatewayConfig struct {
	Host string `yaml:"host"` // Base URL handed to workers
}

// AuthConfig defines the auth mechanism.
type AuthConfig struct {
	Mechanism AuthMechanism `yaml:"mechanism"`
}

// ProviderConfig defines the static provider endpoint used under custom_token.
type ProviderConfig struct {
	Channel string `yaml:"channel"`
	URL     string `yaml:"url"`
}

// CryptoConfig defines encryption settings.
type CryptoConfig struct {
	Scheme        string   `yaml:"scheme"`          // fernet or age
	SecretKey     string   `yaml:"secret_key"`      // Secret used to derive the cipher key
	SecretKeyFile string   `yaml:"secret_key_file"` // Read the secret from this file when secret_key is empty
	AgeWorkFactor int      `yaml:"age_work_factor"` // scrypt log2(N) for the age scheme
	SecretKeys    []string `yaml:"secret_keys"`     // Variables to encrypt; empty means all
}

// StoreConfig defines the encrypted bundle store.
type StoreConfig struct {
	Path string `yaml:"path"` // SQLite database path
}

// ExecutorConfig defines local worker process settings.
type ExecutorConfig struct {
	MaxConcurrent int  `yaml:"max_concurrent"`
	InheritEnv    bool `yaml:"inherit_env"` // Start workers with the parent environment
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	Env   string `yaml:"env"` // dev or prod
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host: "http://localhost:8000",
		},
		Auth: AuthConfig{
			Mechanism: AuthDefault,
		},
		Provider: ProviderConfig{
			Channel: "ibm_quantum",
			URL:     "https://auth.quantum-computing.ibm.com/api",
		},
		Crypto: CryptoConfig{
			Scheme:        SchemeFernet,
			AgeWorkFactor: 15,
		},
		Store: StoreConfig{
			Path: "./gatewayenv.db",
		},
		Executor: ExecutorConfig{
			MaxConcurrent: 4,
			InheritEnv:    true,
		},
		Log: LogConfig{
			Level: "info",
			Env:   "prod",
		},
	}
}

// Validate checks the selector fields. A missing secret key is not an
// error here; it fails the first encrypt or decrypt call instead.
func (c *Config) Validate() error {
	switch c.Auth.Mechanism {
	case AuthDefault, AuthCustomToken:
	default:
		return fmt.Errorf("unknown auth mechanism %q", c.Auth.Mechanism)
	}
	switch c.Crypto.Scheme {
	case SchemeFernet, SchemeAge:
	default:
		return fmt.Errorf("unknown crypto scheme %q", c.Crypto.Scheme)
	}
	if c.Crypto.Scheme == SchemeAge && (c.Crypto.AgeWorkFactor < 1 || c.Crypto.AgeWorkFactor > 30) {
		return fmt.Errorf("age work factor %d out of range 1-30", c.Crypto.AgeWorkFactor)
	}
	if c.Gateway.Host == "" {
		return fmt.Errorf("gateway host is empty")
	}
	return nil
}
