// Package config loads the codec configuration from YAML, .env files and
// the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/qserverless/gatewayenv/pkg/types"
)

// Environment variables that override file settings.
const (
	EnvSecretKey     = "GATEWAY_SECRET_KEY"
	EnvSecretKeyFile = "GATEWAY_SECRET_KEY_FILE"
	EnvHost          = "GATEWAY_HOST"
	EnvAuthMechanism = "GATEWAY_AUTH_MECHANISM"
	EnvCryptoScheme  = "GATEWAY_CRYPTO_SCHEME"
	EnvAgeWorkFactor = "GATEWAY_AGE_WORK_FACTOR"
	EnvSecretKeys    = "GATEWAY_SECRET_KEYS"
	EnvStorePath     = "GATEWAY_STORE_PATH"
	EnvLogLevel      = "LOG_LEVEL"
	EnvLogEnv        = "ENV"
)

// Candidates are tried in order when no config path is given.
var Candidates = []string{
	"gatewayenv.yaml",
	"gatewayenv.yml",
	".gatewayenv/config.yaml",
}

// Load reads the configuration. With an empty path the first existing
// candidate file is used; with none, the defaults. A .env file in the
// working directory is loaded first and never overrides variables already
// set in the environment.
func Load(path string) (*types.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if path == "" {
		for _, c := range Candidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	cfg := types.DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any set environment variables.
func ApplyEnv(cfg *types.Config) error {
	setString(&cfg.Crypto.SecretKey, EnvSecretKey)
	setString(&cfg.Crypto.SecretKeyFile, EnvSecretKeyFile)
	setString(&cfg.Gateway.Host, EnvHost)
	setString(&cfg.Crypto.Scheme, EnvCryptoScheme)
	setString(&cfg.Store.Path, EnvStorePath)
	setString(&cfg.Log.Level, EnvLogLevel)
	setString(&cfg.Log.Env, EnvLogEnv)

	if v := os.Getenv(EnvAuthMechanism); v != "" {
		cfg.Auth.Mechanism = types.AuthMechanism(v)
	}
	if v := os.Getenv(EnvAgeWorkFactor); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvAgeWorkFactor, err)
		}
		cfg.Crypto.AgeWorkFactor = n
	}
	if v := os.Getenv(EnvSecretKeys); v != "" {
		var keys []string
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		cfg.Crypto.SecretKeys = keys
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Write saves cfg as YAML to path. The secret key is never written; use
// secret_key_file or GATEWAY_SECRET_KEY instead.
func Write(cfg *types.Config, path string) error {
	c := *cfg
	c.Crypto.SecretKey = ""

	data, err := yaml.Marshal(&c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
