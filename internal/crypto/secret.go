package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qserverless/gatewayenv/pkg/types"
)

// SecretSource supplies the secret key material. Ciphers call Secret on
// every operation and never cache the result.
type SecretSource interface {
	Secret() (string, error)
}

// SecretFunc adapts a function to SecretSource.
type SecretFunc func() (string, error)

// Secret calls f.
func (f SecretFunc) Secret() (string, error) { return f() }

// StaticSecret returns a source that always yields s.
func StaticSecret(s string) SecretSource {
	return SecretFunc(func() (string, error) {
		if s == "" {
			return "", ErrNoSecretKey
		}
		return s, nil
	})
}

// ConfigSecret reads cfg on every call: SecretKey when set, otherwise the
// contents of SecretKeyFile.
func ConfigSecret(cfg *types.CryptoConfig) SecretSource {
	return SecretFunc(func() (string, error) {
		if cfg.SecretKey != "" {
			return cfg.SecretKey, nil
		}
		if cfg.SecretKeyFile != "" {
			return FileSecret(cfg.SecretKeyFile).Secret()
		}
		return "", ErrNoSecretKey
	})
}

// FileSecret reads the secret from path. Blank lines and lines starting
// with # are skipped; the first remaining line is the secret.
func FileSecret(path string) SecretSource {
	return SecretFunc(func() (string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read secret key file: %w", err)
		}
		return parseSecretFile(string(data))
	})
}

func parseSecretFile(data string) (string, error) {
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line, nil
	}
	return "", fmt.Errorf("%w: secret key file has no key", ErrNoSecretKey)
}

// secretOf resolves src and rejects empty material.
func secretOf(src SecretSource) (string, error) {
	if src == nil {
		return "", ErrNoSecretKey
	}
	s, err := src.Secret()
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", ErrNoSecretKey
	}
	return s, nil
}

// secretBytes is the entropy of a generated secret.
const secretBytes = 32

// GenerateSecretFile writes a new random secret to path, readable only by
// the owner, and returns it. An existing file is left untouched and its
// secret returned instead.
func GenerateSecretFile(path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return FileSecret(path).Secret()
	}

	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(raw)

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	content := fmt.Sprintf("# created: gatewayenv\n%s\n", secret)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return "", fmt.Errorf("failed to write secret key file: %w", err)
	}
	return secret, nil
}
