package envvars

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/qserverless/gatewayenv/internal/crypto"
	"github.com/qserverless/gatewayenv/pkg/types"
)

// plainPrefix marks a value stored without encryption. Neither Fernet
// tokens nor base64url age output can contain ':'.
const plainPrefix = "plain:"

var (
	// ErrSchemeMismatch is returned when a bundle was produced by another cipher.
	ErrSchemeMismatch = errors.New("cipher scheme mismatch")
	// ErrUnsupportedVersion is returned for an unknown EncryptedBundle version.
	ErrUnsupportedVersion = errors.New("unsupported encrypted bundle version")
	// ErrPlainSecret is returned when a secret variable is stored unencrypted.
	ErrPlainSecret = errors.New("secret variable is not encrypted")
)

// Codec encrypts and decrypts environment bundles. Every value is first
// serialized to canonical JSON, so strings and structured arguments share
// one reversible format.
type Codec struct {
	cipher     crypto.Cipher
	secretKeys map[string]bool
	logger     *zap.Logger
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithSecretKeys limits encryption to the named variables. Without it every
// variable is treated as a secret.
func WithSecretKeys(keys ...string) CodecOption {
	return func(c *Codec) {
		if len(keys) == 0 {
			return
		}
		c.secretKeys = make(map[string]bool, len(keys))
		for _, k := range keys {
			c.secretKeys[k] = true
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *zap.Logger) CodecOption {
	return func(c *Codec) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCodec creates a Codec around cipher.
func NewCodec(cipher crypto.Cipher, opts ...CodecOption) *Codec {
	c := &Codec{
		cipher: cipher,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Scheme returns the scheme of the underlying cipher.
func (c *Codec) Scheme() string {
	return c.cipher.Scheme()
}

// IsSecret reports whether key is encrypted by this codec.
func (c *Codec) IsSecret(key string) bool {
	return c.secretKeys == nil || c.secretKeys[key]
}

// EncryptValue serializes v and encrypts it.
func (c *Codec) EncryptValue(v types.Value) (string, error) {
	data, err := v.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("failed to serialize value: %w", err)
	}
	return c.cipher.EncryptString(string(data))
}

// DecryptValue decrypts s and parses the serialized value.
func (c *Codec) DecryptValue(s string) (types.Value, error) {
	plaintext, err := c.cipher.DecryptString(s)
	if err != nil {
		return types.Value{}, err
	}
	v, err := types.ParseValue([]byte(plaintext))
	if err != nil {
		return types.Value{}, fmt.Errorf("failed to deserialize value: %w", err)
	}
	return v, nil
}

// EncryptBundle encrypts every secret variable of b. The key set is
// preserved; b is not modified.
func (c *Codec) EncryptBundle(b types.Bundle) (*types.EncryptedBundle, error) {
	out := &types.EncryptedBundle{
		Version: types.EncryptedBundleVersion,
		Scheme:  c.cipher.Scheme(),
		Values:  make(map[string]string, len(b)),
	}

	encrypted := 0
	for _, key := range b.Keys() {
		v := b[key]
		if !c.IsSecret(key) {
			data, err := v.MarshalJSON()
			if err != nil {
				return nil, fmt.Errorf("failed to serialize %s: %w", key, err)
			}
			out.Values[key] = plainPrefix + string(data)
			continue
		}

		enc, err := c.EncryptValue(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt %s: %w", key, err)
		}
		out.Values[key] = enc
		encrypted++
	}

	c.logger.Debug("encrypted environment",
		zap.String("scheme", out.Scheme),
		zap.Int("variables", len(out.Values)),
		zap.Int("encrypted", encrypted),
	)
	return out, nil
}

// DecryptBundle is the inverse of EncryptBundle.
func (c *Codec) DecryptBundle(e *types.EncryptedBundle) (types.Bundle, error) {
	if e == nil {
		return nil, fmt.Errorf("encrypted bundle is nil")
	}
	if e.Version != types.EncryptedBundleVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, e.Version)
	}
	if e.Scheme != c.cipher.Scheme() {
		return nil, fmt.Errorf("%w: bundle uses %q, codec uses %q", ErrSchemeMismatch, e.Scheme, c.cipher.Scheme())
	}

	b := make(types.Bundle, len(e.Values))
	for _, key := range e.Keys() {
		s := e.Values[key]
		if rest, ok := strings.CutPrefix(s, plainPrefix); ok {
			if c.IsSecret(key) {
				return nil, fmt.Errorf("%s: %w", key, ErrPlainSecret)
			}
			v, err := types.ParseValue([]byte(rest))
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize %s: %w", key, err)
			}
			b[key] = v
			continue
		}

		v, err := c.DecryptValue(s)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt %s: %w", key, err)
		}
		b[key] = v
	}

	c.logger.Debug("decrypted environment",
		zap.String("scheme", e.Scheme),
		zap.Int("variables", len(b)),
	)
	return b, nil
}

// NewCodecFromConfig builds the cipher selected by cfg.Crypto and wraps it
// in a Codec. The secret key is read from cfg on every call.
func NewCodecFromConfig(cfg *types.Config, logger *zap.Logger) (*Codec, error) {
	cipher, err := crypto.NewCipher(cfg.Crypto, crypto.ConfigSecret(&cfg.Crypto))
	if err != nil {
		return nil, err
	}
	return NewCodec(cipher,
		WithSecretKeys(cfg.Crypto.SecretKeys...),
		WithLogger(logger),
	), nil
}
