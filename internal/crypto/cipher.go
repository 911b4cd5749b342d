// Package crypto provides the symmetric ciphers used to protect environment values.
package crypto

import (
	"errors"
	"fmt"

	"github.com/qserverless/gatewayenv/pkg/types"
)

var (
	// ErrNoSecretKey is returned when no secret key material is configured.
	ErrNoSecretKey = errors.New("no secret key configured")
	// ErrDecryption matches every *DecryptionError.
	ErrDecryption = errors.New("cannot recover plaintext")
	// ErrUnknownScheme is returned by NewCipher for an unsupported scheme.
	ErrUnknownScheme = errors.New("unknown cipher scheme")
)

// DecryptionError reports a ciphertext that could not be validated or
// decoded under the current secret.
type DecryptionError struct {
	Scheme string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Scheme, ErrDecryption)
	}
	return fmt.Sprintf("%s: %s: %v", e.Scheme, ErrDecryption, e.Err)
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDecryption) hold for any DecryptionError.
func (e *DecryptionError) Is(target error) bool { return target == ErrDecryption }

// Cipher encrypts and decrypts single string values.
type Cipher interface {
	// Scheme names the cipher so readers can pick the matching one.
	Scheme() string
	EncryptString(plaintext string) (string, error)
	DecryptString(ciphertext string) (string, error)
}

// NewCipher returns the cipher selected by cfg.Scheme, keyed by src.
func NewCipher(cfg types.CryptoConfig, src SecretSource) (Cipher, error) {
	switch cfg.Scheme {
	case types.SchemeFernet, "":
		return NewFernetCipher(src), nil
	case types.SchemeAge:
		return NewAgeCipher(src, cfg.AgeWorkFactor), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, cfg.Scheme)
	}
}
