package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/fernet/fernet-go"

	"github.com/qserverless/gatewayenv/pkg/types"
)

// Tokens are not subject to a TTL; fernet-go has no "never expires" value,
// so the longest representable duration stands in for it.
const fernetNoExpiry = time.Duration(math.MaxInt64)

var errInvalidToken = errors.New("invalid or tampered fernet token")

// FernetCipher encrypts values as Fernet tokens (AES-128-CBC with
// HMAC-SHA256). The 32 byte Fernet key is SHA-256 of the secret, so secrets
// of any length are accepted.
type FernetCipher struct {
	secret SecretSource
}

// NewFernetCipher creates a FernetCipher keyed by src.
func NewFernetCipher(src SecretSource) *FernetCipher {
	return &FernetCipher{secret: src}
}

// Scheme returns "fernet".
func (c *FernetCipher) Scheme() string { return types.SchemeFernet }

func (c *FernetCipher) key() (*fernet.Key, error) {
	s, err := secretOf(c.secret)
	if err != nil {
		return nil, err
	}
	k := fernet.Key(sha256.Sum256([]byte(s)))
	return &k, nil
}

// EncryptString encrypts plaintext into a URL-safe Fernet token.
func (c *FernetCipher) EncryptString(plaintext string) (string, error) {
	k, err := c.key()
	if err != nil {
		return "", err
	}
	tok, err := fernet.EncryptAndSign([]byte(plaintext), k)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt: %w", err)
	}
	return string(tok), nil
}

// DecryptString verifies and decrypts a Fernet token.
func (c *FernetCipher) DecryptString(ciphertext string) (string, error) {
	k, err := c.key()
	if err != nil {
		return "", err
	}
	msg := fernet.VerifyAndDecrypt([]byte(ciphertext), fernetNoExpiry, []*fernet.Key{k})
	if msg == nil {
		return "", &DecryptionError{Scheme: c.Scheme(), Err: errInvalidToken}
	}
	return string(msg), nil
}
