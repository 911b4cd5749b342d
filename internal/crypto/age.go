package crypto

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"filippo.io/age"

	"github.com/qserverless/gatewayenv/pkg/types"
)

// defaultMaxWorkFactor mirrors the limit age applies to scrypt identities.
const defaultMaxWorkFactor = 22

// AgeCipher encrypts values with age's scrypt passphrase recipient. The
// ciphertext is the binary age file, base64url encoded without padding.
type AgeCipher struct {
	secret     SecretSource
	workFactor int
}

// NewAgeCipher creates an AgeCipher keyed by src. workFactor is the scrypt
// log2(N) used for encryption; values below 1 use age's default.
func NewAgeCipher(src SecretSource, workFactor int) *AgeCipher {
	return &AgeCipher{
		secret:     src,
		workFactor: workFactor,
	}
}

// Scheme returns "age".
func (c *AgeCipher) Scheme() string { return types.SchemeAge }

// EncryptString encrypts plaintext to the passphrase recipient.
func (c *AgeCipher) EncryptString(plaintext string) (string, error) {
	s, err := secretOf(c.secret)
	if err != nil {
		return "", err
	}

	recipient, err := age.NewScryptRecipient(s)
	if err != nil {
		return "", fmt.Errorf("failed to create recipient: %w", err)
	}
	if c.workFactor > 0 {
		recipient.SetWorkFactor(c.workFactor)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return "", fmt.Errorf("failed to create encryptor: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("failed to write plaintext: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close encryptor: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// DecryptString decrypts a value produced by EncryptString.
func (c *AgeCipher) DecryptString(ciphertext string) (string, error) {
	s, err := secretOf(c.secret)
	if err != nil {
		return "", err
	}

	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", &DecryptionError{Scheme: c.Scheme(), Err: fmt.Errorf("failed to decode ciphertext: %w", err)}
	}

	identity, err := age.NewScryptIdentity(s)
	if err != nil {
		return "", fmt.Errorf("failed to create identity: %w", err)
	}
	identity.SetMaxWorkFactor(max(defaultMaxWorkFactor, c.workFactor))

	r, err := age.Decrypt(bytes.NewReader(raw), identity)
	if err != nil {
		return "", &DecryptionError{Scheme: c.Scheme(), Err: err}
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", &DecryptionError{Scheme: c.Scheme(), Err: fmt.Errorf("failed to read decrypted data: %w", err)}
	}

	return string(plaintext), nil
}
