package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Social connection access tokens are stored as AES-256-GCM ciphertext with the
// IV and auth tag kept in separate columns. Decryption MUST fail loudly on
// tamper or key mismatch; a silently-garbled token would be sent to a platform
// API and burn the connection.

var ErrCredentialDecrypt = errors.New("credential decryption failed")

const credentialKeyIterations = 10000

func credentialKey() ([]byte, error) {
	secret := strings.TrimSpace(os.Getenv("CREDENTIAL_SECRET"))
	if secret == "" {
		return nil, errors.New("CREDENTIAL_SECRET is required")
	}
	salt := strings.TrimSpace(os.Getenv("CREDENTIAL_SALT"))
	if salt == "" {
		salt = "pulsemark-credential-v1"
	}
	return pbkdf2.Key([]byte(secret), []byte(salt), credentialKeyIterations, 32, sha256.New), nil
}

// EncryptCredential returns base64 ciphertext, iv and auth tag.
func EncryptCredential(plaintext string) (ciphertext string, iv string, authTag string, err error) {
	key, err := credentialKey()
	if err != nil {
		return "", "", "", err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", "", "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", "", "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", "", "", err
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	// gcm.Seal appends the tag; split it off so the stored shape matches
	// the connection record's (ciphertext, iv, auth_tag) columns.
	tagStart := len(sealed) - gcm.Overhead()
	ciphertext = base64.StdEncoding.EncodeToString(sealed[:tagStart])
	iv = base64.StdEncoding.EncodeToString(nonce)
	authTag = base64.StdEncoding.EncodeToString(sealed[tagStart:])
	return ciphertext, iv, authTag, nil
}

// DecryptCredential reverses EncryptCredential. Any corruption of ciphertext,
// iv or auth tag returns ErrCredentialDecrypt.
func DecryptCredential(ciphertext string, iv string, authTag string) (string, error) {
	key, err := credentialKey()
	if err != nil {
		return "", err
	}

	ct, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrCredentialDecrypt
	}
	nonce, err := base64.StdEncoding.DecodeString(iv)
	if err != nil {
		return "", ErrCredentialDecrypt
	}
	tag, err := base64.StdEncoding.DecodeString(authTag)
	if err != nil {
		return "", ErrCredentialDecrypt
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() || len(tag) != gcm.Overhead() {
		return "", ErrCredentialDecrypt
	}

	plaintext, err := gcm.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return "", ErrCredentialDecrypt
	}
	return string(plaintext), nil
}
