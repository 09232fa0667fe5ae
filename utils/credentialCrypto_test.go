package utils

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestEncryptDecryptCredentialRoundTrip(t *testing.T) {
	t.Setenv("CREDENTIAL_SECRET", "test-secret")

	token := "EAABsbCS1iHgBAKZCZCq8example-token"
	ct, iv, tag, err := EncryptCredential(token)
	if err != nil {
		t.Fatalf("EncryptCredential: %v", err)
	}
	if ct == "" || iv == "" || tag == "" {
		t.Fatalf("expected non-empty ciphertext/iv/tag, got %q %q %q", ct, iv, tag)
	}

	got, err := DecryptCredential(ct, iv, tag)
	if err != nil {
		t.Fatalf("DecryptCredential: %v", err)
	}
	if got != token {
		t.Fatalf("round trip mismatch: got %q want %q", got, token)
	}
}

func TestEncryptCredentialUniqueNonce(t *testing.T) {
	t.Setenv("CREDENTIAL_SECRET", "test-secret")

	_, iv1, _, err := EncryptCredential("same-token")
	if err != nil {
		t.Fatalf("EncryptCredential: %v", err)
	}
	_, iv2, _, err := EncryptCredential("same-token")
	if err != nil {
		t.Fatalf("EncryptCredential: %v", err)
	}
	if iv1 == iv2 {
		t.Fatal("expected a fresh nonce per encryption")
	}
}

func TestDecryptCredentialTamperFails(t *testing.T) {
	t.Setenv("CREDENTIAL_SECRET", "test-secret")

	ct, iv, tag, err := EncryptCredential("secret-token")
	if err != nil {
		t.Fatalf("EncryptCredential: %v", err)
	}

	flip := func(s string) string {
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		raw[0] ^= 0xff
		return base64.StdEncoding.EncodeToString(raw)
	}

	cases := []struct {
		name        string
		ct, iv, tag string
	}{
		{"ciphertext", flip(ct), iv, tag},
		{"iv", ct, flip(iv), tag},
		{"auth tag", ct, iv, flip(tag)},
		{"not base64", "%%%", iv, tag},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecryptCredential(tc.ct, tc.iv, tc.tag); !errors.Is(err, ErrCredentialDecrypt) {
				t.Fatalf("expected ErrCredentialDecrypt, got %v", err)
			}
		})
	}
}

func TestDecryptCredentialWrongKeyFails(t *testing.T) {
	t.Setenv("CREDENTIAL_SECRET", "key-one")
	ct, iv, tag, err := EncryptCredential("secret-token")
	if err != nil {
		t.Fatalf("EncryptCredential: %v", err)
	}

	t.Setenv("CREDENTIAL_SECRET", "key-two")
	if _, err := DecryptCredential(ct, iv, tag); !errors.Is(err, ErrCredentialDecrypt) {
		t.Fatalf("expected ErrCredentialDecrypt with wrong key, got %v", err)
	}
}

func TestEncryptCredentialRequiresSecret(t *testing.T) {
	t.Setenv("CREDENTIAL_SECRET", "")
	if _, _, _, err := EncryptCredential("token"); err == nil {
		t.Fatal("expected error without CREDENTIAL_SECRET")
	}
}
