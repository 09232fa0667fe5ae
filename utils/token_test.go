package utils

import (
	"testing"
)

func TestJwtGenerateValidateRoundTrip(t *testing.T) {
	token, err := JwtGenerate(42, "ws-123", "Reviewer One", "admin")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	if token == "" {
		t.Fatal("expected a non-empty token")
	}

	parsed, err := JwtValidate(token)
	if err != nil {
		t.Fatalf("JwtValidate: %v", err)
	}
	if !parsed.Valid {
		t.Fatal("expected token to be valid")
	}
	claims, ok := parsed.Claims.(*JwtCustomClaim)
	if !ok {
		t.Fatalf("unexpected claims type %T", parsed.Claims)
	}
	if claims.ID != 42 {
		t.Errorf("ID = %d, want 42", claims.ID)
	}
	if claims.WorkspaceId != "ws-123" {
		t.Errorf("WorkspaceId = %q, want %q", claims.WorkspaceId, "ws-123")
	}
	if claims.Role != "admin" {
		t.Errorf("Role = %q, want %q", claims.Role, "admin")
	}
	if claims.Subject != "Reviewer One" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "Reviewer One")
	}
	if claims.ExpiresAt <= claims.IssuedAt {
		t.Error("expected expiry after issuance")
	}
}

func TestJwtValidateRejectsTampered(t *testing.T) {
	token, err := JwtGenerate(7, "ws-7", "Someone", "member")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	tampered := token[:len(token)-2] + "AA"
	if tampered == token {
		tampered = token[:len(token)-2] + "BB"
	}
	if _, err := JwtValidate(tampered); err == nil {
		t.Fatal("expected tampered token to fail validation")
	}
}

func TestJwtValidateRejectsGarbage(t *testing.T) {
	if _, err := JwtValidate("not.a.jwt"); err == nil {
		t.Fatal("expected garbage token to fail validation")
	}
}
