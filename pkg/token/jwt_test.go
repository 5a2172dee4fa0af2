package token

import (
	"errors"
	"testing"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", 1, 1)
	tok, err := m.GenerateToken(42, "abc-roofing", "USER")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := m.VerifyToken(tok)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != 42 || claims.Username != "abc-roofing" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestRefreshTokenRejectedAsAccess(t *testing.T) {
	m := NewJWTManager("secret", 1, 1)
	refresh, _ := m.GenerateRefreshToken(1, "u", "USER")
	if _, err := m.VerifyToken(refresh); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("err = %v, want ErrWrongTokenType", err)
	}
	if _, err := m.VerifyRefreshToken(refresh); err != nil {
		t.Fatal(err)
	}
}

func TestTokenSignedWithOtherSecret(t *testing.T) {
	tok, _ := NewJWTManager("a", 1, 1).GenerateToken(1, "u", "USER")
	if _, err := NewJWTManager("b", 1, 1).VerifyToken(tok); err == nil {
		t.Fatal("expected signature error")
	}
}
