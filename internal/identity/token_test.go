package identity

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSessionToken_RoundTrip(t *testing.T) {
	secret := []byte("test-secret")

	token, err := GenerateSessionToken("id-1", "a@x.com", secret, time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	id, err := IdentityIDFromToken(token, secret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id != "id-1" {
		t.Fatalf("expected id-1, got %q", id)
	}
}

func TestSessionToken_Distinct(t *testing.T) {
	secret := []byte("test-secret")

	a, err := GenerateSessionToken("id-1", "a@x.com", secret, time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := GenerateSessionToken("id-1", "a@x.com", secret, time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if a == b {
		t.Fatal("two tokens for the same identity should differ")
	}
}

func TestSessionToken_WrongSecret(t *testing.T) {
	token, err := GenerateSessionToken("id-1", "a@x.com", []byte("secret-a"), time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := IdentityIDFromToken(token, []byte("secret-b")); err == nil {
		t.Fatal("expected verification failure")
	}
}

func TestSessionToken_Expired(t *testing.T) {
	token, err := GenerateSessionToken("id-1", "a@x.com", []byte("secret"), -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	_, err = IdentityIDFromToken(token, []byte("secret"))
	if !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected expired token error, got %v", err)
	}
}
