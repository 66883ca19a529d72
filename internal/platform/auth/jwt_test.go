package auth

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestVerifier_RoundTrip(t *testing.T) {
	t.Parallel()

	v := NewVerifier("test-secret")
	token, err := v.Sign(Claims{Sub: "client-1", Role: "user", Exp: time.Now().Add(time.Hour).Unix()})
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if claims.Sub != "client-1" || claims.Role != "user" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := NewVerifier("other").Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestVerifier_Expired(t *testing.T) {
	t.Parallel()

	v := NewVerifier("test-secret")
	v.now = func() time.Time { return time.Unix(2000, 0) }

	token, err := v.Sign(Claims{Sub: "client-1", Role: "user", Exp: 1000})
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifier_Malformed(t *testing.T) {
	t.Parallel()

	v := NewVerifier("test-secret")
	exp := time.Now().Add(time.Hour).Unix()
	valid, _ := v.Sign(Claims{Sub: "client-1", Exp: exp})
	parts := strings.Split(valid, ".")

	noneHeader := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	noSub, _ := v.Sign(Claims{Role: "admin", Exp: exp})

	cases := map[string]string{
		"empty":       "",
		"two parts":   parts[0] + "." + parts[1],
		"bad header":  "###." + parts[1] + "." + parts[2],
		"alg none":    noneHeader + "." + parts[1] + "." + parts[2],
		"tampered":    parts[0] + "." + base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"admin"}`)) + "." + parts[2],
		"missing sub": noSub,
	}
	for name, token := range cases {
		if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestVerifier_RequiresExpiry(t *testing.T) {
	t.Parallel()

	v := NewVerifier("test-secret")
	v.now = func() time.Time { return time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC) }

	token, err := v.Sign(Claims{Sub: "user-1", Role: "admin"})
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	if claims, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for token without exp, got claims=%+v err=%v", claims, err)
	}
}

func TestVerifier_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	v := NewVerifier("test-secret")
	claims := Claims{Sub: "user-1", Role: "admin", Exp: time.Now().Add(time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("SignedString returned error: %v", err)
	}
	if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for HS512 token, got %v", err)
	}
}
