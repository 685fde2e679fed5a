package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func TestVerify(t *testing.T) {
	v := NewVerifier("secret")
	valid := Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		ID:               "42",
		Username:         "alice",
	}
	token, err := v.Sign(valid)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.ID != "42" || claims.Username != "alice" {
		t.Fatalf("claims = %+v", claims)
	}

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	token, _ = v.Sign(expired)
	if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token: %v", err)
	}

	token, _ = NewVerifier("other").Sign(valid)
	if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret: %v", err)
	}

	anon := valid
	anon.ID = ""
	token, _ = v.Sign(anon)
	if _, err := v.Verify(token); !errors.Is(err, ErrMissingID) {
		t.Fatalf("missing id: %v", err)
	}

	if _, err := v.Verify("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage token: %v", err)
	}
}
