package jwt

import (
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParseAccessToken(t *testing.T) {
	Init("unit-test-secret", 15)

	token, err := GenerateAccessToken("mentor-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "mentor-1" {
		t.Fatalf("user id=%q", claims.UserID)
	}
	if claims.Subject != SubjectAccessToken {
		t.Fatalf("subject=%q", claims.Subject)
	}
}

func TestParseTokenRejectsOtherSecret(t *testing.T) {
	Init("secret-a", 15)
	token, err := GenerateAccessToken("u1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	Init("secret-b", 15)
	if _, err := ParseToken(token); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	Init("secret", 15)
	claims := Claims{
		UserID: "u1",
		RegisteredClaims: gojwt.RegisteredClaims{
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(-time.Minute)),
			Subject:   SubjectAccessToken,
		},
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseToken(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseTokenRejectsNoneAlg(t *testing.T) {
	Init("secret", 15)
	claims := Claims{UserID: "u1", RegisteredClaims: gojwt.RegisteredClaims{Subject: SubjectAccessToken}}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, claims).SignedString(gojwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseToken(token); err == nil {
		t.Fatal("expected alg none to be rejected")
	}
}
