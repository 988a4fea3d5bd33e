package jwt

import (
	"testing"
	"time"
)

func TestMagicLinkTokenRoundTrip(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	token, err := GenerateMagicLinkToken("dev@example.com", "secret", now, 15*time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseMagicLinkToken(token, "secret", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Email != "dev@example.com" {
		t.Fatalf("unexpected email %q", claims.Email)
	}

	if _, err := ParseMagicLinkToken(token, "other", now); err == nil {
		t.Fatalf("expected signature failure")
	}
	if _, err := ParseMagicLinkToken(token, "secret", now.Add(time.Hour)); err == nil {
		t.Fatalf("expected expiry failure")
	}
}
