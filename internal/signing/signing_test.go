package signing

import (
	"net/url"
	"testing"
	"time"
)

func TestSigner(t *testing.T) {
	s := NewSigner([]byte("topsecret"))
	now := time.Unix(1700000000, 0)
	exp := now.Add(5 * time.Minute).Unix()

	sig := s.Sign("GP1A2B3C4D", exp)
	if len(sig) == 0 {
		t.Fatalf("expected signature")
	}
	expStr := "1700000300"
	if !s.Validate("GP1A2B3C4D", expStr, sig, now) {
		t.Fatalf("expected signature to validate")
	}
	if s.Validate("GPFFFFFFFF", expStr, sig, now) {
		t.Fatalf("expected validation to fail for a different reference")
	}
	if s.Validate("GP1A2B3C4D", "42", sig, now) {
		t.Fatalf("expected validation to fail for a tampered expiry")
	}
	if s.Validate("GP1A2B3C4D", expStr, sig, now.Add(10*time.Minute)) {
		t.Fatalf("expected validation to fail after expiry")
	}
	if NewSigner([]byte("othersecret")).Validate("GP1A2B3C4D", expStr, sig, now) {
		t.Fatalf("expected validation to fail under a different secret")
	}
}

func TestQueryRoundTrip(t *testing.T) {
	s := NewSigner([]byte("topsecret"))
	now := time.Unix(1700000000, 0)

	q, err := url.ParseQuery(s.Query("GP1A2B3C4D", now, 5*time.Minute))
	if err != nil {
		t.Fatalf("parse query: %v", err)
	}
	if !s.Validate("GP1A2B3C4D", q.Get("expires"), q.Get("sig"), now) {
		t.Fatalf("minted link did not validate")
	}
}
