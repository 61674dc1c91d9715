// Package signing implements the HMAC scheme behind API-served document
// download links. A link for a gate pass embeds an expiry and a signature
// over (reference, expiry); anyone holding the link can download the rendered
// document until it expires, without any further lookup rights.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Signer generates and validates HMAC based signatures.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret}
}

// Sign returns the hex signature for a reference and expiry.
func (s *Signer) Sign(reference string, expiresUnix int64) string {
	mac := hmac.New(sha256.New, s.secret)
	payload := fmt.Sprintf("%s:%d", reference, expiresUnix)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Validate checks a signature against the reference and expiry from the query
// string, and rejects expired links. The comparison is constant time.
func (s *Signer) Validate(reference, expires, signature string, now time.Time) bool {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return false
	}
	if now.Unix() > exp {
		return false
	}
	expected := s.Sign(reference, exp)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Query returns the signed query string ("expires=...&sig=...") for a
// download link valid for ttl from now.
func (s *Signer) Query(reference string, now time.Time, ttl time.Duration) string {
	exp := now.Add(ttl).Unix()
	v := url.Values{}
	v.Set("expires", strconv.FormatInt(exp, 10))
	v.Set("sig", s.Sign(reference, exp))
	return v.Encode()
}
