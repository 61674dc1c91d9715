// Package reference derives the short human-shareable code that identifies a
// gate pass. References look like GP3F2A91CD: the literal "GP" followed by the
// first eight hex digits of an MD5 over the requester's name and a
// second-resolution timestamp.
package reference

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

// Prefix is the literal every reference starts with.
const Prefix = "GP"

// timeLayout pins the hash input to second resolution. Two submissions by the
// same requester within the same second collide; in practice humans cannot
// submit that fast, and the service retries creation with a bumped timestamp
// if the store reports a duplicate.
const timeLayout = "20060102150405"

var pattern = regexp.MustCompile(`^GP[0-9A-F]{8}$`)

// Generate returns the reference for a request submitted by requestedBy at
// time ts. It is a pure function: identical inputs yield identical output.
func Generate(requestedBy string, ts time.Time) string {
	sum := md5.Sum([]byte(requestedBy + ts.Format(timeLayout)))
	digest := hex.EncodeToString(sum[:])
	return Prefix + strings.ToUpper(digest[:8])
}

// Valid reports whether ref is a well-formed reference. Anything persisted or
// accepted from a caller must satisfy this.
func Valid(ref string) bool {
	return pattern.MatchString(ref)
}
