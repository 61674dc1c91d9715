package reference

import (
	"testing"
	"time"
)

func TestGenerateFormat(t *testing.T) {
	ts := time.Date(2024, 3, 14, 9, 26, 53, 0, time.UTC)
	names := []string{"Jane Doe", "", "ŚĆ unicode requester", "a very long requester name with lots of characters"}
	for _, name := range names {
		ref := Generate(name, ts)
		if !Valid(ref) {
			t.Errorf("Generate(%q) = %q, want GP + 8 uppercase hex", name, ref)
		}
		if len(ref) != 10 {
			t.Errorf("Generate(%q) = %q, want length 10", name, ref)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	ts := time.Date(2024, 3, 14, 9, 26, 53, 0, time.UTC)
	a := Generate("Jane Doe", ts)
	b := Generate("Jane Doe", ts)
	if a != b {
		t.Fatalf("same inputs produced %q and %q", a, b)
	}
	// Sub-second differences are deliberately invisible to the generator.
	c := Generate("Jane Doe", ts.Add(500*time.Millisecond))
	if a != c {
		t.Fatalf("sub-second timestamp change altered reference: %q vs %q", a, c)
	}
	// A full second changes the input and therefore the digest.
	d := Generate("Jane Doe", ts.Add(time.Second))
	if a == d {
		t.Fatalf("expected different reference one second later")
	}
}

func TestGenerateDistinguishesRequesters(t *testing.T) {
	ts := time.Date(2024, 3, 14, 9, 26, 53, 0, time.UTC)
	if Generate("Jane Doe", ts) == Generate("John Doe", ts) {
		t.Fatal("different requesters hashed to the same reference")
	}
}

func TestValid(t *testing.T) {
	cases := []struct {
		ref  string
		want bool
	}{
		{"GP1A2B3C4D", true},
		{"GP00000000", true},
		{"GPFFFFFFFF", true},
		{"gp1a2b3c4d", false}, // lower case is malformed
		{"GP1A2B3C4", false},  // too short
		{"GP1A2B3C4DE", false},
		{"XX1A2B3C4D", false},
		{"GP1A2B3C4G", false}, // G is not hex
		{"", false},
	}
	for _, tc := range cases {
		if got := Valid(tc.ref); got != tc.want {
			t.Errorf("Valid(%q) = %v, want %v", tc.ref, got, tc.want)
		}
	}
}
