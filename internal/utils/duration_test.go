package utils

import (
	"errors"
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"1m", time.Minute, true},
		{"10m", 600 * time.Second, true},
		{"2h", 7200 * time.Second, true},
		{"1d", 86400 * time.Second, true},
		{"1w", 604800 * time.Second, true},
		{"", 0, false},
		{"invalid", 0, false},
		{"1x", 0, false},
		{"m", 0, false},
		{"10m spam", 0, false},
		{"5200w", MaxDuration, true},
		{"5201w", 0, false},
		{"106752d", 0, false},
		{"99999999999999999999m", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseDuration(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseDuration(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestSplitDuration(t *testing.T) {
	d, rest, err := SplitDuration("2h spamming links")
	if err != nil || d != 2*time.Hour || rest != "spamming links" {
		t.Fatalf("unexpected split: %v %q %v", d, rest, err)
	}

	d, rest, err = SplitDuration("10minutes of spam")
	if err != nil || d != 0 || rest != "10minutes of spam" {
		t.Fatalf("expected no duration, got %v %q %v", d, rest, err)
	}

	d, rest, err = SplitDuration("1d")
	if err != nil || d != 24*time.Hour || rest != "" {
		t.Fatalf("unexpected split: %v %q %v", d, rest, err)
	}

	if _, _, err := SplitDuration("30000w spam"); !errors.Is(err, ErrDurationTooLong) {
		t.Fatalf("expected an over-long duration to be rejected, got %v", err)
	}
}

func TestDurationOverflowIsRejected(t *testing.T) {
	if _, err := ParseDurationToken("106752d"); !errors.Is(err, ErrDurationTooLong) {
		t.Fatalf("expected ErrDurationTooLong, got %v", err)
	}
	if _, err := ParseDurationToken("1x"); !errors.Is(err, ErrNotDuration) {
		t.Fatalf("expected ErrNotDuration, got %v", err)
	}
	if _, err := Seconds(99_999_999_999); !errors.Is(err, ErrDurationTooLong) {
		t.Fatalf("expected seconds past the maximum to be rejected, got %v", err)
	}
	if d, err := Seconds(600); err != nil || d != 10*time.Minute {
		t.Fatalf("unexpected seconds conversion %v %v", d, err)
	}
	var verr *ValidationError
	if !errors.As(ErrDurationTooLong, &verr) || verr.Message != "Duration is too long. The maximum is 5200 weeks." {
		t.Fatalf("unexpected message %v", ErrDurationTooLong)
	}
}

func TestReadableSeconds(t *testing.T) {
	cases := map[int64]string{
		-1:     "0 seconds",
		0:      "0 seconds",
		60:     "1 minute",
		61:     "1 minute, 1 second",
		120:    "2 minutes",
		3600:   "1 hour",
		3661:   "1 hour, 1 minute, 1 second",
		86400:  "1 day",
		604800: "1 week",
		694861: "1 week, 1 day, 1 hour, 1 minute, 1 second",
	}
	for in, want := range cases {
		if got := ReadableSeconds(in); got != want {
			t.Fatalf("ReadableSeconds(%d) = %q, want %q", in, got, want)
		}
	}
	if got := ReadableDuration(90 * time.Second); got != "1 minute, 30 seconds" {
		t.Fatalf("unexpected readable duration %q", got)
	}
}
