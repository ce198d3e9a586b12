package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	durationPattern = regexp.MustCompile(`^(\d+)([mhdw])$`)
	leadingDuration = regexp.MustCompile(`^(\d+[mhdw])(?:\s+|$)`)
)

var durationUnits = map[string]time.Duration{
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
}

type readableUnit struct {
	name    string
	seconds int64
}

var readableUnits = []readableUnit{
	{name: "week", seconds: 7 * 24 * 3600},
	{name: "day", seconds: 24 * 3600},
	{name: "hour", seconds: 3600},
	{name: "minute", seconds: 60},
	{name: "second", seconds: 1},
}

// MaxDuration bounds every duration a chat command may set, about a hundred years.
const MaxDuration = 5200 * 7 * 24 * time.Hour

var (
	ErrNotDuration     = errors.New("not a duration")
	ErrDurationTooLong = Invalid(fmt.Sprintf("Duration is too long. The maximum is %s.", ReadableDuration(MaxDuration)))
)

// ParseDuration accepts "<n>m", "<n>h", "<n>d" or "<n>w" up to MaxDuration and nothing else.
func ParseDuration(value string) (time.Duration, bool) {
	d, err := ParseDurationToken(value)
	return d, err == nil
}

// ParseDurationToken is ParseDuration with the reason for a rejection:
// ErrNotDuration for malformed tokens, ErrDurationTooLong past MaxDuration.
func ParseDurationToken(value string) (time.Duration, error) {
	match := durationPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(value)))
	if match == nil {
		return 0, ErrNotDuration
	}
	unit := durationUnits[match[2]]
	amount, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil || amount > int64(MaxDuration/unit) {
		return 0, ErrDurationTooLong
	}
	return time.Duration(amount) * unit, nil
}

// Seconds converts a count of seconds, rejecting values past MaxDuration.
func Seconds(n int64) (time.Duration, error) {
	if n > int64(MaxDuration/time.Second) || n < -int64(MaxDuration/time.Second) {
		return 0, ErrDurationTooLong
	}
	return time.Duration(n) * time.Second, nil
}

// SplitDuration consumes a leading duration token and returns the rest of the text.
// Without a leading token the duration is zero and the text is returned whole.
func SplitDuration(text string) (time.Duration, string, error) {
	trimmed := strings.TrimSpace(text)
	loc := leadingDuration.FindStringSubmatchIndex(trimmed)
	if loc == nil {
		return 0, trimmed, nil
	}
	d, err := ParseDurationToken(trimmed[loc[2]:loc[3]])
	if err != nil {
		return 0, trimmed, err
	}
	return d, strings.TrimSpace(trimmed[loc[1]:]), nil
}

func ReadableDuration(d time.Duration) string {
	return ReadableSeconds(int64(d / time.Second))
}

func ReadableSeconds(seconds int64) string {
	if seconds <= 0 {
		return "0 seconds"
	}
	var parts []string
	for _, unit := range readableUnits {
		n := seconds / unit.seconds
		if n == 0 {
			continue
		}
		seconds -= n * unit.seconds
		name := unit.name
		if n != 1 {
			name += "s"
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, name))
	}
	return strings.Join(parts, ", ")
}
