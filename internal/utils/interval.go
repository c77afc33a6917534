package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sosodev/duration"
)

var shorthandPattern = regexp.MustCompile(`^(\d+)\s*(ms|s|sec|m|min|t|h|d|w)$`)

// ParseGranularity parses a sampling interval. It accepts unit-suffixed
// shorthand ("30s", "5m", "5min", "1h", "1d", "1w"), Go durations ("90s",
// "1h30m") and ISO-8601 durations ("PT5M", "P1D"). A bare "m" suffix means
// minutes.
func ParseGranularity(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty interval")
	}

	if m := shorthandPattern.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("invalid interval %q: %w", s, err)
		}
		d := time.Duration(n) * unitDuration(m[2])
		if d <= 0 {
			return 0, fmt.Errorf("interval must be positive: %q", s)
		}
		return d, nil
	}

	if strings.HasPrefix(s, "p") {
		iso, err := duration.Parse(strings.ToUpper(s))
		if err != nil {
			return 0, fmt.Errorf("invalid ISO-8601 interval %q: %w", s, err)
		}
		d := iso.ToTimeDuration()
		if d <= 0 {
			return 0, fmt.Errorf("interval must be positive: %q", s)
		}
		return d, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be positive: %q", s)
	}
	return d, nil
}

func unitDuration(unit string) time.Duration {
	switch unit {
	case "ms":
		return time.Millisecond
	case "s", "sec":
		return time.Second
	case "m", "min", "t":
		return time.Minute
	case "h":
		return time.Hour
	case "d":
		return 24 * time.Hour
	case "w":
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}
