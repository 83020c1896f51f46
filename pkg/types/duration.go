package types

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// MarshalledDuration is a time.Duration that reads from config as "1w 2d 3h 4m 5s 6ms 7ns".
type MarshalledDuration time.Duration

var durationRegex = regexp.MustCompile(`^(?:(\d+)w)? ?(?:(\d+)d)? ?(?:(\d+)h)? ?(?:(\d+)m)? ?(?:(\d+)s)? ?(?:(\d+)ms)? ?(?:(\d+)ns)?$`)

// Matches the capture groups of durationRegex, in order.
var durationUnits = []time.Duration{
	7 * 24 * time.Hour,
	24 * time.Hour,
	time.Hour,
	time.Minute,
	time.Second,
	time.Millisecond,
	time.Nanosecond,
}

func (d MarshalledDuration) Duration() time.Duration {
	return time.Duration(d)
}

func (d MarshalledDuration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

func (d *MarshalledDuration) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("invalid duration: missing quotes")
	}

	return d.UnmarshalText(data[1 : len(data)-1])
}

func (d *MarshalledDuration) UnmarshalText(text []byte) error {
	duration, err := parseDuration(string(text))
	if err != nil {
		return err
	}

	*d = MarshalledDuration(duration)
	return nil
}

// parseDuration exists because time.ParseDuration has no days or weeks. A plain Go duration
// string such as "1m30s" is accepted as a fallback.
func parseDuration(s string) (time.Duration, error) {
	if s == "0" {
		return 0, nil
	}

	groups := durationRegex.FindStringSubmatch(s)
	if groups == nil || s == "" {
		if duration, err := time.ParseDuration(s); err == nil {
			return duration, nil
		}

		return 0, fmt.Errorf("invalid duration: %s", s)
	}

	var duration time.Duration
	for i, unit := range durationUnits {
		group := groups[i+1]
		if group == "" {
			continue
		}

		count, err := strconv.Atoi(group)
		if err != nil {
			return 0, err
		}

		duration += time.Duration(count) * unit
	}

	return duration, nil
}
