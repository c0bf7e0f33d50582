// Package timecode converts between seconds and the HH:MM:SS.cc strings shown
// in the range inputs.
//
// Precision is fixed at centiseconds. Formatting truncates, so a value always
// formats to a string that parses back to a value no greater than itself.
package timecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseError reports a manual time entry that could not be parsed.
type ParseError struct {
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid time %q: %s", e.Text, e.Reason)
}

// Truncate drops everything below centisecond precision.
func Truncate(seconds float64) float64 {
	if math.IsNaN(seconds) || seconds <= 0 {
		return 0
	}
	return float64(centis(seconds)) / 100
}

// centis counts whole centiseconds in seconds, the largest c with
// c/100 <= seconds. The product seconds*100 can land just below an integer
// (0.29*100 is 28.999...), so the neighbours are checked against seconds
// itself, the same value ParseSeconds produces.
func centis(seconds float64) int64 {
	c := int64(math.Floor(seconds * 100))
	for float64(c+1)/100 <= seconds {
		c++
	}
	for c > 0 && float64(c)/100 > seconds {
		c--
	}
	return c
}

// FormatSeconds renders seconds as zero-padded HH:MM:SS.cc. Negative and NaN
// inputs format as zero. Hours grow past two digits rather than wrapping.
func FormatSeconds(seconds float64) string {
	if math.IsNaN(seconds) || seconds <= 0 {
		return "00:00:00.00"
	}
	if seconds > math.MaxInt32 {
		seconds = math.MaxInt32
	}

	total := centis(seconds)
	cs := total % 100
	secs := (total / 100) % 60
	mins := (total / 6000) % 60
	hrs := total / 360000

	return fmt.Sprintf("%02d:%02d:%02d.%02d", hrs, mins, secs, cs)
}

// ParseSeconds parses HH:MM:SS or HH:MM:SS.f[f]. Minutes and seconds must be
// two digits below 60; the fraction is read as hundredths, so ".5" is 50cs.
func ParseSeconds(text string) (float64, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, &ParseError{Text: text, Reason: "empty"}
	}

	clock, frac, hasFrac := strings.Cut(s, ".")
	parts := strings.Split(clock, ":")
	if len(parts) != 3 {
		return 0, &ParseError{Text: text, Reason: "expected HH:MM:SS"}
	}

	hrs, err := parseDigits(parts[0], 1, 0)
	if err != nil {
		return 0, &ParseError{Text: text, Reason: "hours " + err.Error()}
	}
	mins, err := parseDigits(parts[1], 2, 2)
	if err != nil {
		return 0, &ParseError{Text: text, Reason: "minutes " + err.Error()}
	}
	secs, err := parseDigits(parts[2], 2, 2)
	if err != nil {
		return 0, &ParseError{Text: text, Reason: "seconds " + err.Error()}
	}
	if mins >= 60 || secs >= 60 {
		return 0, &ParseError{Text: text, Reason: "minutes and seconds must be below 60"}
	}

	var cs int64
	if hasFrac {
		cs, err = parseDigits(frac, 1, 2)
		if err != nil {
			return 0, &ParseError{Text: text, Reason: "fraction " + err.Error()}
		}
		if len(frac) == 1 {
			cs *= 10
		}
	}

	total := ((hrs*60+mins)*60+secs)*100 + cs
	return float64(total) / 100, nil
}

// parseDigits accepts only ASCII digits, between minLen and maxLen of them
// (maxLen 0 means unbounded).
func parseDigits(s string, minLen, maxLen int) (int64, error) {
	if len(s) < minLen || (maxLen > 0 && len(s) > maxLen) {
		return 0, fmt.Errorf("has wrong length")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("is not numeric")
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("is out of range")
	}
	return n, nil
}
