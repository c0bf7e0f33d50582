package editor

import (
	"fmt"
	"math"

	"github.com/heimdex/mediacrop/internal/timecode"
)

// Endpoint names one handle of the range.
type Endpoint string

const (
	EndpointStart Endpoint = "start"
	EndpointEnd   Endpoint = "end"
)

// ParseEndpoint accepts "start" or "end".
func ParseEndpoint(s string) (Endpoint, error) {
	switch Endpoint(s) {
	case EndpointStart, EndpointEnd:
		return Endpoint(s), nil
	default:
		return "", fmt.Errorf("unknown endpoint %q", s)
	}
}

// Range is the selected [Start, End) span in seconds.
type Range struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Length is End - Start.
func (r Range) Length() float64 {
	return r.End - r.Start
}

// Selector keeps the numeric range and the text shown for each endpoint in
// step. It holds 0 <= Start <= End <= Duration after every call.
type Selector struct {
	duration  float64
	rng       Range
	startText string
	endText   string
}

func NewSelector() *Selector {
	s := &Selector{}
	s.syncText()
	return s
}

// Reset sets a new duration and selects all of it.
func (s *Selector) Reset(duration float64) {
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		duration = 0
	}
	s.duration = duration
	s.rng = Range{Start: 0, End: duration}
	s.syncText()
}

func (s *Selector) Duration() float64 { return s.duration }

func (s *Selector) Range() Range { return s.rng }

// Text returns the displayed text for an endpoint.
func (s *Selector) Text(which Endpoint) string {
	if which == EndpointStart {
		return s.startText
	}
	return s.endText
}

// SetRange applies a slider drag. Values are clamped to [0, duration]. If
// they would invert, the handle that moved wins and the other collapses onto
// it; when both moved, start wins.
func (s *Selector) SetRange(start, end float64) {
	start = s.clamp(start)
	end = s.clamp(end)

	if start > end {
		endMoved := end != s.rng.End
		startMoved := start != s.rng.Start
		if endMoved && !startMoved {
			start = end
		} else {
			end = start
		}
	}

	s.rng = Range{Start: start, End: end}
	s.syncText()
}

// EditText stores in-progress text for an endpoint without applying it.
func (s *Selector) EditText(which Endpoint, text string) {
	if which == EndpointStart {
		s.startText = text
	} else {
		s.endText = text
	}
}

// SetManualTime parses text and applies it to one endpoint. On a parse
// failure the range is unchanged, the endpoint's text reverts to the last
// valid value and the *timecode.ParseError is returned. The other endpoint's
// text is rewritten only when that endpoint had to move.
func (s *Selector) SetManualTime(which Endpoint, text string) error {
	seconds, err := timecode.ParseSeconds(text)
	if err != nil {
		if which == EndpointStart {
			s.startText = timecode.FormatSeconds(s.rng.Start)
		} else {
			s.endText = timecode.FormatSeconds(s.rng.End)
		}
		return err
	}

	v := s.clamp(seconds)
	next := s.rng
	otherMoved := false

	if which == EndpointStart {
		next.Start = v
		if next.End < v {
			next.End = v
			otherMoved = true
		}
		s.startText = timecode.FormatSeconds(v)
		if otherMoved {
			s.endText = timecode.FormatSeconds(next.End)
		}
	} else {
		next.End = v
		if next.Start > v {
			next.Start = v
			otherMoved = true
		}
		s.endText = timecode.FormatSeconds(v)
		if otherMoved {
			s.startText = timecode.FormatSeconds(next.Start)
		}
	}

	s.rng = next
	return nil
}

func (s *Selector) clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > s.duration {
		return s.duration
	}
	return v
}

func (s *Selector) syncText() {
	s.startText = timecode.FormatSeconds(s.rng.Start)
	s.endText = timecode.FormatSeconds(s.rng.End)
}
