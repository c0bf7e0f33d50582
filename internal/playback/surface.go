package playback

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/heimdex/mediacrop/internal/media"
)

var ErrUnplayable = errors.New("media has no playable stream")

// Surface is a virtual playback element. It keeps the position on a clock the
// same way a media element would, so the session can report current time
// without a real decoder. Use NewVideoSurface or NewAudioSurface.
type Surface struct {
	kind     media.Kind
	playable bool
	duration float64
	now      func() time.Time

	mu        sync.Mutex
	playing   bool
	muted     bool
	position  float64
	startedAt time.Time
}

// NewVideoSurface builds a surface that can only play when at least one video
// stream was found.
func NewVideoSurface(duration float64, videoStreams int) *Surface {
	return newSurface(media.KindVideo, duration, videoStreams > 0)
}

// NewAudioSurface builds a surface that can only play when at least one audio
// stream was found.
func NewAudioSurface(duration float64, audioStreams int) *Surface {
	return newSurface(media.KindAudio, duration, audioStreams > 0)
}

func newSurface(kind media.Kind, duration float64, playable bool) *Surface {
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		duration = 0
	}
	return &Surface{kind: kind, playable: playable, duration: duration, now: time.Now}
}

func (s *Surface) Kind() media.Kind { return s.kind }

func (s *Surface) Duration() float64 { return s.duration }

func (s *Surface) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playable {
		return ErrUnplayable
	}
	if s.playing {
		return nil
	}
	if s.position >= s.duration {
		s.position = 0
	}
	s.playing = true
	s.startedAt = s.now()
	return nil
}

func (s *Surface) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.position = s.positionLocked()
	s.playing = false
}

func (s *Surface) Seek(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.position = clamp(t, 0, s.duration)
	if s.playing {
		s.startedAt = s.now()
	}
}

func (s *Surface) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.positionLocked()
	if s.playing && pos >= s.duration {
		s.playing = false
		s.position = s.duration
	}
	return pos
}

// Playing reports false once playback has run off the end.
func (s *Surface) Playing() bool {
	s.CurrentTime()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *Surface) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
}

func (s *Surface) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *Surface) positionLocked() float64 {
	if !s.playing {
		return s.position
	}
	elapsed := s.now().Sub(s.startedAt).Seconds()
	return clamp(s.position+elapsed, 0, s.duration)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
