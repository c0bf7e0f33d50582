package playback

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/heimdex/mediacrop/internal/media"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func withClock(s *Surface) (*Surface, *fakeClock) {
	c := &fakeClock{t: time.Unix(1000, 0)}
	s.now = c.now
	return s, c
}

func TestSurface_PlayAdvancesClock(t *testing.T) {
	s, clock := withClock(NewVideoSurface(60, 1))

	if err := s.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	clock.advance(5 * time.Second)

	if got := s.CurrentTime(); math.Abs(got-5) > 1e-9 {
		t.Errorf("CurrentTime() = %v, want 5", got)
	}

	s.Pause()
	clock.advance(10 * time.Second)
	if got := s.CurrentTime(); math.Abs(got-5) > 1e-9 {
		t.Errorf("CurrentTime() after pause = %v, want 5", got)
	}
}

func TestSurface_StopsAtEnd(t *testing.T) {
	s, clock := withClock(NewAudioSurface(3, 1))

	if err := s.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	clock.advance(10 * time.Second)

	if s.Playing() {
		t.Error("Playing() = true after running off the end")
	}
	if got := s.CurrentTime(); got != 3 {
		t.Errorf("CurrentTime() = %v, want 3", got)
	}

	// Playing again from the end restarts from zero.
	if err := s.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if got := s.CurrentTime(); got != 0 {
		t.Errorf("CurrentTime() after restart = %v, want 0", got)
	}
}

func TestSurface_SeekClamps(t *testing.T) {
	s, _ := withClock(NewVideoSurface(10, 1))

	s.Seek(-4)
	if got := s.CurrentTime(); got != 0 {
		t.Errorf("Seek(-4) -> %v, want 0", got)
	}
	s.Seek(99)
	if got := s.CurrentTime(); got != 10 {
		t.Errorf("Seek(99) -> %v, want 10", got)
	}
	s.Seek(math.NaN())
	if got := s.CurrentTime(); got != 0 {
		t.Errorf("Seek(NaN) -> %v, want 0", got)
	}
}

func TestSurface_Unplayable(t *testing.T) {
	s := NewVideoSurface(10, 0)
	if err := s.Play(); !errors.Is(err, ErrUnplayable) {
		t.Fatalf("Play() error = %v, want ErrUnplayable", err)
	}
	if s.Playing() {
		t.Error("Playing() = true after failed Play")
	}
}

func TestSurface_Variants(t *testing.T) {
	if got := NewVideoSurface(1, 1).Kind(); got != media.KindVideo {
		t.Errorf("video surface kind = %q", got)
	}
	if got := NewAudioSurface(1, 1).Kind(); got != media.KindAudio {
		t.Errorf("audio surface kind = %q", got)
	}
	if got := NewAudioSurface(math.Inf(1), 1).Duration(); got != 0 {
		t.Errorf("infinite duration surface = %v, want 0", got)
	}
}

func TestSurface_Mute(t *testing.T) {
	s := NewAudioSurface(1, 1)
	s.SetMuted(true)
	if !s.Muted() {
		t.Error("Muted() = false after SetMuted(true)")
	}
}
