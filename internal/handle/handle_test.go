package handle

import (
	"errors"
	"sync"
	"testing"
)

func TestRegistry_AllocateResolveRelease(t *testing.T) {
	reg := NewRegistry(nil)

	h := reg.Allocate(Blob{Path: "/tmp/a.mp4", MIME: "video/mp4", Size: 10})
	if h.ID == "" {
		t.Fatal("handle ID is empty")
	}

	blob, err := reg.Resolve(h.ID)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if blob.Path != "/tmp/a.mp4" {
		t.Errorf("Resolve().Path = %q", blob.Path)
	}

	if err := reg.Release(h.ID); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	if _, err := reg.Resolve(h.ID); !errors.Is(err, ErrReleased) {
		t.Errorf("Resolve() after release error = %v, want ErrReleased", err)
	}
}

func TestRegistry_DoubleReleaseNotCounted(t *testing.T) {
	reg := NewRegistry(nil)
	h := reg.Allocate(Blob{})

	if err := reg.Release(h.ID); err != nil {
		t.Fatalf("first Release() error = %v", err)
	}
	if err := reg.Release(h.ID); !errors.Is(err, ErrReleased) {
		t.Fatalf("second Release() error = %v, want ErrReleased", err)
	}

	stats := reg.Stats()
	if stats.Allocated != 1 || stats.Released != 1 || stats.Live != 0 {
		t.Errorf("Stats() = %+v, want 1 allocated, 1 released, 0 live", stats)
	}
}

func TestRegistry_UnknownHandle(t *testing.T) {
	reg := NewRegistry(nil)

	if _, err := reg.Resolve("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve() error = %v, want ErrNotFound", err)
	}
	if err := reg.Release("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Release() error = %v, want ErrNotFound", err)
	}
}

func TestRegistry_DistinctIDs(t *testing.T) {
	reg := NewRegistry(nil)

	seen := make(map[string]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := reg.Allocate(Blob{})
			mu.Lock()
			seen[h.ID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != 50 {
		t.Errorf("got %d distinct handles, want 50", len(seen))
	}
	if got := reg.Stats().Live; got != 50 {
		t.Errorf("Stats().Live = %d, want 50", got)
	}
}
