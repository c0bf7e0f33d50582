package editor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/heimdex/mediacrop/internal/engine"
	"github.com/heimdex/mediacrop/internal/handle"
	"github.com/heimdex/mediacrop/internal/media"
)

type fakeEngine struct {
	mu       sync.Mutex
	ready    bool
	calls    []engine.CutRequest
	progress []int
	err      error
	block    chan struct{}
}

func (f *fakeEngine) Initialize(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = true
	return nil
}

func (f *fakeEngine) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeEngine) InitError() error {
	if f.Ready() {
		return nil
	}
	return &engine.InitError{Err: errors.New("not started")}
}

func (f *fakeEngine) Cut(ctx context.Context, req engine.CutRequest, progress engine.ProgressFunc) error {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	steps := f.progress
	err := f.err
	block := f.block
	f.mu.Unlock()

	for _, p := range steps {
		if progress != nil {
			progress(p)
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		_ = os.WriteFile(req.OutputPath, []byte("partial"), 0o600)
		return err
	}
	return os.WriteFile(req.OutputPath, []byte("cut bytes"), 0o600)
}

func (f *fakeEngine) Calls() []engine.CutRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.CutRequest(nil), f.calls...)
}

type fakeProber struct {
	result *engine.ProbeResult
	err    error
}

func (p *fakeProber) Probe(ctx context.Context, path string) (*engine.ProbeResult, error) {
	return p.result, p.err
}

func videoProbe(duration string) *engine.ProbeResult {
	return &engine.ProbeResult{
		Streams: []engine.Stream{
			{Index: 0, CodecName: "h264", CodecType: "video"},
			{Index: 1, CodecName: "aac", CodecType: "audio"},
		},
		Format: engine.Format{FormatName: "mov,mp4,m4a,3gp,3g2,mj2", Duration: duration},
	}
}

type fakeLog struct {
	mu       sync.Mutex
	started  []ExportJob
	progress map[string][]int
	finished map[string]error
}

func newFakeLog() *fakeLog {
	return &fakeLog{progress: make(map[string][]int), finished: make(map[string]error)}
}

func (l *fakeLog) ExportStarted(ctx context.Context, job ExportJob) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, job)
	return nil
}

func (l *fakeLog) ExportProgress(ctx context.Context, jobID string, percent int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.progress[jobID] = append(l.progress[jobID], percent)
	return nil
}

func (l *fakeLog) ExportFinished(ctx context.Context, jobID string, result *ExportResult, err error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finished[jobID] = err
	return nil
}

type testEnv struct {
	session  *Session
	registry *handle.Registry
	engine   *fakeEngine
	log      *fakeLog
	dir      string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		registry: handle.NewRegistry(logger),
		engine:   &fakeEngine{ready: true},
		log:      newFakeLog(),
		dir:      dir,
	}
	env.session = NewSession(context.Background(), "sess-1", Deps{
		Registry:  env.registry,
		Engine:    env.engine,
		Log:       env.log,
		OutputDir: dir,
		Logger:    logger,
	})
	t.Cleanup(env.session.Teardown)
	return env
}

// sourceFile writes a stand-in upload and returns its SourceFile.
func (env *testEnv) sourceFile(t *testing.T, name string, kind media.Kind) media.SourceFile {
	t.Helper()

	path := filepath.Join(env.dir, "src-"+name)
	if err := os.WriteFile(path, []byte("source bytes"), 0o600); err != nil {
		t.Fatal(err)
	}
	mimeType := media.DefaultVideoMIME
	if kind == media.KindAudio {
		mimeType = media.DefaultAudioMIME
	}
	return media.SourceFile{Path: path, Name: name, Size: 12, MIME: mimeType, Kind: kind}
}
