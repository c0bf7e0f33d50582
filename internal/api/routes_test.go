package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/heimdex/mediacrop/internal/db"
	"github.com/heimdex/mediacrop/internal/editor"
	"github.com/heimdex/mediacrop/internal/engine"
	"github.com/heimdex/mediacrop/internal/handle"
	"github.com/heimdex/mediacrop/internal/history"
	"github.com/heimdex/mediacrop/internal/playback"
)

type fakeEngine struct {
	mu      sync.Mutex
	ready   bool
	initErr error
	calls   []engine.CutRequest
}

func (f *fakeEngine) Initialize(ctx context.Context) error { return f.initErr }

func (f *fakeEngine) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeEngine) InitError() error { return f.initErr }

func (f *fakeEngine) Version() string { return "ffmpeg version 7.1-test" }

func (f *fakeEngine) Cut(ctx context.Context, req engine.CutRequest, progress engine.ProgressFunc) error {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	progress(50)
	return os.WriteFile(req.OutputPath, []byte("0123456789"), 0o600)
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeProber struct {
	result *engine.ProbeResult
}

func (p *fakeProber) Probe(ctx context.Context, path string) (*engine.ProbeResult, error) {
	if p.result == nil {
		return nil, errors.New("no metadata")
	}
	return p.result, nil
}

type testServer struct {
	router http.Handler
	engine *fakeEngine
	prober *fakeProber
	store  *editor.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	database, err := db.New(db.MemoryDSN, logger)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	dir := t.TempDir()
	registry := handle.NewRegistry(logger)
	hist := history.NewLog(history.NewRepository(database.Conn()), logger)
	eng := &fakeEngine{ready: true}
	prober := &fakeProber{result: &engine.ProbeResult{
		Streams: []engine.Stream{{CodecName: "h264", CodecType: "video"}, {CodecName: "aac", CodecType: "audio"}},
		Format:  engine.Format{Duration: "125.000000"},
	}}
	store := editor.NewStore(context.Background(), editor.Deps{
		Registry:  registry,
		Engine:    eng,
		Log:       hist,
		OutputDir: dir,
		Logger:    logger,
	})
	t.Cleanup(store.Close)

	cfg := ServerConfig{
		Store:          store,
		Registry:       registry,
		Engine:         eng,
		Prober:         prober,
		MediaServer:    playback.NewServer(logger),
		History:        hist,
		UploadDir:      dir,
		MaxUploadBytes: 1 << 20,
		Logger:         logger,
		StartTime:      time.Now(),
		Version:        "test",
	}
	return &testServer{router: NewRouter(cfg), engine: eng, prober: prober, store: store}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "127.0.0.1:40000"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) upload(t *testing.T, sessionID, name, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sessionID+"/file", &buf)
	req.RemoteAddr = "127.0.0.1:40000"
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func decodeState(t *testing.T, rr *httptest.ResponseRecorder) StateResponse {
	t.Helper()
	var st StateResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode state %q: %v", rr.Body.String(), err)
	}
	return st
}

func (ts *testServer) newSession(t *testing.T) string {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/api/sessions", nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create session status = %d", rr.Code)
	}
	return decodeState(t, rr).ID
}

func TestHealthAndPage(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("health status = %d", rr.Code)
	}
	if body := decodeJSONBody(t, rr); body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("health = %v", body)
	}

	rr = ts.do(t, http.MethodGet, "/", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "<title>Media Crop</title>") {
		t.Errorf("page status = %d", rr.Code)
	}
}

func TestPageEditorControls(t *testing.T) {
	ts := newTestServer(t)

	body := ts.do(t, http.MethodGet, "/", nil).Body.String()
	for _, want := range []string{
		`id="drop"`,
		`addEventListener('drop'`,
		`/file'`,
		`id="keyframeNote"`,
		"keyframe just before the chosen start",
		`id="currentSeek"`,
		"st.playback.current_time",
		`id="total"`,
		"st.duration",
		`id="finalDuration"`,
		"st.range.end - st.range.start",
		"Change File",
		`call('DELETE', '/api/sessions/' + sessionId)`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestStatusEngineStates(t *testing.T) {
	tests := []struct {
		name    string
		ready   bool
		initErr error
		want    string
	}{
		{"ready", true, nil, EngineStateReady},
		{"initializing", false, nil, EngineStateInitializing},
		{"failed", false, &engine.InitError{Err: errors.New("ffmpeg not found")}, EngineStateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.engine.ready = tt.ready
			ts.engine.initErr = tt.initErr

			rr := ts.do(t, http.MethodGet, "/api/status", nil)
			var resp StatusResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Engine.State != tt.want {
				t.Errorf("engine state = %s, want %s", resp.Engine.State, tt.want)
			}
			if tt.initErr != nil && !strings.Contains(resp.Engine.Error, "failed to start") {
				t.Errorf("engine error = %q", resp.Engine.Error)
			}
			if resp.History == nil {
				t.Error("history counts missing")
			}
		})
	}
}

func TestSessionExportFlow(t *testing.T) {
	ts := newTestServer(t)
	id := ts.newSession(t)
	base := "/api/sessions/" + id

	rr := ts.upload(t, id, "clip.mp4", "video/mp4", []byte("fake mp4 bytes"))
	if rr.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", rr.Code, rr.Body.String())
	}
	st := decodeState(t, rr)
	if st.Duration != 125 || st.EndText != "00:02:05.00" || st.SourceURL == "" {
		t.Fatalf("state after upload = %+v", st)
	}

	rr = ts.do(t, http.MethodPut, base+"/range", map[string]float64{"start": 10, "end": 40})
	if st = decodeState(t, rr); st.Range != (editor.Range{Start: 10, End: 40}) {
		t.Fatalf("range = %+v", st.Range)
	}

	rr = ts.do(t, http.MethodPost, base+"/export", nil)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("export status = %d: %s", rr.Code, rr.Body.String())
	}

	deadline := time.Now().Add(5 * time.Second)
	for st.Export.State != editor.ExportReady {
		if time.Now().After(deadline) {
			t.Fatalf("export did not finish: %+v", st.Export)
		}
		time.Sleep(10 * time.Millisecond)
		st = decodeState(t, ts.do(t, http.MethodGet, base+"/state", nil))
	}

	if st.ResultURL == "" || st.ResultURL == st.SourceURL {
		t.Fatalf("result url = %q, source url = %q", st.ResultURL, st.SourceURL)
	}
	if got := engine.FormatArgSeconds(ts.engine.calls[0].Duration); got != "30.000" {
		t.Errorf("cut duration = %s, want 30.000", got)
	}

	req := httptest.NewRequest(http.MethodGet, st.ResultURL+"?download=1", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	req.Header.Set("Range", "bytes=2-5")
	rr = httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusPartialContent || rr.Body.String() != "2345" {
		t.Errorf("media = %d %q", rr.Code, rr.Body.String())
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "cropped_clip.mp4") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	rr = ts.do(t, http.MethodGet, base+"/exports", nil)
	var jobs JobsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &jobs); err != nil {
		t.Fatal(err)
	}
	if len(jobs.Jobs) != 1 || jobs.Jobs[0].Status != history.JobStatusCompleted || jobs.Jobs[0].Start != "00:00:10.00" {
		t.Errorf("jobs = %+v", jobs.Jobs)
	}

	rr = ts.do(t, http.MethodDelete, base+"/export", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rr.Code)
	}
	if rr = ts.do(t, http.MethodGet, st.ResultURL, nil); rr.Code != http.StatusGone {
		t.Errorf("released result status = %d, want 410", rr.Code)
	}

	if rr = ts.do(t, http.MethodDelete, base, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("delete session status = %d", rr.Code)
	}
	if rr = ts.do(t, http.MethodGet, base+"/state", nil); rr.Code != http.StatusNotFound {
		t.Errorf("state after delete = %d, want 404", rr.Code)
	}
	if rr = ts.do(t, http.MethodGet, st.SourceURL, nil); rr.Code != http.StatusGone {
		t.Errorf("source after delete = %d, want 410", rr.Code)
	}
}

func TestUploadUnsupportedType(t *testing.T) {
	ts := newTestServer(t)
	id := ts.newSession(t)

	rr := ts.upload(t, id, "notes.txt", "text/plain", []byte("hello"))
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415", rr.Code)
	}
	if body := decodeJSONBody(t, rr); body["code"] != "UNSUPPORTED_FILE_TYPE" {
		t.Errorf("code = %v", body["code"])
	}
}

func TestUploadTooLarge(t *testing.T) {
	ts := newTestServer(t)
	id := ts.newSession(t)

	rr := ts.upload(t, id, "big.mp4", "video/mp4", bytes.Repeat([]byte("x"), 2<<20))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rr.Code)
	}
}

func TestUploadProbeFailureIsWarning(t *testing.T) {
	ts := newTestServer(t)
	ts.prober.result = nil
	id := ts.newSession(t)

	rr := ts.upload(t, id, "song.mp3", "audio/mpeg", []byte("id3"))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	st := decodeState(t, rr)
	if st.Warning == "" || st.File == nil {
		t.Errorf("state = %+v, want file selected with warning", st)
	}
}

func TestSetEndpoint(t *testing.T) {
	ts := newTestServer(t)
	id := ts.newSession(t)
	base := "/api/sessions/" + id
	ts.upload(t, id, "clip.mp4", "video/mp4", []byte("x"))

	rr := ts.do(t, http.MethodPut, base+"/range/start", EndpointRequest{Text: "00:00:12.5"})
	st := decodeState(t, rr)
	if st.Range.Start != 12.5 || st.StartText != "00:00:12.50" {
		t.Fatalf("state = %+v", st)
	}

	rr = ts.do(t, http.MethodPut, base+"/range/end", EndpointRequest{Text: "00:00:1", Draft: true})
	if st = decodeState(t, rr); st.EndText != "00:00:1" || st.Range.End != 125 {
		t.Fatalf("draft state = %+v", st)
	}

	rr = ts.do(t, http.MethodPut, base+"/range/end", EndpointRequest{Text: "1:2:3"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
	var errResp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &errResp); err != nil {
		t.Fatal(err)
	}
	if errResp.Code != "PARSE_ERROR" || errResp.State == nil || errResp.State.EndText != "00:02:05.00" {
		t.Errorf("error response = %+v", errResp)
	}

	if rr = ts.do(t, http.MethodPut, base+"/range/middle", EndpointRequest{Text: "00:00:01"}); rr.Code != http.StatusNotFound {
		t.Errorf("unknown endpoint status = %d", rr.Code)
	}
}

func TestExportPreconditionErrors(t *testing.T) {
	t.Run("no file", func(t *testing.T) {
		ts := newTestServer(t)
		id := ts.newSession(t)
		rr := ts.do(t, http.MethodPost, "/api/sessions/"+id+"/export", nil)
		if rr.Code != http.StatusConflict || decodeJSONBody(t, rr)["code"] != "NO_FILE" {
			t.Errorf("status = %d body = %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("engine not ready", func(t *testing.T) {
		ts := newTestServer(t)
		ts.engine.ready = false
		id := ts.newSession(t)
		ts.upload(t, id, "clip.mp4", "video/mp4", []byte("x"))
		rr := ts.do(t, http.MethodPost, "/api/sessions/"+id+"/export", nil)
		if rr.Code != http.StatusConflict || decodeJSONBody(t, rr)["code"] != "ENGINE_NOT_READY" {
			t.Errorf("status = %d body = %s", rr.Code, rr.Body.String())
		}
		if ts.engine.callCount() != 0 {
			t.Error("engine must not be called")
		}
	})

	t.Run("empty range", func(t *testing.T) {
		ts := newTestServer(t)
		id := ts.newSession(t)
		ts.upload(t, id, "clip.mp4", "video/mp4", []byte("x"))
		ts.do(t, http.MethodPut, "/api/sessions/"+id+"/range", map[string]float64{"start": 30, "end": 30})
		rr := ts.do(t, http.MethodPost, "/api/sessions/"+id+"/export", nil)
		if rr.Code != http.StatusUnprocessableEntity || decodeJSONBody(t, rr)["code"] != "EMPTY_RANGE" {
			t.Errorf("status = %d body = %s", rr.Code, rr.Body.String())
		}
		if ts.engine.callCount() != 0 {
			t.Error("engine must not be called")
		}
	})

	t.Run("clear without result", func(t *testing.T) {
		ts := newTestServer(t)
		id := ts.newSession(t)
		rr := ts.do(t, http.MethodDelete, "/api/sessions/"+id+"/export", nil)
		if rr.Code != http.StatusNotFound || decodeJSONBody(t, rr)["code"] != "NO_RESULT" {
			t.Errorf("status = %d body = %s", rr.Code, rr.Body.String())
		}
	})
}

func TestPlaybackActions(t *testing.T) {
	ts := newTestServer(t)
	id := ts.newSession(t)
	base := "/api/sessions/" + id

	rr := ts.do(t, http.MethodPost, base+"/playback/play", nil)
	if rr.Code != http.StatusOK || decodeState(t, rr).Warning == "" {
		t.Errorf("play without media should warn: %d %s", rr.Code, rr.Body.String())
	}

	ts.upload(t, id, "clip.mp4", "video/mp4", []byte("x"))

	if st := decodeState(t, ts.do(t, http.MethodPost, base+"/playback/play", nil)); !st.Playback.IsPlaying || st.Warning != "" {
		t.Errorf("play state = %+v", st.Playback)
	}
	if st := decodeState(t, ts.do(t, http.MethodPost, base+"/playback/pause", nil)); st.Playback.IsPlaying {
		t.Error("expected paused")
	}
	if st := decodeState(t, ts.do(t, http.MethodPost, base+"/playback/mute", nil)); !st.Playback.IsMuted {
		t.Error("expected muted")
	}
	if st := decodeState(t, ts.do(t, http.MethodPut, base+"/playback/seek", map[string]float64{"time": 500})); st.Playback.CurrentTime != 125 {
		t.Errorf("seek clamped to %v, want 125", st.Playback.CurrentTime)
	}
	if rr := ts.do(t, http.MethodPost, base+"/playback/rewind", nil); rr.Code != http.StatusNotFound {
		t.Errorf("unknown action status = %d", rr.Code)
	}
}

func TestMediaUnknownHandle(t *testing.T) {
	ts := newTestServer(t)
	if rr := ts.do(t, http.MethodGet, "/api/media/does-not-exist", nil); rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}
