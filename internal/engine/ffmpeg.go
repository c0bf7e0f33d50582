package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/heimdex/mediacrop/internal/logging"
)

const (
	maxStderrBytes = 8 * 1024 // tail of stderr kept for diagnostics

	DefaultInitTimeout = 15 * time.Second
)

// Config holds the ffmpeg engine's configuration.
type Config struct {
	BinaryPath  string        // ffmpeg path; empty = look up on PATH
	WorkDir     string        // parent of per-call sandbox dirs
	InitTimeout time.Duration // bound on the version probe
	Logger      *slog.Logger
}

// FFmpeg runs cuts through the ffmpeg binary. Each cut runs in its own
// sandbox directory that is removed afterwards.
type FFmpeg struct {
	cfg Config

	mu      sync.Mutex
	path    string
	version string
	ready   bool
	initErr error
	initing chan struct{}
}

func NewFFmpeg(cfg Config) *FFmpeg {
	if cfg.InitTimeout <= 0 {
		cfg.InitTimeout = DefaultInitTimeout
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	return &FFmpeg{cfg: cfg}
}

// Initialize locates ffmpeg and checks that it starts. Concurrent callers
// share a single attempt; once ready, further calls return immediately. A
// failed attempt is remembered until Initialize is called again.
func (f *FFmpeg) Initialize(ctx context.Context) error {
	f.mu.Lock()
	if f.ready {
		f.mu.Unlock()
		return nil
	}
	if wait := f.initing; wait != nil {
		f.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.ready {
			return nil
		}
		return f.initErr
	}
	done := make(chan struct{})
	f.initing = done
	f.mu.Unlock()

	version, path, err := f.probeBinary(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.initing = nil
	close(done)

	if err != nil {
		f.initErr = &InitError{Err: err}
		f.cfg.Logger.Error("processing engine failed to start", "error", err)
		return f.initErr
	}

	f.path = path
	f.version = version
	f.ready = true
	f.initErr = nil
	f.cfg.Logger.Info("processing engine ready", "binary", path, "version", version)
	return nil
}

func (f *FFmpeg) probeBinary(ctx context.Context) (version, path string, err error) {
	path, err = resolveBinary(f.cfg.BinaryPath, "ffmpeg")
	if err != nil {
		return "", "", err
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.InitTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "-hide_banner", "-version").Output()
	if err != nil {
		return "", "", fmt.Errorf("%s -version: %w", path, err)
	}

	first, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(first), path, nil
}

func (f *FFmpeg) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *FFmpeg) InitError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initErr
}

// Version returns the first line of ffmpeg -version once initialized.
func (f *FFmpeg) Version() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version
}

// Cut performs a stream-copy trim. There is no timeout here: the caller's
// context is the only way to stop a running cut.
func (f *FFmpeg) Cut(ctx context.Context, req CutRequest, progress ProgressFunc) error {
	f.mu.Lock()
	ready, binary := f.ready, f.path
	f.mu.Unlock()
	if !ready {
		return ErrNotReady
	}
	if req.Duration <= 0 {
		return fmt.Errorf("cut duration must be positive, got %v", req.Duration)
	}

	if err := os.MkdirAll(f.cfg.WorkDir, 0o755); err != nil {
		return fmt.Errorf("cannot create work dir: %w", err)
	}
	sandbox, err := os.MkdirTemp(f.cfg.WorkDir, "cut-")
	if err != nil {
		return fmt.Errorf("cannot create sandbox: %w", err)
	}
	defer os.RemoveAll(sandbox)

	ext := req.Ext
	if ext == "" {
		ext = filepath.Ext(req.InputPath)
	}
	inputName, outputName := "input"+ext, "output"+ext

	if err := linkOrCopy(req.InputPath, filepath.Join(sandbox, inputName)); err != nil {
		return fmt.Errorf("cannot stage input: %w", err)
	}

	args := cutArgs(inputName, outputName, req.Start, req.Duration)
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = sandbox
	cmd.Stdout = io.Discard

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	f.cfg.Logger.Info("executing cut",
		"start", FormatArgSeconds(req.Start),
		"duration", FormatArgSeconds(req.Duration),
		"args", args,
	)
	started := time.Now()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	var tail bytes.Buffer
	newProgressParser(req.Duration).stream(stderr, &limitedWriter{w: &tail, limit: maxStderrBytes}, progress)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.cfg.Logger.Warn("cut failed",
			"error", err,
			"duration_ms", time.Since(started).Milliseconds(),
			"stderr_tail", truncate(tail.String(), 512),
		)
		return fmt.Errorf("ffmpeg exited: %w: %s", err, truncate(strings.TrimSpace(tail.String()), 512))
	}

	out := filepath.Join(sandbox, outputName)
	info, err := os.Stat(out)
	if err != nil {
		return fmt.Errorf("ffmpeg produced no output: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("ffmpeg produced an empty output")
	}

	if err := moveFile(out, req.OutputPath); err != nil {
		return fmt.Errorf("cannot store output: %w", err)
	}

	f.cfg.Logger.Info("cut completed",
		"duration_ms", time.Since(started).Milliseconds(),
		"bytes", info.Size(),
	)
	return nil
}

// resolveBinary finds name on PATH unless a preferred path is configured.
func resolveBinary(preferred, name string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured %s %q not found", name, preferred)
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found on PATH: %w", name, err)
	}
	return p, nil
}

func linkOrCopy(src, dst string) error {
	if err := os.Link(src, dst); err == nil {
		return nil
	}
	return copyFile(src, dst)
}

func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter keeps only the last limit bytes written to it.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
