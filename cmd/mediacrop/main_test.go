package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/heimdex/mediacrop/internal/editor"
	"github.com/heimdex/mediacrop/internal/engine"
	"github.com/heimdex/mediacrop/internal/media"
	"github.com/heimdex/mediacrop/internal/timecode"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()
	want := []string{"serve", "cut", "probe", "version"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "mediacrop ") {
		t.Errorf("version output = %q", out.String())
	}
}

func TestCutRequiresFile(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"cut", "--start", "00:00:01"})

	if err := root.Execute(); err == nil {
		t.Fatal("expected an error without a FILE argument")
	}
}

func TestPlanCut(t *testing.T) {
	tests := []struct {
		name      string
		duration  float64
		start     string
		end       string
		want      editor.Range
		wantErr   error
		wantParse bool
	}{
		{name: "whole file", duration: 125, want: editor.Range{Start: 0, End: 125}},
		{name: "both set", duration: 125, start: "00:00:10", end: "00:00:40", want: editor.Range{Start: 10, End: 40}},
		{name: "end clamped", duration: 125, start: "00:01:00", end: "01:00:00", want: editor.Range{Start: 60, End: 125}},
		{name: "end before start collapses", duration: 125, start: "00:00:40", end: "00:00:10", wantErr: editor.ErrEmptyRange},
		{name: "bad start", duration: 125, start: "1:2", wantParse: true},
		{name: "zero duration", duration: 0, wantErr: editor.ErrEmptyRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := planCut(tt.duration, tt.start, tt.end)
			if tt.wantParse {
				var pe *timecode.ParseError
				if !errors.As(err, &pe) {
					t.Fatalf("err = %v, want ParseError", err)
				}
				return
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("planCut: %v", err)
			}
			if got != tt.want {
				t.Errorf("range = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLocalSource(t *testing.T) {
	src, err := localSource("/music/Song One.mp3", 42)
	if err != nil {
		t.Fatalf("localSource: %v", err)
	}
	if src.Kind != media.KindAudio {
		t.Errorf("kind = %q, want audio", src.Kind)
	}
	if src.OutputName() != "cropped_Song One.mp3" {
		t.Errorf("output name = %q", src.OutputName())
	}

	if _, err := localSource("/docs/notes.txt", 1); !errors.Is(err, media.ErrUnsupportedFileType) {
		t.Errorf("err = %v, want ErrUnsupportedFileType", err)
	}
}

func TestSameFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.mp4")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	if !sameFile(path, filepath.Join(dir, ".", "a.mp4")) {
		t.Error("expected equivalent paths to match")
	}
	if sameFile(path, filepath.Join(dir, "b.mp4")) {
		t.Error("different paths should not match")
	}
}

func TestWriteProbe(t *testing.T) {
	pr := &engine.ProbeResult{
		Streams: []engine.Stream{
			{Index: 0, CodecName: "h264", CodecType: "video", Width: 1920, Height: 1080, Duration: "125.000000"},
			{Index: 1, CodecName: "aac", CodecType: "audio", Duration: "124.980000"},
		},
		Format: engine.Format{FormatName: "mov,mp4", Duration: "125.000000", Size: "1048576", BitRate: "128000"},
	}

	var out bytes.Buffer
	writeProbe(&out, pr)
	text := out.String()

	for _, want := range []string{"mov,mp4", "00:02:05.00", "1.0 MB", "1 video, 1 audio", "1920x1080", "aac"} {
		if !strings.Contains(text, want) {
			t.Errorf("probe output missing %q:\n%s", want, text)
		}
	}
}

func TestWriteProbeUnknownDuration(t *testing.T) {
	var out bytes.Buffer
	writeProbe(&out, &engine.ProbeResult{Format: engine.Format{Duration: "N/A"}})
	if !strings.Contains(out.String(), "Duration: unknown") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRenderTableEmptyHeaders(t *testing.T) {
	if got := renderTable(nil, [][]string{{"a"}}, nil); got != "" {
		t.Errorf("renderTable = %q, want empty", got)
	}
}

func TestPainterDisabledForBuffers(t *testing.T) {
	p := newPainter(&bytes.Buffer{})
	if got := p.ok("done"); got != "done" {
		t.Errorf("painted = %q, want plain text", got)
	}
}

func TestLogLevelFlagWins(t *testing.T) {
	cfgFlag, level := "", ""
	cc := newCommandContext(&cfgFlag, &level)
	if got := cc.logLevel("info"); got != "info" {
		t.Errorf("logLevel = %q, want fallback", got)
	}
	level = "debug"
	if got := cc.logLevel("info"); got != "debug" {
		t.Errorf("logLevel = %q, want flag value", got)
	}
}

func TestKeyframeNote(t *testing.T) {
	if note := keyframeNote(media.KindVideo); !strings.Contains(note, "keyframe") {
		t.Errorf("video note = %q", note)
	}
	if note := keyframeNote(media.KindAudio); note != "" {
		t.Errorf("audio note = %q, want empty", note)
	}
}
