package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Stream is one elementary stream as reported by ffprobe.
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Duration  string `json:"duration,omitempty"`
}

// Format is the container section of ffprobe output.
type Format struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

type ProbeResult struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Duration returns the container duration in seconds. ok is false when the
// duration is missing, unparsable, infinite or negative; such sources cannot
// be trimmed.
func (pr *ProbeResult) Duration() (seconds float64, ok bool) {
	raw := strings.TrimSpace(pr.Format.Duration)
	if raw == "" || raw == "N/A" {
		return 0, false
	}
	d, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return 0, false
	}
	return d, true
}

func (pr *ProbeResult) countType(codecType string) int {
	n := 0
	for _, s := range pr.Streams {
		if s.CodecType == codecType {
			n++
		}
	}
	return n
}

// VideoStreams counts video streams, ignoring attached cover art.
func (pr *ProbeResult) VideoStreams() int {
	n := 0
	for _, s := range pr.Streams {
		if s.CodecType == "video" && s.CodecName != "mjpeg" && s.CodecName != "png" {
			n++
		}
	}
	return n
}

func (pr *ProbeResult) AudioStreams() int { return pr.countType("audio") }

// FFprobe is the ffprobe-backed Prober.
type FFprobe struct {
	path string
}

// NewFFprobe resolves the ffprobe binary, preferring a configured path.
func NewFFprobe(preferred string) (*FFprobe, error) {
	path, err := resolveBinary(preferred, "ffprobe")
	if err != nil {
		return nil, err
	}
	return &FFprobe{path: path}, nil
}

func (p *FFprobe) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, p.path,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderr, limit: maxStderrBytes}

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w: %s", err, truncate(stderr.String(), 512))
	}

	return parseProbeOutput(out)
}

func parseProbeOutput(data []byte) (*ProbeResult, error) {
	var pr ProbeResult
	if err := json.Unmarshal(data, &pr); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return &pr, nil
}
