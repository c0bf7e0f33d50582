package media

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
)

var ErrUnsupportedFileType = errors.New("unsupported file type: please upload a valid MP3 or MP4 file")

type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

const (
	DefaultVideoMIME = "video/mp4"
	DefaultAudioMIME = "audio/mpeg"

	OutputPrefix = "cropped_"
)

// SourceFile is a selected upload. It is never mutated; selecting another
// file replaces it.
type SourceFile struct {
	Path       string    `json:"-"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	MIME       string    `json:"mime"`
	Kind       Kind      `json:"kind"`
	SelectedAt time.Time `json:"selected_at"`
}

// Ext returns the container extension the engine should use for this file.
func (f SourceFile) Ext() string {
	if f.Kind == KindVideo {
		return ".mp4"
	}
	return ".mp3"
}

// OutputMIME mirrors the input type, falling back by kind.
func (f SourceFile) OutputMIME() string {
	if f.MIME != "" && f.MIME != "application/octet-stream" {
		return f.MIME
	}
	if f.Kind == KindVideo {
		return DefaultVideoMIME
	}
	return DefaultAudioMIME
}

// OutputName is the download name for a cut of this file.
func (f SourceFile) OutputName() string {
	name := SanitizeName(filepath.Base(f.Name), 200)
	if name == "" || name == "." {
		name = "media" + f.Ext()
	}
	return OutputPrefix + name
}

// DetectKind classifies an upload by MIME type and file name. MP4 and any
// video type are video; MP3, MPEG and any audio type are audio.
func DetectKind(name, mimeType string) (Kind, error) {
	typ := strings.ToLower(mimeType)
	lower := strings.ToLower(name)

	switch {
	case strings.Contains(typ, "mp4") || strings.Contains(typ, "video") || strings.HasSuffix(lower, ".mp4"):
		return KindVideo, nil
	case strings.Contains(typ, "mp3") || strings.Contains(typ, "mpeg") || strings.Contains(typ, "audio") || strings.HasSuffix(lower, ".mp3"):
		return KindAudio, nil
	default:
		return "", ErrUnsupportedFileType
	}
}
