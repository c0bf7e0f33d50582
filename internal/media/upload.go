package media

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrTooLarge = errors.New("file exceeds upload limit")

// Save validates the kind of an incoming file and stores its bytes under dir.
// The returned SourceFile owns the stored copy; callers remove it with
// Remove once the file is superseded.
func Save(dir, name, mimeType string, r io.Reader, maxBytes int64) (SourceFile, error) {
	if mimeType == "" || mimeType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
			mimeType = byExt
		}
	}

	kind, err := DetectKind(name, mimeType)
	if err != nil {
		return SourceFile{}, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return SourceFile{}, fmt.Errorf("failed to create upload dir: %w", err)
	}

	src := SourceFile{
		Name:       filepath.Base(name),
		MIME:       mimeType,
		Kind:       kind,
		SelectedAt: time.Now(),
	}
	src.Path = filepath.Join(dir, "src-"+uuid.NewString()+src.Ext())

	f, err := os.OpenFile(src.Path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return SourceFile{}, fmt.Errorf("failed to create upload file: %w", err)
	}

	reader := r
	if maxBytes > 0 {
		reader = io.LimitReader(r, maxBytes+1)
	}
	n, err := io.Copy(f, reader)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(src.Path)
		return SourceFile{}, fmt.Errorf("failed to store upload: %w", err)
	}
	if maxBytes > 0 && n > maxBytes {
		os.Remove(src.Path)
		return SourceFile{}, ErrTooLarge
	}

	src.Size = n
	return src, nil
}

// Remove deletes the stored bytes. Missing files are not an error.
func (f SourceFile) Remove() error {
	if f.Path == "" {
		return nil
	}
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
