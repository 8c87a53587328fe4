package lifecycle

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotMP4 is returned by CheckMP4 for files that are not MP4 videos.
var ErrNotMP4 = errors.New("file is not an mp4 video")

// Video is the file the user selected. It is never modified after creation.
type Video struct {
	Name        string
	ContentType string
	Size        int64

	path string
	data []byte
}

// NewFileVideo refers to an upload spooled to disk at path.
func NewFileVideo(name, contentType, path string, size int64) *Video {
	return &Video{Name: name, ContentType: contentType, Size: size, path: path}
}

// NewMemoryVideo wraps bytes already in memory.
func NewMemoryVideo(name, contentType string, data []byte) *Video {
	return &Video{Name: name, ContentType: contentType, Size: int64(len(data)), data: data}
}

// Open returns a fresh reader over the video bytes.
func (v *Video) Open() (io.ReadCloser, error) {
	if v.path == "" {
		return io.NopCloser(bytes.NewReader(v.data)), nil
	}
	f, err := os.Open(v.path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", v.Name, err)
	}
	return f, nil
}

// Discard removes the spooled file, if any. Readers opened before Discard
// keep working on platforms that allow unlinking open files.
func (v *Video) Discard() error {
	if v == nil || v.path == "" {
		return nil
	}
	if err := os.Remove(v.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// CheckMP4 verifies the extension and the sniffed content of a video.
// head should hold the first bytes of the file (512 are enough).
func CheckMP4(name string, head []byte) error {
	if !strings.EqualFold(filepath.Ext(name), ".mp4") {
		return fmt.Errorf("%w: extension of %q", ErrNotMP4, name)
	}
	if ct := http.DetectContentType(head); ct != "video/mp4" {
		return fmt.Errorf("%w: detected %s", ErrNotMP4, ct)
	}
	return nil
}
