// Package upload stages inbound image payloads in ephemeral storage until
// the analysis invoker consumes them.
package upload

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	base36Alphabet  = "0123456789abcdefghijklmnopqrstuvwxyz"
	keySuffixLength = 4
)

// ErrEmptyPayload is returned by Store when the upload carries no bytes.
var ErrEmptyPayload = errors.New("no image file provided")

// Staged describes one staged upload awaiting analysis.
type Staged struct {
	Path             string
	OriginalFilename string
	CreatedAt        time.Time
}

// Remove deletes the staged file. Missing files are ignored.
func (s Staged) Remove() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Receiver writes inbound payloads into the staging directory.
type Receiver struct {
	dir string
}

// NewReceiver creates a receiver rooted at dir, creating it if needed.
func NewReceiver(dir string) (*Receiver, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("upload dir is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Receiver{dir: abs}, nil
}

// Dir returns the staging directory.
func (r *Receiver) Dir() string {
	return r.dir
}

// Store writes one payload under a collision-resistant key derived from the
// current time plus a random suffix, keeping the original extension.
// Empty payloads are rejected.
func (r *Receiver) Store(src io.Reader, originalFilename string) (Staged, error) {
	var zero Staged
	if r == nil {
		return zero, fmt.Errorf("upload receiver is not configured")
	}
	if src == nil {
		return zero, ErrEmptyPayload
	}

	now := time.Now()
	key, err := storageKey(now, originalFilename)
	if err != nil {
		return zero, err
	}
	path := filepath.Join(r.dir, key)

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return zero, err
	}

	n, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return zero, err
	}
	if n == 0 {
		_ = os.Remove(path)
		return zero, ErrEmptyPayload
	}

	return Staged{Path: path, OriginalFilename: originalFilename, CreatedAt: now}, nil
}

// storageKey builds "<unix-ms>_<rand><ext>". The random suffix keeps
// sub-millisecond concurrent uploads from colliding.
func storageKey(now time.Time, originalFilename string) (string, error) {
	suffix, err := randomBase36(keySuffixLength)
	if err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalFilename)))
	return fmt.Sprintf("%d_%s%s", now.UnixMilli(), suffix, ext), nil
}

func randomBase36(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	out := make([]byte, length)
	for i := 0; i < length; i++ {
		out[i] = base36Alphabet[int(b[i])%len(base36Alphabet)]
	}
	return string(out), nil
}
