// Package artifact owns the durable directory of processed analysis outputs.
// Artifacts are discoverable only by directory enumeration; the filename
// encodes the invocation timestamp.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	filePrefix = "processed_"
	fileExt    = ".jpg"

	// maxCollisionAttempts bounds the counter suffix search when two
	// invocations land on the same millisecond.
	maxCollisionAttempts = 1000
)

// Entry is one artifact found in the durable directory.
type Entry struct {
	Name      string
	URL       string
	Timestamp int64
}

// Store owns the durable artifact directory.
type Store struct {
	dir     string
	urlBase string
}

// NewStore creates the artifact store rooted at dir, creating it if needed.
// urlBase is the public path prefix artifacts are served under.
func NewStore(dir, urlBase string) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("artifact dir is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	if urlBase == "" {
		urlBase = "/artifacts"
	}
	return &Store{dir: abs, urlBase: strings.TrimRight(urlBase, "/")}, nil
}

// Dir returns the durable directory.
func (s *Store) Dir() string {
	return s.dir
}

// NextOutputPath reserves a fresh output path named after now. The name is
// claimed by creating an empty placeholder with O_EXCL, so two invocations
// in the same millisecond can never receive the same path; the analyzer
// overwrites the placeholder with the real artifact. When the millisecond
// slot is already claimed a counter suffix disambiguates.
func (s *Store) NextOutputPath(now time.Time) (string, int64, error) {
	if s == nil {
		return "", 0, fmt.Errorf("artifact store is not configured")
	}
	ts := now.UnixMilli()

	name := fmt.Sprintf("%s%d%s", filePrefix, ts, fileExt)
	if path, ok, err := s.reserve(name); err != nil {
		return "", 0, err
	} else if ok {
		return path, ts, nil
	}

	for i := 1; i <= maxCollisionAttempts; i++ {
		name = fmt.Sprintf("%s%d_%d%s", filePrefix, ts, i, fileExt)
		if path, ok, err := s.reserve(name); err != nil {
			return "", 0, err
		} else if ok {
			return path, ts, nil
		}
	}

	return "", 0, fmt.Errorf("unable to reserve artifact name for timestamp %d", ts)
}

// reserve atomically claims name by creating it empty. ok is false when the
// name is already taken.
func (s *Store) reserve(name string) (string, bool, error) {
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	if err := f.Close(); err != nil {
		return "", false, err
	}
	return path, true, nil
}

// DiscardReservation removes a reserved output path the analyzer never
// filled, so failed runs do not leave empty placeholders in the listing.
// Paths the analyzer did write to are left alone.
func (s *Store) DiscardReservation(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Size() > 0 {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// List enumerates the durable directory and returns artifacts newest first.
// Files that do not match the naming convention are skipped. This is a full
// scan on every call; there is no index.
func (s *Store) List() ([]Entry, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(files))
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		name := file.Name()
		ts, ok := parseTimestamp(name)
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			Name:      name,
			URL:       s.urlBase + "/" + name,
			Timestamp: ts,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Timestamp != entries[j].Timestamp {
			return entries[i].Timestamp > entries[j].Timestamp
		}
		return entries[i].Name > entries[j].Name
	})

	return entries, nil
}

// Open returns the on-disk path for a listed artifact name, rejecting
// anything outside the durable directory.
func (s *Store) Open(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("artifact name is required")
	}
	if name != filepath.Base(name) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid artifact name")
	}
	if _, ok := parseTimestamp(name); !ok {
		return "", fmt.Errorf("invalid artifact name")
	}
	return filepath.Join(s.dir, name), nil
}

// parseTimestamp extracts the embedded timestamp from
// "processed_<ts>[_<n>].jpg". Returns false for anything else.
func parseTimestamp(name string) (int64, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileExt) {
		return 0, false
	}
	stem := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileExt)
	if stem == "" {
		return 0, false
	}
	// Drop an optional collision counter suffix.
	if idx := strings.IndexByte(stem, '_'); idx >= 0 {
		stem = stem[:idx]
	}
	ts, err := strconv.ParseInt(stem, 10, 64)
	if err != nil || ts < 0 {
		return 0, false
	}
	return ts, true
}
