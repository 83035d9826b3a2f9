package artifact

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testArtifactStore(t *testing.T) *Store {
	t.Helper()
	st, err := NewStore(t.TempDir(), "/artifacts")
	if err != nil {
		t.Fatalf("new artifact store: %v", err)
	}
	return st
}

func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("jpg"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestListSortsNewestFirst(t *testing.T) {
	st := testArtifactStore(t)

	// Written out of timestamp order on purpose; the listing must not
	// depend on filesystem enumeration order.
	touch(t, st.Dir(), "processed_200.jpg")
	touch(t, st.Dir(), "processed_900.jpg")
	touch(t, st.Dir(), "processed_500.jpg")

	entries, err := st.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []int64{900, 500, 200} {
		if entries[i].Timestamp != want {
			t.Fatalf("position %d: expected timestamp %d, got %d", i, want, entries[i].Timestamp)
		}
	}
	if entries[0].URL != "/artifacts/processed_900.jpg" {
		t.Fatalf("unexpected url %q", entries[0].URL)
	}
}

func TestListSkipsForeignFiles(t *testing.T) {
	st := testArtifactStore(t)

	touch(t, st.Dir(), "processed_100.jpg")
	touch(t, st.Dir(), "notes.txt")
	touch(t, st.Dir(), "processed_abc.jpg")
	touch(t, st.Dir(), "processed_.jpg")
	touch(t, st.Dir(), "original_100.jpg")

	entries, err := st.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].Timestamp != 100 {
		t.Fatalf("expected only processed_100.jpg, got %+v", entries)
	}
}

func TestNextOutputPathReservesName(t *testing.T) {
	st := testArtifactStore(t)
	now := time.UnixMilli(1700000000123)

	first, ts, err := st.NextOutputPath(now)
	if err != nil {
		t.Fatalf("first path: %v", err)
	}
	if ts != 1700000000123 {
		t.Fatalf("expected timestamp 1700000000123, got %d", ts)
	}
	if filepath.Base(first) != "processed_1700000000123.jpg" {
		t.Fatalf("unexpected name %q", filepath.Base(first))
	}
	if _, err := os.Stat(first); err != nil {
		t.Fatalf("reservation must exist on disk: %v", err)
	}

	// Nothing has written to the first path yet. A second same-millisecond
	// invocation must still get its own name.
	second, _, err := st.NextOutputPath(now)
	if err != nil {
		t.Fatalf("second path: %v", err)
	}
	if second == first {
		t.Fatal("same-millisecond invocations must not share an output path")
	}
	if filepath.Base(second) != "processed_1700000000123_1.jpg" {
		t.Fatalf("unexpected collision name %q", filepath.Base(second))
	}

	// The collision name must still list under the original timestamp.
	touch(t, st.Dir(), filepath.Base(first))
	touch(t, st.Dir(), filepath.Base(second))
	entries, err := st.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Timestamp != 1700000000123 {
			t.Fatalf("expected timestamp 1700000000123, got %d", e.Timestamp)
		}
	}
}

func TestDiscardReservation(t *testing.T) {
	st := testArtifactStore(t)
	now := time.UnixMilli(1700000000456)

	path, _, err := st.NextOutputPath(now)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	// An unfilled reservation is removed.
	if err := st.DiscardReservation(path); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected placeholder to be removed, stat err: %v", err)
	}

	// Discarding twice is fine.
	if err := st.DiscardReservation(path); err != nil {
		t.Fatalf("second discard: %v", err)
	}

	// A written artifact is left alone.
	written, _, err := st.NextOutputPath(now)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := os.WriteFile(written, []byte("jpg"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	if err := st.DiscardReservation(written); err != nil {
		t.Fatalf("discard written: %v", err)
	}
	if _, err := os.Stat(written); err != nil {
		t.Fatalf("written artifact must survive discard: %v", err)
	}
}

func TestOpenRejectsTraversal(t *testing.T) {
	st := testArtifactStore(t)

	for _, name := range []string{"", "../secret.jpg", "processed_1.jpg/../../etc", "notes.txt", "processed_x.jpg"} {
		if _, err := st.Open(name); err == nil {
			t.Fatalf("expected %q to be rejected", name)
		}
	}

	path, err := st.Open("processed_100.jpg")
	if err != nil {
		t.Fatalf("open valid name: %v", err)
	}
	if filepath.Dir(path) != st.Dir() {
		t.Fatalf("resolved path escaped the artifact dir: %q", path)
	}
}
