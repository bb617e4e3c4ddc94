package indexer

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	state := State{
		"/data/a.pdf": {MTime: 1234, ChunkIDs: []string{"id-1", "id-2"}},
		"/data/b.md":  {MTime: 5678},
	}
	if err := SaveState(path, state); err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}

	loaded, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	if !reflect.DeepEqual(loaded, state) {
		t.Errorf("LoadState() = %+v, want %+v", loaded, state)
	}
}

func TestLoadStateMissingFile(t *testing.T) {
	state, err := LoadState(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	if state != nil {
		t.Errorf("LoadState() = %+v, want nil for missing file", state)
	}
}

func TestLoadStateCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadState(path); err == nil {
		t.Error("LoadState() expected error for corrupt file")
	}
}

func TestSaveStateLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	if err := SaveState(path, State{}); err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
}

func TestChunkStats(t *testing.T) {
	var stats ChunkStats
	if stats.AvgSize() != 0 {
		t.Errorf("AvgSize() = %v, want 0 for empty stats", stats.AvgSize())
	}

	for _, size := range []int{100, 300, 200} {
		stats.Add(size)
	}
	if stats.Count != 3 || stats.TotalSize != 600 {
		t.Errorf("stats = %+v, want count 3, total 600", stats)
	}
	if stats.MinSize != 100 || stats.MaxSize != 300 {
		t.Errorf("stats = %+v, want min 100, max 300", stats)
	}
	if stats.AvgSize() != 200 {
		t.Errorf("AvgSize() = %v, want 200", stats.AvgSize())
	}
}
