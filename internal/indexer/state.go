package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileState records what a single source file contributed to the
// vector store: its modification time at indexing and the IDs of all
// records carrying it as payload source.
type FileState struct {
	MTime    int64    `json:"mtime"`
	ChunkIDs []string `json:"chunk_ids"`
}

// State maps source paths to their indexed state. The durable copy is
// the authority on which vector IDs each file owns.
type State map[string]*FileState

// LoadState reads the state snapshot at path. A missing file returns
// (nil, nil): "never indexed" is distinct from "indexed empty."
func LoadState(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return state, nil
}

// SaveState writes the snapshot atomically via a temp file and rename
// so a crash mid-write never leaves a truncated snapshot.
func SaveState(path string, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
