package indexer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"sage/internal/contextutil"
	"sage/internal/corpus"
	"sage/internal/vectorstore"
)

const (
	embedBatchSize  = 256
	upsertBatchSize = 1000
)

// SyncConfig carries the per-run parameters of a Synchronizer.
type SyncConfig struct {
	CorpusDir  string
	StateFile  string
	Collection string
	VectorSize int
	HnswM      int
}

// SyncResult summarizes one indexing run.
type SyncResult struct {
	FilesScanned   int
	FilesProcessed int
	FilesDeleted   int
	IDsDeleted     int
	ChunksUpserted int
	FailedBatches  int
	Stats          ChunkStats
}

// Synchronizer diffs the corpus filesystem state against the durable
// state snapshot and brings the vector store in line: vanished files
// lose their records, new and changed files are converted, chunked,
// scored, embedded, and upserted.
//
// Only one Sync may run at a time against a given state file; the
// snapshot is read once and written once per run with no locking.
type Synchronizer struct {
	store     vectorstore.VectorStore
	embedder  Embedder
	scanner   *corpus.Scanner
	converter *corpus.Converter
	chunker   *Chunker
	scorer    *Scorer
	cfg       SyncConfig

	// Progress, when set, is called after each processed file.
	Progress func(processed, total int)
}

func NewSynchronizer(
	store vectorstore.VectorStore,
	embedder Embedder,
	scanner *corpus.Scanner,
	converter *corpus.Converter,
	chunker *Chunker,
	scorer *Scorer,
	cfg SyncConfig,
) *Synchronizer {
	return &Synchronizer{
		store:     store,
		embedder:  embedder,
		scanner:   scanner,
		converter: converter,
		chunker:   chunker,
		scorer:    scorer,
		cfg:       cfg,
	}
}

// Sync runs one indexing pass. Per-file and per-batch failures are
// logged and skipped; only infrastructure failures (store, embedder,
// state file) abort the run.
func (s *Synchronizer) Sync(ctx context.Context) (*SyncResult, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()
	result := &SyncResult{}

	prev, err := LoadState(s.cfg.StateFile)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		// Without a snapshot there is no way to reconcile whatever a
		// prior run left behind, so start from a clean collection.
		exists, err := s.store.CollectionExists(ctx, s.cfg.Collection)
		if err != nil {
			return nil, fmt.Errorf("failed to check collection: %w", err)
		}
		if exists {
			logger.Info("no state snapshot found, resetting collection", "collection", s.cfg.Collection)
			if err := s.store.DropCollection(ctx, s.cfg.Collection); err != nil {
				return nil, fmt.Errorf("failed to reset collection: %w", err)
			}
		}
	}

	files, err := s.scanner.Scan(s.cfg.CorpusDir)
	if err != nil {
		return nil, err
	}
	result.FilesScanned = len(files)

	current := State{}
	for path, mtime := range files {
		current[path] = &FileState{MTime: mtime}
	}

	if err := s.store.EnsureCollection(ctx, s.cfg.Collection, s.cfg.VectorSize, s.cfg.HnswM); err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	// Vanished files: drop everything they contributed.
	for path, st := range prev {
		if _, ok := current[path]; ok {
			continue
		}
		result.FilesDeleted++
		if len(st.ChunkIDs) == 0 {
			continue
		}
		logger.Info("deleting chunks for removed file", "source", path, "chunks", len(st.ChunkIDs))
		if err := s.store.Delete(ctx, s.cfg.Collection, st.ChunkIDs); err != nil {
			return nil, fmt.Errorf("failed to delete chunks for %s: %w", path, err)
		}
		result.IDsDeleted += len(st.ChunkIDs)
	}

	if len(files) == 0 {
		// Persist the empty snapshot so "indexed empty" is
		// distinguishable from "never indexed."
		logger.Info("no corpus files found")
		return result, SaveState(s.cfg.StateFile, current)
	}

	var toProcess []string
	for path := range files {
		st, known := prev[path]
		if !known || st.MTime != current[path].MTime {
			toProcess = append(toProcess, path)
			continue
		}
		// Unchanged file: its records stay put, carry the IDs forward.
		current[path].ChunkIDs = st.ChunkIDs
	}
	sort.Strings(toProcess)

	// Changed files' old records now carry stale content; drop them so
	// each state entry stays the exact ID set stored for its source.
	for _, path := range toProcess {
		st, known := prev[path]
		if !known || len(st.ChunkIDs) == 0 {
			continue
		}
		logger.Info("deleting chunks for changed file", "source", path, "chunks", len(st.ChunkIDs))
		if err := s.store.Delete(ctx, s.cfg.Collection, st.ChunkIDs); err != nil {
			return nil, fmt.Errorf("failed to delete chunks for %s: %w", path, err)
		}
		result.IDsDeleted += len(st.ChunkIDs)
	}

	if len(toProcess) == 0 {
		logger.Info("no changes detected")
		if result.FilesDeleted > 0 || prev == nil {
			return result, SaveState(s.cfg.StateFile, current)
		}
		return result, nil
	}

	kept, err := s.processFiles(ctx, toProcess, result)
	if err != nil {
		return nil, err
	}
	if len(kept) == 0 {
		logger.Info("no new or changed data to index")
		return result, SaveState(s.cfg.StateFile, current)
	}

	logger.Info("chunk stats",
		"count", result.Stats.Count,
		"avg_size", fmt.Sprintf("%.1f", result.Stats.AvgSize()),
		"min_size", result.Stats.MinSize,
		"max_size", result.Stats.MaxSize)

	vectors, err := s.embedChunks(ctx, kept)
	if err != nil {
		return nil, err
	}

	points := make([]vectorstore.Point, len(kept))
	for i, chunk := range kept {
		id := uuid.New().String()
		points[i] = vectorstore.Point{
			ID:  id,
			Vec: vectors[i],
			Meta: map[string]any{
				"source":  chunk.Source,
				"section": chunk.Section,
				"content": chunk.Text,
			},
		}
		current[chunk.Source].ChunkIDs = append(current[chunk.Source].ChunkIDs, id)
	}

	totalBatches := (len(points) + upsertBatchSize - 1) / upsertBatchSize
	for i := 0; i < len(points); i += upsertBatchSize {
		batch := points[i:min(i+upsertBatchSize, len(points))]
		logger.Info("upserting batch", "batch", i/upsertBatchSize+1, "total", totalBatches, "points", len(batch))
		if err := s.store.Upsert(ctx, s.cfg.Collection, batch); err != nil {
			logger.Error("upsert batch failed, skipping", "batch", i/upsertBatchSize+1, "error", err)
			result.FailedBatches++
			continue
		}
		result.ChunksUpserted += len(batch)
	}
	if result.FailedBatches > 0 {
		logger.Warn("completed with failed batches", "failed", result.FailedBatches, "total", totalBatches)
	}

	if err := SaveState(s.cfg.StateFile, current); err != nil {
		return nil, err
	}
	logger.Info("index synchronized",
		"chunks", len(kept),
		"files", result.FilesProcessed,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return result, nil
}

// processFiles converts, chunks, scores, and filters each file.
// Conversion failures skip the file; scoring failures discard the
// chunk. Neither aborts the run.
func (s *Synchronizer) processFiles(ctx context.Context, paths []string, result *SyncResult) ([]Chunk, error) {
	logger := contextutil.LoggerFromContext(ctx)

	var kept []Chunk
	for i, path := range paths {
		markup, err := s.converter.Convert(ctx, path)
		if err != nil {
			logger.Error("conversion failed, skipping file", "source", path, "error", err)
			continue
		}

		chunks, err := s.chunker.Chunk(ctx, markup, path)
		if err != nil {
			return nil, err
		}

		var fileKept int
		for _, chunk := range chunks {
			if s.scorer.Score(ctx, chunk.Text) < ScoreThreshold {
				continue
			}
			result.Stats.Add(len(chunk.Text))
			kept = append(kept, chunk)
			fileKept++
		}
		logger.Info("processed file", "source", path, "chunks", len(chunks), "kept", fileKept)
		result.FilesProcessed++
		if s.Progress != nil {
			s.Progress(i+1, len(paths))
		}
	}
	return kept, nil
}

func (s *Synchronizer) embedChunks(ctx context.Context, chunks []Chunk) ([][]float32, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += embedBatchSize {
		batch := texts[i:min(i+embedBatchSize, len(texts))]
		vecs, err := s.embedder.EmbedTexts(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks: %w", err)
		}
		vectors = append(vectors, vecs...)
	}

	logger.Info("embedded chunks", "count", len(vectors), "elapsed", time.Since(start).Round(time.Millisecond))
	return vectors, nil
}
