package indexer

// ChunkStats accumulates chunk size statistics across an indexing run.
type ChunkStats struct {
	Count     int
	TotalSize int
	MinSize   int
	MaxSize   int
}

// Add folds a chunk's size into the stats.
func (s *ChunkStats) Add(size int) {
	if s.Count == 0 || size < s.MinSize {
		s.MinSize = size
	}
	if size > s.MaxSize {
		s.MaxSize = size
	}
	s.Count++
	s.TotalSize += size
}

// AvgSize returns the mean chunk size, or 0 with no chunks.
func (s *ChunkStats) AvgSize() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.TotalSize) / float64(s.Count)
}
