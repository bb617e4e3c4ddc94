// Package retrieval owns the vector-store collections behind query
// time: document chunks, per-session conversation history, and
// extracted user facts.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"sage/internal/contextutil"
	"sage/internal/vectorstore"
)

const topK = 5

// Embedder maps a single text to a dense vector.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Config names the collections and their index parameters.
type Config struct {
	DocsCollection    string
	HistoryCollection string
	FactsCollection   string
	VectorSize        int
	HnswM             int
	HnswEF            int
}

// Store performs all retrieval-side vector operations.
type Store struct {
	store    vectorstore.VectorStore
	embedder Embedder
	cfg      Config
}

func NewStore(store vectorstore.VectorStore, embedder Embedder, cfg Config) *Store {
	return &Store{store: store, embedder: embedder, cfg: cfg}
}

// EnsureCollections creates the history and facts collections if
// absent. The docs collection is owned by the indexer.
func (s *Store) EnsureCollections(ctx context.Context) error {
	for _, collection := range []string{s.cfg.HistoryCollection, s.cfg.FactsCollection} {
		if err := s.store.EnsureCollection(ctx, collection, s.cfg.VectorSize, s.cfg.HnswM); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", collection, err)
		}
	}
	return nil
}

// HistoryContext returns prior question/answer pairs from the session
// most similar to the query, joined by newlines, with their scores.
func (s *Store) HistoryContext(ctx context.Context, query, sessionID string) (string, []float32, error) {
	vec, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return "", nil, err
	}
	results, err := s.store.Search(ctx, s.cfg.HistoryCollection, vec, vectorstore.SearchParams{
		K:       topK,
		Filters: map[string]any{"session_id": sessionID},
	})
	if err != nil {
		return "", nil, fmt.Errorf("history search failed: %w", err)
	}
	return joinContents(results), resultScores(results), nil
}

// DocContext returns the corpus chunks most similar to the query.
func (s *Store) DocContext(ctx context.Context, query string) (string, []float32, error) {
	logger := contextutil.LoggerFromContext(ctx)

	vec, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return "", nil, err
	}
	results, err := s.store.Search(ctx, s.cfg.DocsCollection, vec, vectorstore.SearchParams{
		K:      topK,
		HnswEF: uint64(s.cfg.HnswEF),
	})
	if err != nil {
		return "", nil, fmt.Errorf("document search failed: %w", err)
	}

	for _, r := range results {
		content, _ := r.Meta["content"].(string)
		logger.Debug("retrieved chunk",
			"id", r.PointID,
			"preview", preview(content, 50),
			"score", fmt.Sprintf("%.3f", r.Score))
	}
	return joinContents(results), resultScores(results), nil
}

// AddHistory stores one completed question/answer exchange.
func (s *Store) AddHistory(ctx context.Context, query, answer, sessionID, userID string) error {
	content := "Q: " + query + "\nA: " + answer
	vec, err := s.embedder.EmbedText(ctx, content)
	if err != nil {
		return err
	}
	point := vectorstore.Point{
		ID:  uuid.New().String(),
		Vec: vec,
		Meta: map[string]any{
			"content":    content,
			"session_id": sessionID,
			"user_id":    userID,
			"timestamp":  time.Now().Unix(),
		},
	}
	if err := s.store.Upsert(ctx, s.cfg.HistoryCollection, []vectorstore.Point{point}); err != nil {
		return fmt.Errorf("failed to store history: %w", err)
	}
	return nil
}

// StoreFacts persists extracted facts for a session, one record each.
func (s *Store) StoreFacts(ctx context.Context, facts []string, sessionID, sourceQuery string) error {
	logger := contextutil.LoggerFromContext(ctx)
	for _, fact := range facts {
		vec, err := s.embedder.EmbedText(ctx, fact)
		if err != nil {
			return err
		}
		point := vectorstore.Point{
			ID:  uuid.New().String(),
			Vec: vec,
			Meta: map[string]any{
				"fact":         fact,
				"session_id":   sessionID,
				"timestamp":    time.Now().Unix(),
				"source_query": sourceQuery,
			},
		}
		if err := s.store.Upsert(ctx, s.cfg.FactsCollection, []vectorstore.Point{point}); err != nil {
			return fmt.Errorf("failed to store fact %q: %w", fact, err)
		}
		logger.Info("stored fact", "fact", fact, "session_id", sessionID)
	}
	return nil
}

// UserFacts returns up to limit stored facts for a session. Ordering
// beyond scroll order is not guaranteed.
func (s *Store) UserFacts(ctx context.Context, sessionID string, limit int) ([]string, error) {
	points, err := s.store.Scroll(ctx, s.cfg.FactsCollection, map[string]any{"session_id": sessionID}, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve facts: %w", err)
	}
	facts := make([]string, 0, len(points))
	for _, p := range points {
		if fact, ok := p.Meta["fact"].(string); ok {
			facts = append(facts, fact)
		}
	}
	return facts, nil
}

// CorpusSize returns the number of indexed document chunks.
func (s *Store) CorpusSize(ctx context.Context) (uint64, error) {
	return s.store.Count(ctx, s.cfg.DocsCollection)
}

func joinContents(results []vectorstore.SearchResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if content, ok := r.Meta["content"].(string); ok {
			parts = append(parts, content)
		}
	}
	return strings.Join(parts, "\n")
}

func resultScores(results []vectorstore.SearchResult) []float32 {
	scores := make([]float32, len(results))
	for i, r := range results {
		scores[i] = r.Score
	}
	return scores
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
