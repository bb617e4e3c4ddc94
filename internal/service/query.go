package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sage/internal/contextutil"
	"sage/internal/facts"
	"sage/internal/fusion"
	"sage/internal/llm"
)

// Fuser gathers context for a query.
type Fuser interface {
	Fuse(ctx context.Context, query, sessionID string) (*fusion.Result, error)
}

// ConversationStore persists and retrieves per-session state.
type ConversationStore interface {
	AddHistory(ctx context.Context, query, answer, sessionID, userID string) error
	StoreFacts(ctx context.Context, facts []string, sessionID, sourceQuery string) error
	UserFacts(ctx context.Context, sessionID string, limit int) ([]string, error)
	CorpusSize(ctx context.Context) (uint64, error)
}

// Streamer produces incremental answer fragments.
type Streamer interface {
	StreamChat(ctx context.Context, messages []llm.Message, params llm.ChatParams, callback func(chunk string) error) error
}

// FactExtractor derives user facts from a query.
type FactExtractor interface {
	Extract(ctx context.Context, text string) ([]string, error)
}

// QueryStats describes one completed query exchange.
type QueryStats struct {
	ChunkCount uint64
	TTFB       time.Duration
	Generation time.Duration
}

// QueryService drives one query end to end: context fusion, prompt
// assembly, streamed inference, and the history/fact side effects.
type QueryService struct {
	fuser     Fuser
	store     ConversationStore
	llm       Streamer
	extractor FactExtractor
}

func NewQueryService(fuser Fuser, store ConversationStore, llm Streamer, extractor FactExtractor) *QueryService {
	return &QueryService{fuser: fuser, store: store, llm: llm, extractor: extractor}
}

// CorpusSize reports the current number of indexed chunks.
func (s *QueryService) CorpusSize(ctx context.Context) (uint64, error) {
	return s.store.CorpusSize(ctx)
}

// Stream answers a query, forwarding each fragment to emit as soon as
// it arrives. An inference failure is surfaced as an inline error
// fragment and the partial answer is still committed; an emit failure
// (client gone) aborts immediately with nothing committed. On return,
// history and extracted facts have been persisted.
func (s *QueryService) Stream(ctx context.Context, query, sessionID, userID string, emit func(fragment string) error) (*QueryStats, error) {
	logger := contextutil.LoggerFromContext(ctx)

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidInput)
	}

	fusedContext := ""
	if result, err := s.fuser.Fuse(ctx, query, sessionID); err != nil {
		logger.Error("context fusion failed, answering without context", "error", err)
	} else {
		fusedContext = result.Context
	}

	userFacts, err := s.store.UserFacts(ctx, sessionID, maxPromptFacts)
	if err != nil {
		logger.Warn("failed to load user facts", "error", err)
	}

	messages := BuildPrompt(fusedContext, userFacts, query)
	params := llm.ChatParams{MaxTokens: answerMaxTokens, Temperature: answerTemperature}

	var (
		answer  strings.Builder
		ttfb    time.Duration
		emitErr error
	)
	start := time.Now()
	streamErr := s.llm.StreamChat(ctx, messages, params, func(chunk string) error {
		if ttfb == 0 {
			ttfb = time.Since(start)
		}
		answer.WriteString(chunk)
		if err := emit(chunk); err != nil {
			emitErr = err
			return err
		}
		return nil
	})
	if emitErr != nil {
		return nil, fmt.Errorf("client send failed: %w", emitErr)
	}
	if streamErr != nil {
		logger.Error("inference stream failed", "error", streamErr)
		_ = emit(fmt.Sprintf("Error: inference service connection failed: %v", streamErr))
	}
	generation := time.Since(start)

	if err := s.store.AddHistory(ctx, query, answer.String(), sessionID, userID); err != nil {
		logger.Error("failed to store history", "error", err)
	}

	extracted, err := s.extractor.Extract(ctx, query)
	if err != nil {
		logger.Error("fact extraction failed", "error", err)
	} else if len(extracted) > 0 && !facts.IsNone(extracted) {
		if err := s.store.StoreFacts(ctx, extracted, sessionID, query); err != nil {
			logger.Error("failed to store facts", "error", err)
		}
	}

	stats := &QueryStats{TTFB: ttfb, Generation: generation}
	if count, err := s.store.CorpusSize(ctx); err != nil {
		logger.Warn("failed to read corpus size", "error", err)
	} else {
		stats.ChunkCount = count
	}

	logger.Info("response generated",
		"query", query,
		"answer_length", answer.Len(),
		"ttfb", ttfb.Round(time.Millisecond),
		"generation", generation.Round(time.Millisecond))
	return stats, nil
}
