package fusion

import (
	"context"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"sage/internal/contextutil"
	"sage/internal/nlp"
)

var blankRuns = regexp.MustCompile(`\n+`)

// ContextProvider supplies the similarity-searched branches of the
// fusion fan-out.
type ContextProvider interface {
	HistoryContext(ctx context.Context, query, sessionID string) (string, []float32, error)
	DocContext(ctx context.Context, query string) (string, []float32, error)
}

// Result is a fused context string plus the best similarity score
// seen across all branches.
type Result struct {
	Context  string
	TopScore float32
	Keywords []string
}

// Engine runs the per-query context fan-out: history lookup, document
// retrieval, and external fetch in parallel, merged in fixed order.
type Engine struct {
	parser   nlp.Parser
	provider ContextProvider
	fetcher  Fetcher
	sources  []Source
}

func NewEngine(parser nlp.Parser, provider ContextProvider, fetcher Fetcher, sources []Source) *Engine {
	return &Engine{parser: parser, provider: provider, fetcher: fetcher, sources: sources}
}

// Fuse gathers context for a query. All branches run concurrently and
// all must finish before merging; a failed branch contributes nothing
// rather than failing the query. The merged context preserves the
// order [history, documents, external] with blank-line runs collapsed.
func (e *Engine) Fuse(ctx context.Context, query, sessionID string) (*Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	doc, err := e.parser.Parse(ctx, strings.ToLower(query))
	if err != nil {
		return nil, err
	}
	analysis := Analyze(doc, e.sources)
	keywordQuery := strings.Join(analysis.Keywords, " ")
	logger.Info("analyzed query", "sources", analysis.Sources, "keywords", analysis.Keywords)

	var (
		contents [3]string
		scores   [3][]float32
	)
	branches := []struct {
		name string
		call func(context.Context) (string, []float32, error)
	}{
		{"history", func(ctx context.Context) (string, []float32, error) {
			return e.provider.HistoryContext(ctx, keywordQuery, sessionID)
		}},
		{"documents", func(ctx context.Context) (string, []float32, error) {
			return e.provider.DocContext(ctx, keywordQuery)
		}},
		{"external", func(ctx context.Context) (string, []float32, error) {
			return e.fetcher.Fetch(ctx, analysis.Sources, analysis.Keywords)
		}},
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, branch := range branches {
		g.Go(func() error {
			start := time.Now()
			content, branchScores, err := branch.call(gctx)
			if err != nil {
				logger.Error("context branch failed", "branch", branch.name, "error", err)
				return nil
			}
			contents[i] = content
			scores[i] = branchScores
			logger.Info("fetched context", "branch", branch.name, "elapsed", time.Since(start).Round(time.Millisecond))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var parts []string
	var topScore float32
	for i := range branches {
		if contents[i] != "" {
			parts = append(parts, contents[i])
		}
		for _, s := range scores[i] {
			if s > topScore {
				topScore = s
			}
		}
	}

	combined := strings.TrimSpace(strings.Join(parts, "\n\n"))
	combined = blankRuns.ReplaceAllString(combined, "\n")
	logger.Info("fused context", "top_score", topScore, "length", len(combined))

	return &Result{Context: combined, TopScore: topScore, Keywords: analysis.Keywords}, nil
}
