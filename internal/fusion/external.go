package fusion

import (
	"context"
	"strings"
)

// Fetcher retrieves external content for the selected sources and
// keywords. Implementations may call real APIs; the engine only
// depends on this contract.
type Fetcher interface {
	Fetch(ctx context.Context, sources, keywords []string) (string, []float32, error)
}

// MockFetcher synthesizes placeholder content until real source
// integrations exist.
type MockFetcher struct{}

func (MockFetcher) Fetch(_ context.Context, sources, keywords []string) (string, []float32, error) {
	if len(keywords) > 5 {
		keywords = keywords[:5]
	}
	origin := strings.Join(sources, ", ")
	lines := make([]string, len(keywords))
	scores := make([]float32, len(keywords))
	for i, kw := range keywords {
		lines[i] = "External content from " + origin + " for " + kw
		scores[i] = -0.1 * float32(i)
	}
	return strings.Join(lines, "\n"), scores, nil
}
