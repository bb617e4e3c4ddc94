package indexer

import (
	"context"
	"strings"

	"sage/internal/contextutil"
	"sage/internal/nlp"
)

// ScoreThreshold is the minimum quality score a chunk needs to be
// embedded and stored.
const ScoreThreshold = 0.3

// Scorer rates chunk quality for retrieval from linguistic features.
type Scorer struct {
	parser nlp.Parser
}

func NewScorer(parser nlp.Parser) *Scorer {
	return &Scorer{parser: parser}
}

// Score returns a quality score in [0, 1]. Sentence count, content
// word density, and noun/verb richness raise the score; punctuation
// noise, table-like text, and sparse fragments lower or cap it.
// A parse failure scores 0.0 so the chunk is discarded.
func (s *Scorer) Score(ctx context.Context, chunkText string) float64 {
	doc, err := s.parser.Parse(ctx, chunkText)
	if err != nil {
		contextutil.LoggerFromContext(ctx).Warn("parser failed on chunk, scoring 0.0", "error", err)
		return 0.0
	}

	score := 0.0

	switch sents := len(doc.Sents); {
	case sents >= 3:
		score += 0.3
	case sents == 2:
		score += 0.2
	case sents == 1:
		score += 0.1
	}

	var words, nouns, verbs, punct int
	for _, tok := range doc.AllTokens() {
		if tok.IsAlpha {
			words++
		}
		if tok.IsPunct {
			punct++
		}
		switch tok.POS {
		case "NOUN", "PROPN":
			nouns++
		case "VERB":
			verbs++
		}
	}

	switch {
	case words >= 50:
		score += 0.3
	case words >= 20:
		score += 0.2
	case words >= 10:
		score += 0.1
	}

	switch {
	case nouns >= 10 && verbs >= 5:
		score += 0.4
	case nouns >= 5 && verbs >= 2:
		score += 0.3
	case nouns >= 2:
		score += 0.2
	}

	if len(chunkText) > 600 {
		score += 0.1
	}

	if float64(punct)/float64(max(words, 1)) > 0.3 {
		score -= 0.1
	}
	if strings.Contains(chunkText, "|") && words < 20 {
		score = min(score, 0.3)
	}
	if len(chunkText) < 100 && words < 10 {
		score = min(score, 0.2)
	}

	return min(max(score, 0.0), 1.0)
}
