package fusion

import (
	"slices"

	"sage/internal/nlp"
)

// keywordDeps are the dependency roles whose tokens carry the query's
// key terms.
var keywordDeps = map[string]struct{}{
	"amod":     {},
	"nsubj":    {},
	"dobj":     {},
	"pobj":     {},
	"compound": {},
	"npadvmod": {},
}

// keywordExcludedPOS filters function words and verbs out of the
// keyword list.
var keywordExcludedPOS = map[string]struct{}{
	"PRON":  {},
	"AUX":   {},
	"DET":   {},
	"ADP":   {},
	"PUNCT": {},
	"VERB":  {},
}

// Analysis is the result of inspecting a query: which external
// sources its wording selects and the reduced keyword list used for
// retrieval.
type Analysis struct {
	Sources  []string
	Keywords []string
}

// Analyze extracts keywords and selects sources from a parsed query.
// A compound modifier is kept only when its head is already a
// keyword, so stray noun compounds don't leak in. When no trigger
// matches, the table's last source is the fallback.
func Analyze(doc *nlp.Doc, sources []Source) Analysis {
	var keywords []string
	for _, sent := range doc.Sents {
		for _, tok := range sent.Tokens {
			if _, ok := keywordDeps[tok.Dep]; !ok {
				continue
			}
			if _, excluded := keywordExcludedPOS[tok.POS]; excluded {
				continue
			}
			if tok.Dep == "compound" {
				head := ""
				if tok.Head >= 0 && tok.Head < len(sent.Tokens) {
					head = sent.Tokens[tok.Head].Text
				}
				if !slices.Contains(keywords, head) {
					continue
				}
			}
			if !slices.Contains(keywords, tok.Text) {
				keywords = append(keywords, tok.Text)
			}
		}
	}

	var contentWords []string
	for _, tok := range doc.AllTokens() {
		switch tok.POS {
		case "NOUN", "VERB", "ADJ":
			contentWords = append(contentWords, tok.Text)
		}
	}

	var selected []string
	for _, source := range sources {
		for _, word := range contentWords {
			if slices.Contains(source.Triggers, word) {
				selected = append(selected, source.Name)
				break
			}
		}
	}
	if len(selected) == 0 && len(sources) > 0 {
		selected = append(selected, sources[len(sources)-1].Name)
	}

	return Analysis{Sources: selected, Keywords: keywords}
}
