// Package facts extracts short declarative facts about the user from
// their own utterances, using syntactic-dependency rules over parsed
// sentences.
package facts

import (
	"context"
	"strings"
	"unicode"

	"sage/internal/nlp"
)

// NoneSentinel is returned as the only element when no facts were
// found. Callers must treat it as "no facts," not as a literal fact.
const NoneSentinel = "none"

// contractions are expanded before parsing, in order. The bare "'s"
// rule runs after the specific ones so "it's" and "let's" keep their
// own expansions.
var contractions = [][2]string{
	{"I'm", "I am"},
	{"it's", "it is"},
	{"let's", "let us"},
	{"'s", " is"},
	{"can't", "cannot"},
	{"won't", "will not"},
	{"aren't", "are not"},
	{"didn't", "did not"},
	{"we're", "we are"},
	{"you're", "you are"},
	{"they're", "they are"},
}

var userRefs = map[string]struct{}{"i": {}, "me": {}, "my": {}}

// Extractor derives user facts from utterances via dependency parses.
type Extractor struct {
	parser nlp.Parser
}

func NewExtractor(parser nlp.Parser) *Extractor {
	return &Extractor{parser: parser}
}

// IsNone reports whether an extraction result is the no-facts sentinel.
func IsNone(facts []string) bool {
	return len(facts) == 1 && facts[0] == NoneSentinel
}

// Extract returns the facts found in text, in first-seen order, or
// the ["none"] sentinel when the rule set matches nothing. Only
// sentences that reference the user in a subject, object, or
// possessive position are considered.
func (e *Extractor) Extract(ctx context.Context, text string) ([]string, error) {
	doc, err := e.parser.Parse(ctx, Preprocess(text))
	if err != nil {
		return nil, err
	}

	var facts []string
	for _, sent := range doc.Sents {
		facts = append(facts, extractSentence(sent)...)
	}
	return dedupe(facts), nil
}

// Preprocess expands contractions so the parser sees full verb forms.
func Preprocess(text string) string {
	for _, c := range contractions {
		text = strings.ReplaceAll(text, c[0], c[1])
	}
	return text
}

func extractSentence(sent nlp.Sentence) []string {
	rootIdx := sent.Root()
	if rootIdx < 0 {
		return nil
	}
	if !mentionsUser(sent) {
		return nil
	}

	root := sent.Tokens[rootIdx]
	var facts []string
	if root.Lemma == "be" || root.Text == "am" {
		facts = copularFacts(sent, rootIdx)
	} else {
		facts = verbFacts(sent, rootIdx)
	}
	facts = append(facts, callMeFacts(sent)...)
	return facts
}

func mentionsUser(sent nlp.Sentence) bool {
	for _, tok := range sent.Tokens {
		if _, ok := userRefs[strings.ToLower(tok.Text)]; !ok {
			continue
		}
		switch tok.Dep {
		case "nsubj", "dobj", "pobj", "poss":
			return true
		}
	}
	return false
}

// copularFacts handles "to be" roots: predicate nominals, predicate
// adjectives, open clausal complements, and locative/directional
// prepositions each yield one "User is/likes X" fact.
func copularFacts(sent nlp.Sentence, rootIdx int) []string {
	relation := "is"
	for _, tok := range sent.Tokens {
		if strings.EqualFold(tok.Text, "favorite") {
			relation = "likes"
			break
		}
	}

	var facts []string
	for _, i := range sent.Children(rootIdx) {
		child := sent.Tokens[i]
		switch {
		case child.Dep == "attr" && child.POS != "PRON":
			facts = append(facts, "User "+relation+" "+child.Text)

		case child.Dep == "acomp" && child.POS == "ADJ":
			facts = append(facts, "User is "+child.Text)

		case child.POS == "VERB" && child.Dep == "xcomp":
			parts := []string{"is", child.Text}
			for _, j := range sent.Children(i) {
				if gk := sent.Tokens[j]; gk.Dep == "dobj" || gk.Dep == "pobj" {
					parts = append(parts, gk.Text)
				}
			}
			facts = append(facts, "User "+strings.Join(parts, " "))

		case child.Dep == "prep" && (child.Text == "from" || child.Text == "into" || child.Text == "in"):
			parts := []string{"is", child.Text}
			for _, j := range sent.Children(i) {
				if gk := sent.Tokens[j]; gk.Dep == "pobj" {
					parts = append(parts, gk.Text)
				}
			}
			facts = append(facts, "User "+strings.Join(parts, " "))
		}
	}
	return facts
}

// verbFacts handles non-copular roots: the verb is conjugated to
// third person singular and paired with its non-pronoun objects. A
// bare progressive ("I am working") still yields a fact.
func verbFacts(sent nlp.Sentence, rootIdx int) []string {
	root := sent.Tokens[rootIdx]

	progressive := false
	if root.Tag == "VBG" {
		for _, tok := range sent.Tokens {
			if tok.POS == "AUX" {
				progressive = true
				break
			}
		}
	}

	verb := root.Text
	if root.POS == "VERB" && (root.Tag == "VB" || root.Tag == "VBP") {
		verb = conjugate(root.Lemma)
	}

	var parts []string
	if progressive {
		parts = append(parts, "is")
	}
	parts = append(parts, verb)

	for _, i := range sent.Children(rootIdx) {
		child := sent.Tokens[i]
		switch {
		case (child.Dep == "dobj" || child.Dep == "pobj") && child.POS != "PRON":
			parts = append(parts, child.Text)
		case child.Dep == "prep" && (child.Text == "on" || child.Text == "as"):
			for _, j := range sent.Children(i) {
				if gk := sent.Tokens[j]; gk.Dep == "pobj" {
					parts = append(parts, child.Text+" "+gk.Text)
				}
			}
		}
	}

	if len(parts) > 1 || progressive {
		return []string{"User " + strings.Join(parts, " ")}
	}
	return nil
}

// callMeFacts handles "call me X": a proper noun in object or object
// predicate position next to "me" asserts the user's name.
func callMeFacts(sent nlp.Sentence) []string {
	var facts []string
	for _, tok := range sent.Tokens {
		if strings.ToLower(tok.Text) != "me" || (tok.Dep != "dobj" && tok.Dep != "pobj") {
			continue
		}
		for _, cand := range sent.Tokens {
			if (cand.Dep == "pobj" || cand.Dep == "oprd") && cand.POS == "PROPN" {
				facts = append(facts, "User is "+cand.Text)
				break
			}
		}
	}
	return facts
}

// conjugate renders a verb lemma in third person singular.
func conjugate(lemma string) string {
	for _, suffix := range []string{"x", "ch", "sh", "s", "z"} {
		if strings.HasSuffix(lemma, suffix) {
			return lemma + "es"
		}
	}
	return lemma + "s"
}

// dedupe keeps facts in first-seen order and suppresses "refers as"
// near-duplicates once a proper-noun identity fact is present.
func dedupe(facts []string) []string {
	hasIdentity := false
	for _, f := range facts {
		if containsWord(f, "is") && hasProperNoun(f) {
			hasIdentity = true
			break
		}
	}

	seen := make(map[string]struct{})
	var unique []string
	for _, f := range facts {
		if hasIdentity && strings.Contains(f, "refers as") && hasProperNoun(f) {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		unique = append(unique, f)
	}

	if len(unique) == 0 {
		return []string{NoneSentinel}
	}
	return unique
}

func containsWord(fact, word string) bool {
	for _, w := range strings.Fields(fact) {
		if w == word {
			return true
		}
	}
	return false
}

// hasProperNoun approximates a proper-noun check: any capitalized
// word past the leading "User".
func hasProperNoun(fact string) bool {
	words := strings.Fields(fact)
	for _, w := range words[1:] {
		r := []rune(w)[0]
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}
