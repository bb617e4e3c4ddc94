package nlp

import "context"

// Token is a single parsed token with its linguistic annotations.
// Head is the sentence-local index of the token's syntactic head; the
// root token is its own head.
type Token struct {
	Text    string `json:"text"`
	Lemma   string `json:"lemma"`
	POS     string `json:"pos"`
	Tag     string `json:"tag"`
	Dep     string `json:"dep"`
	Head    int    `json:"head"`
	IsAlpha bool   `json:"is_alpha"`
	IsPunct bool   `json:"is_punct"`
}

// Entity is a named-entity span.
type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// Sentence is one segmented sentence of a parsed document.
type Sentence struct {
	Tokens []Token `json:"tokens"`
}

// Doc is a parsed document.
type Doc struct {
	Sents []Sentence `json:"sents"`
	Ents  []Entity   `json:"ents"`
}

// Parser produces a dependency parse for a text. The parsing engine is an
// external collaborator; implementations must be safe for concurrent use.
type Parser interface {
	Parse(ctx context.Context, text string) (*Doc, error)
}

// Root returns the index of the sentence's syntactic root, or -1 if the
// sentence has no token labeled ROOT.
func (s Sentence) Root() int {
	for i, tok := range s.Tokens {
		if tok.Dep == "ROOT" {
			return i
		}
	}
	return -1
}

// Children returns the indices of tokens whose head is the token at i.
func (s Sentence) Children(i int) []int {
	var children []int
	for j, tok := range s.Tokens {
		if j != i && tok.Head == i {
			children = append(children, j)
		}
	}
	return children
}

// Tokens returns every token of the document in order.
func (d *Doc) AllTokens() []Token {
	var tokens []Token
	for _, sent := range d.Sents {
		tokens = append(tokens, sent.Tokens...)
	}
	return tokens
}
