package fusion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"sage/internal/nlp"
)

type fakeParser struct{}

func (fakeParser) Parse(_ context.Context, text string) (*nlp.Doc, error) {
	tokens := []nlp.Token{}
	for _, w := range strings.Fields(text) {
		tokens = append(tokens, nlp.Token{Text: w, POS: "NOUN", Dep: "dobj", IsAlpha: true})
	}
	return &nlp.Doc{Sents: []nlp.Sentence{{Tokens: tokens}}}, nil
}

type fakeProvider struct {
	history    string
	docs       string
	historyErr error
	docScores  []float32
}

func (f *fakeProvider) HistoryContext(_ context.Context, _, _ string) (string, []float32, error) {
	return f.history, []float32{0.4}, f.historyErr
}

func (f *fakeProvider) DocContext(_ context.Context, _ string) (string, []float32, error) {
	return f.docs, f.docScores, nil
}

type fakeFetcher struct {
	content string
}

func (f *fakeFetcher) Fetch(_ context.Context, _, _ []string) (string, []float32, error) {
	return f.content, nil, nil
}

func TestFuseOrderAndCollapse(t *testing.T) {
	provider := &fakeProvider{
		history:   "past exchange",
		docs:      "chunk one\n\n\nchunk two",
		docScores: []float32{0.9, 0.3},
	}
	engine := NewEngine(fakeParser{}, provider, &fakeFetcher{content: "external bits"}, DefaultSources())

	result, err := engine.Fuse(context.Background(), "channels question", "sess-1")
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}

	want := "past exchange\nchunk one\nchunk two\nexternal bits"
	if result.Context != want {
		t.Errorf("Context = %q, want %q", result.Context, want)
	}
	if strings.Contains(result.Context, "\n\n") {
		t.Error("Context contains a blank-line run")
	}
	if result.TopScore != 0.9 {
		t.Errorf("TopScore = %v, want 0.9", result.TopScore)
	}
}

func TestFuseSkipsEmptyBranches(t *testing.T) {
	provider := &fakeProvider{history: "", docs: "only docs"}
	engine := NewEngine(fakeParser{}, provider, &fakeFetcher{}, DefaultSources())

	result, err := engine.Fuse(context.Background(), "question", "sess-1")
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}
	if result.Context != "only docs" {
		t.Errorf("Context = %q, want %q", result.Context, "only docs")
	}
}

func TestFuseBranchFailureIsIsolated(t *testing.T) {
	provider := &fakeProvider{
		historyErr: errors.New("history store down"),
		docs:       "doc context",
	}
	engine := NewEngine(fakeParser{}, provider, &fakeFetcher{content: "external"}, DefaultSources())

	result, err := engine.Fuse(context.Background(), "question", "sess-1")
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}
	want := "doc context\nexternal"
	if result.Context != want {
		t.Errorf("Context = %q, want %q", result.Context, want)
	}
}

func TestMockFetcher(t *testing.T) {
	content, scores, err := MockFetcher{}.Fetch(context.Background(),
		[]string{"arXiv", "GitHub"},
		[]string{"k1", "k2", "k3", "k4", "k5", "k6"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	lines := strings.Split(content, "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want keywords capped at 5", len(lines))
	}
	if lines[0] != "External content from arXiv, GitHub for k1" {
		t.Errorf("first line = %q", lines[0])
	}
	if len(scores) != 5 {
		t.Errorf("got %d scores, want 5", len(scores))
	}
}

func TestLoadSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	data := `- name: HexDocs
  triggers: [elixir, phoenix]
  type: docs
- name: GitHub
  triggers: [code]
  type: code
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	sources, err := LoadSources(path)
	if err != nil {
		t.Fatalf("LoadSources() error = %v", err)
	}
	if len(sources) != 2 || sources[0].Name != "HexDocs" {
		t.Errorf("sources = %+v", sources)
	}
	if !reflect.DeepEqual(sources[0].Triggers, []string{"elixir", "phoenix"}) {
		t.Errorf("triggers = %v", sources[0].Triggers)
	}
}

func TestLoadSourcesMissing(t *testing.T) {
	if _, err := LoadSources(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadSources() expected error for missing file")
	}
}
