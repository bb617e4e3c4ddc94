package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"sage/internal/fusion"
	"sage/internal/llm"
)

type fakeFuser struct {
	result *fusion.Result
	err    error
}

func (f *fakeFuser) Fuse(_ context.Context, _, _ string) (*fusion.Result, error) {
	return f.result, f.err
}

type fakeStore struct {
	facts        []string
	chunkCount   uint64
	history      []string
	storedFacts  []string
	historyErr   error
	factsScrolls int
}

func (f *fakeStore) AddHistory(_ context.Context, query, answer, _, _ string) error {
	f.history = append(f.history, "Q: "+query+"\nA: "+answer)
	return f.historyErr
}

func (f *fakeStore) StoreFacts(_ context.Context, facts []string, _, _ string) error {
	f.storedFacts = append(f.storedFacts, facts...)
	return nil
}

func (f *fakeStore) UserFacts(_ context.Context, _ string, _ int) ([]string, error) {
	f.factsScrolls++
	return f.facts, nil
}

func (f *fakeStore) CorpusSize(_ context.Context) (uint64, error) {
	return f.chunkCount, nil
}

type fakeStreamer struct {
	chunks   []string
	err      error
	messages []llm.Message
}

func (f *fakeStreamer) StreamChat(_ context.Context, messages []llm.Message, _ llm.ChatParams, callback func(string) error) error {
	f.messages = messages
	for _, chunk := range f.chunks {
		if err := callback(chunk); err != nil {
			return err
		}
	}
	return f.err
}

type fakeExtractor struct {
	facts []string
}

func (f *fakeExtractor) Extract(_ context.Context, _ string) ([]string, error) {
	if f.facts == nil {
		return []string{"none"}, nil
	}
	return f.facts, nil
}

func newTestService(fuser *fakeFuser, store *fakeStore, streamer *fakeStreamer, extractor *fakeExtractor) *QueryService {
	return NewQueryService(fuser, store, streamer, extractor)
}

func TestStreamRelaysFragmentsAndCommitsHistory(t *testing.T) {
	store := &fakeStore{chunkCount: 42}
	streamer := &fakeStreamer{chunks: []string{"Go ", "is ", "fun"}}
	svc := newTestService(
		&fakeFuser{result: &fusion.Result{Context: "some context"}},
		store, streamer, &fakeExtractor{},
	)

	var got []string
	stats, err := svc.Stream(context.Background(), "what is Go?", "sess-1", "max", func(frag string) error {
		got = append(got, frag)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	if strings.Join(got, "|") != "Go |is |fun" {
		t.Errorf("fragments = %v", got)
	}
	if len(store.history) != 1 || store.history[0] != "Q: what is Go?\nA: Go is fun" {
		t.Errorf("history = %v", store.history)
	}
	if stats.ChunkCount != 42 {
		t.Errorf("ChunkCount = %d, want 42", stats.ChunkCount)
	}
	if stats.TTFB <= 0 || stats.Generation < stats.TTFB {
		t.Errorf("timings = %+v", stats)
	}
}

func TestStreamEmptyQueryRejected(t *testing.T) {
	svc := newTestService(&fakeFuser{}, &fakeStore{}, &fakeStreamer{}, &fakeExtractor{})
	_, err := svc.Stream(context.Background(), "   ", "sess-1", "max", func(string) error { return nil })
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Stream() error = %v, want ErrInvalidInput", err)
	}
}

func TestStreamInferenceFailureEmitsInlineError(t *testing.T) {
	store := &fakeStore{}
	streamer := &fakeStreamer{chunks: []string{"partial "}, err: errors.New("connection refused")}
	svc := newTestService(&fakeFuser{result: &fusion.Result{}}, store, streamer, &fakeExtractor{})

	var got []string
	_, err := svc.Stream(context.Background(), "question", "sess-1", "max", func(frag string) error {
		got = append(got, frag)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream() error = %v, inference failure must not fail the exchange", err)
	}

	if len(got) != 2 || !strings.HasPrefix(got[1], "Error: inference service connection failed") {
		t.Errorf("fragments = %v, want partial then inline error", got)
	}
	// The partial answer keeps its informational value.
	if len(store.history) != 1 || !strings.Contains(store.history[0], "A: partial ") {
		t.Errorf("history = %v, want partial answer committed", store.history)
	}
}

func TestStreamEmitFailureAborts(t *testing.T) {
	store := &fakeStore{}
	streamer := &fakeStreamer{chunks: []string{"a", "b", "c"}}
	svc := newTestService(&fakeFuser{result: &fusion.Result{}}, store, streamer, &fakeExtractor{})

	calls := 0
	_, err := svc.Stream(context.Background(), "question", "sess-1", "max", func(string) error {
		calls++
		return errors.New("client gone")
	})
	if err == nil {
		t.Fatal("Stream() expected error when emit fails")
	}
	if calls != 1 {
		t.Errorf("emit called %d times after failure, want 1", calls)
	}
	if len(store.history) != 0 {
		t.Errorf("history = %v, want nothing committed after client loss", store.history)
	}
}

func TestStreamStoresExtractedFacts(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(
		&fakeFuser{result: &fusion.Result{}},
		store,
		&fakeStreamer{chunks: []string{"ok"}},
		&fakeExtractor{facts: []string{"User likes coding"}},
	)

	if _, err := svc.Stream(context.Background(), "I like coding", "sess-1", "max", func(string) error { return nil }); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if len(store.storedFacts) != 1 || store.storedFacts[0] != "User likes coding" {
		t.Errorf("storedFacts = %v", store.storedFacts)
	}
}

func TestStreamSentinelFactsNotStored(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(
		&fakeFuser{result: &fusion.Result{}},
		store,
		&fakeStreamer{chunks: []string{"ok"}},
		&fakeExtractor{}, // returns ["none"]
	)

	if _, err := svc.Stream(context.Background(), "It is raining", "sess-1", "max", func(string) error { return nil }); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if len(store.storedFacts) != 0 {
		t.Errorf("storedFacts = %v, want none for sentinel", store.storedFacts)
	}
}

func TestStreamFusionFailureDegrades(t *testing.T) {
	streamer := &fakeStreamer{chunks: []string{"answer"}}
	svc := newTestService(
		&fakeFuser{err: errors.New("parser down")},
		&fakeStore{},
		streamer,
		&fakeExtractor{},
	)

	var got []string
	if _, err := svc.Stream(context.Background(), "question", "sess-1", "max", func(frag string) error {
		got = append(got, frag)
		return nil
	}); err != nil {
		t.Fatalf("Stream() error = %v, fusion failure must degrade not fail", err)
	}
	if len(got) != 1 {
		t.Errorf("fragments = %v", got)
	}
	// Context portion of the prompt is empty but present.
	if !strings.Contains(streamer.messages[1].Content, "Context (optional") {
		t.Errorf("user prompt = %q", streamer.messages[1].Content)
	}
}

func TestBuildPrompt(t *testing.T) {
	msgs := BuildPrompt(strings.Repeat("z", 5000), []string{"f1", "f2", "f3", "f4", "f5", "f6"}, "the query")
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[1].Role != "user" {
		t.Errorf("roles = %s/%s", msgs[0].Role, msgs[1].Role)
	}
	if strings.Contains(msgs[0].Content, "f6") {
		t.Error("system prompt includes more than five facts")
	}
	if !strings.Contains(msgs[0].Content, "f5") {
		t.Error("system prompt missing fifth fact")
	}
	if want := "\n\nQuery: the query"; !strings.HasSuffix(msgs[1].Content, want) {
		t.Errorf("user prompt = %q, want suffix %q", msgs[1].Content, want)
	}
	// 4096 context chars plus the fixed wrapper text.
	if strings.Count(msgs[1].Content, "z") != maxContextChars {
		t.Errorf("context not truncated to %d chars", maxContextChars)
	}
}

func TestBuildPromptTruncatesOnRuneBoundary(t *testing.T) {
	msgs := BuildPrompt(strings.Repeat("é", 5000), nil, "q")
	if !utf8.ValidString(msgs[1].Content) {
		t.Fatal("user prompt contains a split rune after truncation")
	}
	if got := strings.Count(msgs[1].Content, "é"); got != maxContextChars {
		t.Errorf("context truncated to %d runes, want %d", got, maxContextChars)
	}
}

func TestBuildPromptNoFacts(t *testing.T) {
	msgs := BuildPrompt("", nil, "q")
	if !strings.Contains(msgs[0].Content, "No known user facts.") {
		t.Errorf("system prompt = %q", msgs[0].Content)
	}
}
