package indexer

import (
	"context"
	"strings"
	"testing"
)

func para(word string, n int) string {
	return strings.TrimSpace(strings.Repeat(word+" ", n))
}

func TestChunkDiscardsPreamble(t *testing.T) {
	markup := para("preamble", 20) + "\n\n# Chapter One\n\n" + para("body", 30)

	chunks, err := NewChunker().Chunk(context.Background(), markup, "book.pdf")
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("Chunk() = %d chunks, want 1", len(chunks))
	}
	if strings.Contains(chunks[0].Text, "preamble") {
		t.Errorf("preamble text survived: %q", chunks[0].Text)
	}
	if chunks[0].Section != "# Chapter One" {
		t.Errorf("Section = %q, want %q", chunks[0].Section, "# Chapter One")
	}
	if chunks[0].Source != "book.pdf" {
		t.Errorf("Source = %q, want %q", chunks[0].Source, "book.pdf")
	}
}

func TestChunkHeadingAtStartIsBoundary(t *testing.T) {
	markup := "# Opening\n\n" + para("text", 30)

	chunks, err := NewChunker().Chunk(context.Background(), markup, "doc.md")
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("Chunk() = %d chunks, want 1", len(chunks))
	}
	if chunks[0].Section != "# Opening" {
		t.Errorf("Section = %q, want %q", chunks[0].Section, "# Opening")
	}
}

func TestChunkSkipsDenylistedSections(t *testing.T) {
	markup := "# Contents\n\n" + para("toc", 40) +
		"\n\n# Acknowledgments\n\n" + para("thanks", 40) +
		"\n\n# Real Chapter\n\n" + para("keep", 40)

	chunks, err := NewChunker().Chunk(context.Background(), markup, "doc.md")
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("Chunk() = %d chunks, want 1: %+v", len(chunks), chunks)
	}
	if !strings.Contains(chunks[0].Text, "keep") {
		t.Errorf("kept chunk has wrong text: %q", chunks[0].Text)
	}
}

func TestChunkDropsNonProse(t *testing.T) {
	markup := "# Chapter\n\n" +
		"short\n\n" +
		"- " + para("listitem", 30) + "\n\n" +
		"```\n" + para("code", 40) + "\n```\n\n" +
		para("prose", 30)

	chunks, err := NewChunker().Chunk(context.Background(), markup, "doc.md")
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("Chunk() = %d chunks, want 1: %+v", len(chunks), chunks)
	}
	for _, bad := range []string{"short", "listitem", "code"} {
		if strings.Contains(chunks[0].Text, bad) {
			t.Errorf("non-prose %q survived in %q", bad, chunks[0].Text)
		}
	}
}

func TestChunkMergesShortParagraphs(t *testing.T) {
	first := para("alpha", 30) // ~179 chars, under the merge cap
	second := para("beta", 30)
	markup := "# Chapter\n\n" + first + "\n\n" + second

	chunks, err := NewChunker().Chunk(context.Background(), markup, "doc.md")
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("Chunk() = %d chunks, want 1 merged", len(chunks))
	}
	want := first + " " + second
	if chunks[0].Text != want {
		t.Errorf("merged text = %q, want %q", chunks[0].Text, want)
	}
}

func TestChunkDoesNotMergeIntoFullChunk(t *testing.T) {
	// 700-char first paragraph is past the soft merge cap.
	first := para("longerword", 64)[:700]
	first = first[:strings.LastIndex(first, " ")]
	second := para("beta", 30)
	markup := "# Chapter\n\n" + first + "\n\n" + second

	chunks, err := NewChunker().Chunk(context.Background(), markup, "doc.md")
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("Chunk() = %d chunks, want 2", len(chunks))
	}
}

func TestChunkSplitsOversizedParagraph(t *testing.T) {
	markup := "# Chapter\n\n" + para("word", 500) // 2499 chars

	chunks, err := NewChunker().Chunk(context.Background(), markup, "doc.md")
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("Chunk() = %d chunks, want 3", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Text) > maxChunkLength {
			t.Errorf("chunk %d length %d exceeds %d", i, len(c.Text), maxChunkLength)
		}
		if len(c.Text) < MinChunkLength {
			t.Errorf("chunk %d length %d below %d", i, len(c.Text), MinChunkLength)
		}
	}
}

func TestChunkDropsShortSplitRemainder(t *testing.T) {
	// 1049 chars: the split leaves a remainder under the minimum.
	markup := "# Chapter\n\n" + para("word", 210)

	chunks, err := NewChunker().Chunk(context.Background(), markup, "doc.md")
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("Chunk() = %d chunks, want 1: %+v", len(chunks), chunks)
	}
}

func TestChunkPreservesSectionOrder(t *testing.T) {
	markup := "# First\n\n" + para("one", 40) + "\n\n# Second\n\n" + para("two", 40)

	chunks, err := NewChunker().Chunk(context.Background(), markup, "doc.md")
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("Chunk() = %d chunks, want 2", len(chunks))
	}
	if chunks[0].Section != "# First" || chunks[1].Section != "# Second" {
		t.Errorf("sections out of order: %q, %q", chunks[0].Section, chunks[1].Section)
	}
}
