package indexer

import (
	"context"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"golang.org/x/sync/errgroup"
)

const (
	// MinChunkLength is the minimum chunk size in characters; smaller
	// paragraphs and split remainders are dropped.
	MinChunkLength = 100
	maxChunkLength = 1000
	// softMergeCap bounds when an undersized trailing chunk may absorb
	// the next paragraph.
	softMergeCap = 600

	maxSectionWorkers = 8
)

// sectionRe splits converted markup into sections at top-level and
// second-level headings.
var sectionRe = regexp.MustCompile(`\n#{1,2} ?`)

// skipTitles are front-matter section titles excluded from indexing,
// matched case-insensitively against the section's first line.
var skipTitles = map[string]struct{}{
	"contents":          {},
	"preface":           {},
	"index":             {},
	"appendix":          {},
	"acknowledgments":   {},
	"bibliography":      {},
	"about the authors": {},
	"chapter notes":     {},
}

// Chunker splits converted markup into bounded-size prose chunks
// using goldmark AST parsing. Code blocks, tables, and raw HTML are
// excluded; list items are kept only as droppable "- " lines.
type Chunker struct {
	parser goldmark.Markdown
}

func NewChunker() *Chunker {
	return &Chunker{
		parser: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
	}
}

// Chunk splits markup into sections and packs each section's prose
// paragraphs into chunks. Sections are processed in parallel; each
// worker owns its own packing state, and results are concatenated in
// section order.
func (c *Chunker) Chunk(ctx context.Context, markup, sourcePath string) ([]Chunk, error) {
	// A leading "\n" makes a heading at offset zero a section
	// boundary rather than part of the discarded preamble.
	sections := sectionRe.Split("\n"+markup, -1)[1:]
	if len(sections) == 0 {
		return nil, nil
	}

	results := make([][]Chunk, len(sections))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxSectionWorkers)
	for i, section := range sections {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = c.chunkSection(section, sourcePath)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var chunks []Chunk
	for _, r := range results {
		chunks = append(chunks, r...)
	}
	return chunks, nil
}

// chunkSection extracts a section's prose paragraphs and packs them
// greedily: oversized paragraphs split at the last space before the
// size cap, undersized ones merge into an open trailing chunk.
func (c *Chunker) chunkSection(section, sourcePath string) []Chunk {
	title := strings.TrimSpace(strings.SplitN(section, "\n", 2)[0])
	if _, skip := skipTitles[strings.ToLower(title)]; skip {
		return nil
	}

	paras := c.proseParagraphs([]byte(section))

	var chunks []Chunk
	add := func(text string) {
		chunks = append(chunks, Chunk{
			Text:    text,
			Section: "# " + title,
			Source:  sourcePath,
		})
	}

	for _, para := range paras {
		para = strings.TrimSpace(para)
		if len(para) < MinChunkLength || strings.HasPrefix(para, "- ") {
			continue
		}
		for len(para) >= MinChunkLength {
			if len(para) > maxChunkLength {
				cut := strings.LastIndex(para[:maxChunkLength], " ")
				if cut <= 0 {
					cut = maxChunkLength
				}
				add(para[:cut])
				para = strings.TrimSpace(para[cut:])
				continue
			}
			if n := len(chunks); n > 0 && len(chunks[n-1].Text) < softMergeCap {
				merged := chunks[n-1].Text + " " + para
				if len(merged) > maxChunkLength {
					add(para)
				} else {
					chunks[n-1].Text = merged
				}
			} else {
				add(para)
			}
			break
		}
	}
	return chunks
}

// proseParagraphs renders a section's markdown to prose paragraphs.
// Non-prose blocks (code, tables, raw HTML, thematic breaks) render
// as nothing; list items render as "- " lines so the paragraph filter
// discards them.
func (c *Chunker) proseParagraphs(src []byte) []string {
	reader := text.NewReader(src)
	doc := c.parser.Parser().Parse(reader)

	var paras []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.ThematicBreak:
			return ast.WalkSkipChildren, nil

		case *ast.Heading:
			if t := inlineText(node, src); t != "" {
				paras = append(paras, t)
			}
			return ast.WalkSkipChildren, nil

		case *ast.Paragraph:
			// A paragraph inside a list item belongs to the item.
			if _, inList := node.Parent().(*ast.ListItem); inList {
				return ast.WalkContinue, nil
			}
			if t := inlineText(node, src); t != "" {
				paras = append(paras, t)
			}
			return ast.WalkSkipChildren, nil

		case *ast.ListItem:
			if t := inlineText(node, src); t != "" {
				paras = append(paras, "- "+t)
			}
			return ast.WalkSkipChildren, nil

		default:
			if strings.Contains(n.Kind().String(), "Table") {
				return ast.WalkSkipChildren, nil
			}
			return ast.WalkContinue, nil
		}
	})
	return paras
}

// inlineText collects the plain text of a node's inline children,
// joining soft line breaks with spaces.
func inlineText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			sb.Write(v.Segment.Value(src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
