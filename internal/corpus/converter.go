package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"sage/internal/contextutil"
)

// pageBreak separates pages in converted PDF markup. It is stored in
// the cache but stripped before chunking so paragraphs spanning pages
// stay whole.
const pageBreak = "\n-----\n"

// Converter turns corpus documents into markdown-flavored text.
// PDF conversions are cached; markdown files are read as-is.
type Converter struct {
	cache *Cache
}

func NewConverter(cache *Cache) *Converter {
	return &Converter{cache: cache}
}

// Convert returns the markup for the document at path.
func (c *Converter) Convert(ctx context.Context, path string) (string, error) {
	logger := contextutil.LoggerFromContext(ctx)
	name := filepath.Base(path)

	if strings.EqualFold(filepath.Ext(path), ".md") {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", name, err)
		}
		return string(data), nil
	}

	if c.cache != nil {
		if markup, ok, err := c.cache.Get(name); err != nil {
			logger.Warn("conversion cache read failed", "document", name, "error", err)
		} else if ok {
			logger.Debug("conversion cache hit", "document", name)
			return strings.ReplaceAll(markup, pageBreak, " "), nil
		}
	}

	logger.Info("converting document", "document", name)
	markup, err := convertPDF(path)
	if err != nil {
		return "", fmt.Errorf("failed to convert %s: %w", name, err)
	}

	if c.cache != nil {
		if err := c.cache.Put(name, markup); err != nil {
			logger.Warn("conversion cache write failed", "document", name, "error", err)
		}
	}

	return strings.ReplaceAll(markup, pageBreak, " "), nil
}

// convertPDF extracts plain text from every page and prepends a
// single title heading so the result chunks like any other document.
func convertPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return "# " + title + "\n\n" + strings.Join(pages, pageBreak), nil
}
