package document

import (
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/ledongthuc/pdf"
)

var extraneousWhitespace = regexp.MustCompile(`\s+`)

// LoadFile reads a records fixture: a JSON array of Record as the document
// store would serve it.
func LoadFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []Record
	if err := sonic.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode records file %s: %w", path, err)
	}
	return records, nil
}

// ImportPDF synthesizes plain text records from a local PDF, one per page, so
// the viewer works without a document store or extraction pipeline. The
// result carries no component structure; it renders through the plain-text
// path.
func ImportPDF(path string) ([]Record, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer file.Close()

	records := []Record{}
	for num := 1; num <= reader.NumPage(); num++ {
		page := reader.Page(num)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			// One unreadable page should not sink the document.
			continue
		}
		text := strings.TrimSpace(extraneousWhitespace.ReplaceAllString(content, " "))
		if text == "" {
			continue
		}
		raw, err := sonic.Marshal(text)
		if err != nil {
			return nil, err
		}
		records = append(records, Record{
			ID:      fmt.Sprintf("pdf-%d", num),
			Page:    num,
			Type:    TypeText,
			Content: raw,
		})
	}
	return records, nil
}

// PlainTextOf decodes the payload of a text or formatted record. Formatted
// blobs are HTML-ish; they flatten to paragraph-separated plain text.
func PlainTextOf(rec Record) string {
	switch rec.Type {
	case TypeText:
		var text string
		if err := sonic.Unmarshal(rec.Content, &text); err == nil {
			return text
		}
	case TypeFormatted:
		var wrapper struct {
			Content string `json:"content"`
		}
		if err := sonic.Unmarshal(rec.Content, &wrapper); err == nil {
			return flattenFormatted(wrapper.Content)
		}
	}
	return ""
}

var (
	blockBreakTags = regexp.MustCompile(`(?i)<br\s*/?>|</(?:p|div|h[1-6]|li|tr)>`)
	markupTags     = regexp.MustCompile(`<[^>]+>`)
	excessBreaks   = regexp.MustCompile(`\n{3,}`)
)

// flattenFormatted turns block-level tag boundaries into paragraph breaks
// and drops the remaining markup.
func flattenFormatted(blob string) string {
	text := blockBreakTags.ReplaceAllString(blob, "\n\n")
	text = markupTags.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = excessBreaks.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
