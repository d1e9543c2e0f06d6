package knowledge

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gomarkdown/markdown"
	"github.com/microcosm-cc/bluemonday"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
)

// Document kinds recorded in the "type" metadata field.
const (
	KindPDF      = "pdf"
	KindText     = "text"
	KindMarkdown = "markdown"
	KindHTML     = "html"
)

// KindOf maps a file name to a document kind by extension.
func KindOf(name string) (string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return KindPDF, nil
	case ".txt", ".text", ".csv", ".log":
		return KindText, nil
	case ".md", ".markdown":
		return KindMarkdown, nil
	case ".html", ".htm":
		return KindHTML, nil
	}
	return "", fmt.Errorf("unsupported file type: %s", filepath.Ext(name))
}

// Load parses data according to the extension of name. Every returned
// document carries "source" and "type" metadata.
func Load(ctx context.Context, name string, data []byte) ([]schema.Document, error) {
	kind, err := KindOf(name)
	if err != nil {
		return nil, err
	}

	var docs []schema.Document
	switch kind {
	case KindPDF:
		docs, err = documentloaders.NewPDF(bytes.NewReader(data), int64(len(data))).Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("parse pdf %s: %w", name, err)
		}
	case KindText:
		docs, err = documentloaders.NewText(bytes.NewReader(data)).Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("read text %s: %w", name, err)
		}
	case KindMarkdown:
		docs = []schema.Document{{PageContent: htmlText(markdown.ToHTML(data, nil, nil))}}
	case KindHTML:
		docs = []schema.Document{{PageContent: htmlText(bluemonday.UGCPolicy().SanitizeBytes(data))}}
	}

	out := docs[:0]
	for _, d := range docs {
		if strings.TrimSpace(d.PageContent) == "" {
			continue
		}
		if d.Metadata == nil {
			d.Metadata = map[string]any{}
		}
		d.Metadata["source"] = name
		d.Metadata["type"] = kind
		out = append(out, d)
	}
	return out, nil
}

const blockSelector = "p, li, h1, h2, h3, h4, h5, h6, pre, blockquote, td, th, dt, dd"

// htmlText extracts readable text from HTML, one paragraph per block.
func htmlText(html []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript").Remove()

	var blocks []string
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		if s.Find(blockSelector).Length() > 0 {
			return
		}
		if text := strings.TrimSpace(s.Text()); text != "" {
			blocks = append(blocks, text)
		}
	})
	if len(blocks) == 0 {
		return strings.TrimSpace(doc.Text())
	}
	return strings.Join(blocks, "\n\n")
}
