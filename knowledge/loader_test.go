package knowledge_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbrouter/kbrouter/knowledge"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"manual.pdf":  knowledge.KindPDF,
		"MANUAL.PDF":  knowledge.KindPDF,
		"notes.txt":   knowledge.KindText,
		"README.md":   knowledge.KindMarkdown,
		"index.html":  knowledge.KindHTML,
		"page.htm":    knowledge.KindHTML,
		"export.csv":  knowledge.KindText,
		"changes.log": knowledge.KindText,
	}
	for name, want := range tests {
		got, err := knowledge.KindOf(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := knowledge.KindOf("image.png")
	assert.Error(t, err)
}

func TestLoad_Text(t *testing.T) {
	docs, err := knowledge.Load(context.Background(), "handbook.txt", []byte(handbook))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].PageContent, "Warranty coverage")
	assert.Equal(t, "handbook.txt", docs[0].Metadata["source"])
	assert.Equal(t, knowledge.KindText, docs[0].Metadata["type"])
}

func TestLoad_Markdown(t *testing.T) {
	md := "# Service\n\nChange the **oil** every 5,000 miles.\n\n- check tyres\n- check battery\n"
	docs, err := knowledge.Load(context.Background(), "service.md", []byte(md))
	require.NoError(t, err)
	require.Len(t, docs, 1)

	text := docs[0].PageContent
	assert.Contains(t, text, "Service")
	assert.Contains(t, text, "Change the oil every 5,000 miles.")
	assert.Contains(t, text, "check battery")
	assert.NotContains(t, text, "**")
	assert.NotContains(t, text, "<p>")
}

func TestLoad_HTMLDropsScripts(t *testing.T) {
	html := `<html><head><script>alert("x")</script></head>
<body><h1>Recall notice</h1><p>Brake pads on 2019 models must be replaced.</p></body></html>`
	docs, err := knowledge.Load(context.Background(), "recall.html", []byte(html))
	require.NoError(t, err)
	require.Len(t, docs, 1)

	text := docs[0].PageContent
	assert.Contains(t, text, "Recall notice")
	assert.Contains(t, text, "Brake pads on 2019 models must be replaced.")
	assert.NotContains(t, text, "alert")
}

func TestLoad_EmptyTextYieldsNothing(t *testing.T) {
	docs, err := knowledge.Load(context.Background(), "blank.txt", []byte("   \n\n "))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestLoad_InvalidPDF(t *testing.T) {
	_, err := knowledge.Load(context.Background(), "broken.pdf", []byte("definitely not a pdf"))
	assert.Error(t, err)
}

func TestLoad_Unsupported(t *testing.T) {
	_, err := knowledge.Load(context.Background(), "archive.zip", []byte("PK"))
	assert.Error(t, err)
}

func TestSplitter(t *testing.T) {
	s, err := knowledge.NewSplitter(0, -1)
	require.NoError(t, err)

	long := strings.Repeat(handbook+"\n\n", 6)
	docs, err := knowledge.Load(context.Background(), "long.txt", []byte(long))
	require.NoError(t, err)

	chunks, err := knowledge.Split(s, docs)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c.PageContent)), knowledge.DefaultChunkSize)
		assert.Equal(t, "long.txt", c.Metadata["source"])
	}

	_, err = knowledge.NewSplitter(100, 100)
	assert.Error(t, err)
}
