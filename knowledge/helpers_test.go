package knowledge_test

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"unicode"
)

// hashEmbedder buckets words by hash so texts sharing words score high.
type hashEmbedder struct {
	fail  error
	calls int
}

func (h *hashEmbedder) vector(text string) []float32 {
	v := make([]float32, 64)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		f := fnv.New32a()
		f.Write([]byte(w))
		v[f.Sum32()%64]++
	}
	return v
}

func (h *hashEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	h.calls++
	if h.fail != nil {
		return nil, h.fail
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *hashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if h.fail != nil {
		return nil, h.fail
	}
	return h.vector(text), nil
}

type recordingGenerator struct {
	system, prompt string
	reply          string
	err            error
}

func (g *recordingGenerator) Generate(_ context.Context, system, prompt string) (string, error) {
	g.system, g.prompt = system, prompt
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

var errEmbed = errors.New("embedding endpoint unavailable")

const handbook = `Warranty coverage lasts three years or 36,000 miles, whichever comes first.

The battery should be inspected every twelve months. Replace the battery when the charge drops below seventy percent.

Oil changes are due every 5,000 miles for petrol engines. Diesel engines need an oil change every 7,500 miles.

Tyre pressure must be checked monthly and before long trips.`
