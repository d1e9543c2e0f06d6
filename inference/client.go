// Package inference implements the model-backed collaborators of the SQL
// agent and the knowledge base on top of langchaingo.
//
// Every call runs at temperature 0. Failures are returned as
// *sqlagent.InferenceError and are never retried.
package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/kbrouter/kbrouter/log"
	"github.com/kbrouter/kbrouter/sqlagent"
)

// Client sends prompts to a chat model. It implements sqlagent.Classifier,
// sqlagent.Synthesizer, sqlagent.Rewriter, sqlagent.Answerer and
// knowledge.Generator.
type Client struct {
	llm      llms.Model
	logger   log.Logger
	jsonMode bool
}

var (
	_ sqlagent.Classifier  = (*Client)(nil)
	_ sqlagent.Synthesizer = (*Client)(nil)
	_ sqlagent.Rewriter    = (*Client)(nil)
	_ sqlagent.Answerer    = (*Client)(nil)
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the client's logger.
func WithLogger(logger log.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithJSONMode toggles the provider's JSON response format for structured
// prompts. It is on by default; turn it off for providers that reject it.
func WithJSONMode(enabled bool) ClientOption {
	return func(c *Client) {
		c.jsonMode = enabled
	}
}

// NewClient wraps llm.
func NewClient(llm llms.Model, opts ...ClientOption) *Client {
	c := &Client{
		llm:      llm,
		logger:   log.GetDefaultLogger(),
		jsonMode: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.NoOpLogger{}
	}
	return c
}

func (c *Client) generate(ctx context.Context, op, system, human string, structured bool) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, human),
	}
	opts := []llms.CallOption{llms.WithTemperature(0)}
	if structured && c.jsonMode {
		opts = append(opts, llms.WithJSONMode())
	}

	resp, err := c.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", &sqlagent.InferenceError{Op: op, Err: err}
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", &sqlagent.InferenceError{Op: op, Err: errors.New("model returned no choices")}
	}

	content := strings.TrimSpace(resp.Choices[0].Content)
	c.logger.Debug("%s: %d chars", op, len(content))
	return content, nil
}

// decodeJSON unmarshals a model reply into v after removing markdown code
// fences and any prose around the outermost object.
func decodeJSON(raw string, v any) error {
	s := stripFences(raw)
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		s = s[start : end+1]
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("decode model reply: %w", err)
	}
	return nil
}

var fenceRE = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fenceRE.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}
