package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kbrouter/kbrouter/sqlagent"
)

type relevanceReply struct {
	Relevance  string   `json:"relevance"`
	Confidence *float64 `json:"confidence"`
}

// Classify asks the model whether question targets the schema. A reply that
// is not exactly "relevant" or "not_relevant" is a *sqlagent.ClassificationError.
func (c *Client) Classify(ctx context.Context, question, schema string) (sqlagent.Classification, error) {
	raw, err := c.generate(ctx, "classify", fmt.Sprintf(classifySystem, schema), "Question: "+question, true)
	if err != nil {
		return sqlagent.Classification{}, err
	}

	var (
		reply relevanceReply
		label string
	)
	if decodeJSON(raw, &reply) == nil {
		label = reply.Relevance
	} else {
		label = stripFences(raw)
	}

	rel, err := sqlagent.ParseRelevance(label)
	if err != nil {
		return sqlagent.Classification{}, err
	}

	confidence := 1.0
	if reply.Confidence != nil {
		confidence = min(max(*reply.Confidence, 0), 1)
	}
	c.logger.Debug("relevance determined: %s (%.2f)", rel, confidence)
	return sqlagent.Classification{Label: rel, Confidence: confidence}, nil
}

type sqlReply struct {
	SQLQuery string `json:"sql_query"`
}

// Synthesize asks the model for one SQL statement answering question.
func (c *Client) Synthesize(ctx context.Context, question, schema string) (string, error) {
	raw, err := c.generate(ctx, "synthesize", fmt.Sprintf(synthesizeSystem, schema), "Question: "+question, true)
	if err != nil {
		return "", err
	}

	var (
		reply     sqlReply
		statement string
	)
	if decodeJSON(raw, &reply) == nil {
		statement = reply.SQLQuery
	} else {
		statement = stripFences(raw)
	}
	statement = strings.TrimSpace(statement)
	if statement == "" {
		return "", &sqlagent.InferenceError{Op: "synthesize", Err: errors.New("model returned an empty statement")}
	}
	return statement, nil
}

type rewriteReply struct {
	Question string `json:"question"`
}

// Rewrite rephrases the original question for another synthesis attempt.
func (c *Client) Rewrite(ctx context.Context, original string) (string, error) {
	raw, err := c.generate(ctx, "rewrite", rewriteSystem, "Original Question: "+original, true)
	if err != nil {
		return "", err
	}

	var reply rewriteReply
	if decodeJSON(raw, &reply) == nil && strings.TrimSpace(reply.Question) != "" {
		return strings.TrimSpace(reply.Question), nil
	}
	return stripFences(raw), nil
}

// Answer turns a non-empty result into prose.
func (c *Client) Answer(ctx context.Context, question, sqlQuery string, columns []string, rows []sqlagent.Row, truncated bool) (string, error) {
	human := fmt.Sprintf(answerHuman, question, sqlQuery, sqlagent.RenderRows(columns, rows, truncated))
	if truncated {
		human += fmt.Sprintf(answerTruncated, len(rows))
	}
	return c.generate(ctx, "answer", answerSystem, human, false)
}

// Generate answers prompt under the system instruction. It backs the
// knowledge base QA engine.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	return c.generate(ctx, "generate", system, prompt, false)
}
