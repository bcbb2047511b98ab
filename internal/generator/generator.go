// Package generator provides the text generation boundary: the interface the
// engine calls to produce enhanced solutions, and its Anthropic-backed
// implementation.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
)

// TextGenerator produces text for a prompt. A failed generation returns an
// error; callers treat it as "this cycle failed", never as fatal.
type TextGenerator interface {
	Generate(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// defaultTimeout bounds one generation call.
const defaultTimeout = 120 * time.Second

// Anthropic is the Claude-backed TextGenerator.
type Anthropic struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	timeout   time.Duration
	logger    *slog.Logger
}

// NewAnthropic creates an Anthropic generator. modelType selects the model
// tier ("haiku", "sonnet", "opus"); anything else falls back to sonnet. The
// client reads ANTHROPIC_API_KEY from the environment.
func NewAnthropic(modelType string, logger *slog.Logger) *Anthropic {
	if logger == nil {
		logger = slog.Default()
	}
	return &Anthropic{
		client:    anthropic.NewClient(),
		model:     modelFor(modelType),
		maxTokens: 8192,
		timeout:   defaultTimeout,
		logger:    logger,
	}
}

// WithTimeout overrides the per-call timeout.
func (a *Anthropic) WithTimeout(d time.Duration) *Anthropic {
	a.timeout = d
	return a
}

func modelFor(modelType string) anthropic.Model {
	switch modelType {
	case "haiku":
		return anthropic.ModelClaudeHaiku4_5
	case "opus":
		return anthropic.ModelClaudeOpus4_0
	default:
		return anthropic.ModelClaudeSonnet4_5
	}
}

// Generate sends the prompt and returns the concatenated text blocks of the
// response. An empty response is an error: the caller must be able to tell
// "nothing generated" apart from a legitimate empty solution.
func (a *Anthropic) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			{
				Role: anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{
					{OfText: &anthropic.TextBlockParam{Text: prompt}},
				},
			},
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		a.logger.Warn("generation call failed", "model", a.model, "error", err)
		return "", fmt.Errorf("generating text: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("generation returned no text")
	}
	return text, nil
}
