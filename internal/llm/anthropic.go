// Package llm wraps the Anthropic API as the persona response generator.
// Callers hand it a composed system instruction plus an ordered message
// list and get back either a full reply or a chunk stream.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sagechat/sage/internal/models"
)

// ChatMessage is one turn of conversation handed to the provider.
type ChatMessage struct {
	Role    models.Role
	Content string
}

// Client calls the Anthropic Messages API.
type Client struct {
	api       *anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
}

// New builds a client for the given model. timeout bounds every call,
// streaming included.
func New(apiKey, model string, maxTokens int64, timeout time.Duration) *Client {
	api := anthropic.NewClient(option.WithAPIKey(apiKey))
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		api:       &api,
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
	}
}

func (c *Client) params(system string, msgs []ChatMessage) anthropic.MessageNewParams {
	apiMsgs := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == models.RoleAssistant {
			apiMsgs = append(apiMsgs, anthropic.NewAssistantMessage(block))
		} else {
			apiMsgs = append(apiMsgs, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  apiMsgs,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params
}

// Complete performs a non-streaming call and returns the reply text.
func (c *Client) Complete(ctx context.Context, system string, msgs []ChatMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.Messages.New(ctx, c.params(system, msgs))
	if err != nil {
		return "", fmt.Errorf("anthropic complete: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// Stream performs a streaming call, invoking onChunk for every text delta
// as it arrives. The accumulated reply text is returned once the stream
// ends; on a mid-stream error the text accumulated so far is returned
// alongside the error.
func (c *Client) Stream(ctx context.Context, system string, msgs []ChatMessage, onChunk func(string)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stream := c.api.Messages.NewStreaming(ctx, c.params(system, msgs))
	defer stream.Close()

	var sb strings.Builder
	for stream.Next() {
		event := stream.Current()
		switch evt := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := evt.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				sb.WriteString(delta.Text)
				if onChunk != nil {
					onChunk(delta.Text)
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return sb.String(), fmt.Errorf("anthropic stream: %w", err)
	}
	return sb.String(), nil
}
