// Package llm generates interviewer reactions and code-review feedback via
// the OpenAI chat completions API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyCompletion is returned when the API answers with no choices.
var ErrEmptyCompletion = errors.New("llm: empty completion")

const (
	reactionModel = openai.GPT4oMini

	reactionPrompt = "You are a friendly interviewer. Give a brief, natural 1-sentence reaction " +
		"to what the person just said. Be encouraging and conversational. Don't ask questions. " +
		"Keep it under 15 words."

	reviewPrompt = `You are a technical interviewer reviewing code written under time pressure and strict circumstances.

Focus on:
1. Overall approach and logic
2. Algorithm correctness (does the logic make sense?)
3. Time and space complexity analysis
4. Potential optimizations
5. Problem-solving approach

Be lenient about:
- Minor syntax errors (they're coding under pressure)
- Missing semicolons, brackets, or small typos
- Variable naming inconsistencies

Be encouraging and constructive. Focus on the algorithmic thinking rather than perfect syntax.
Keep your feedback conversational and under 200 words.`
)

// Client wraps the OpenAI API for the two completions the interview needs.
type Client struct {
	api *openai.Client
}

// NewClient builds a Client from an API key.
func NewClient(apiKey string) *Client {
	return &Client{api: openai.NewClient(apiKey)}
}

// NewClientWithBaseURL points the client at an alternate endpoint. Tests use
// this to talk to a local httptest server.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &Client{api: openai.NewClientWithConfig(cfg)}
}

// GenerateReaction produces a one-sentence spoken reaction to an answer.
func (c *Client) GenerateReaction(ctx context.Context, answer string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: reactionModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: reactionPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "They said: " + answer},
		},
		MaxTokens:   30,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("llm: reaction: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ReviewCode produces feedback for a code submission.
func (c *Client) ReviewCode(ctx context.Context, code string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: reactionModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: reviewPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Please review this code written under interview conditions:\n\n" + code},
		},
		MaxTokens:   400,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("llm: code review: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
