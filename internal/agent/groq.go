// Package agent produces AI rebalancing recommendations for a portfolio by
// combining live protocol data with a Groq-hosted LLM, and falls back to a
// deterministic rule engine when the model is unavailable or unparseable.
package agent

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// ChatClient is the completion surface the agent needs from the LLM.
type ChatClient interface {
	Complete(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error)
}

// GroqClient calls Groq's OpenAI-compatible chat completion endpoint.
type GroqClient struct {
	client *openai.Client
	model  string
}

// NewGroqClient returns nil when no API key is configured; callers treat a
// nil client as "rule engine only".
func NewGroqClient(apiKey, baseURL, model string) *GroqClient {
	if apiKey == "" {
		return nil
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &GroqClient{client: openai.NewClientWithConfig(cfg), model: model}
}

const systemPrompt = "You are a DeFi portfolio strategist. Respond with strict JSON only, no prose outside the JSON object."

// Complete sends one chat completion request and returns the raw content.
func (g *GroqClient) Complete(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("groq completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("groq completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}
