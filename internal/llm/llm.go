// Package llm is the tutor behind answer explanations and chat.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/taketest/internal/llm/prompts"
	"github.com/pavelanni/taketest/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyReply is returned when the model produced no usable text.
var ErrEmptyReply = errors.New("LLM returned no reply")

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
	lang  model.Language
}

// New creates a new LLM client. lang is the default reply language for Chat.
func New(baseURL, apiKey, modelName string, lang model.Language) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
		lang:  lang,
	}
}

// Ping checks that the endpoint is reachable and the API key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Explain asks the model why the correct answer to q is correct, taking the
// user's answer into account.
func (c *Client) Explain(ctx context.Context, q model.Question, userAnswer string, lang model.Language) (string, error) {
	system, err := prompts.BuildExplainPrompt(q, userAnswer, lang)
	if err != nil {
		return "", err
	}
	return c.complete(ctx, 0.3, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
	})
}

// Chat sends a free-form message to the tutor.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	system, err := prompts.BuildChatPrompt(c.lang)
	if err != nil {
		return "", err
	}
	return c.complete(ctx, 0.7, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: prompts.Sanitize(message)},
	})
}

func (c *Client) complete(ctx context.Context, temperature float32, msgs []openai.ChatCompletionMessage) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	return firstReply(resp)
}

func firstReply(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrEmptyReply
	}
	slog.Debug("LLM reply", "chars", len(reply), "finish_reason", resp.Choices[0].FinishReason)
	return reply, nil
}
