// Package llm calls an OpenAI-compatible chat completion endpoint to generate answers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hyperjump/tutor/internal/config"
	openai "github.com/sashabaranov/go-openai"
)

// Generator produces an answer from a system and a user prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// ErrEmptyCompletion is returned when the model answers with no choices or no text.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// ChatGenerator implements Generator with go-openai. It works with any provider exposing
// the OpenAI chat completions API (DeepSeek, OpenAI, local gateways).
type ChatGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewChatGenerator creates a generator from the generation config. The API key is read from
// the environment variable named by cfg.APIKeyEnv.
func NewChatGenerator(cfg *config.GenerationConfig) (*ChatGenerator, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("llm: %s is not set", cfg.APIKeyEnv)
	}
	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &ChatGenerator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Sampling overrides the temperature and completion length of a ChatGenerator.
type Sampling struct {
	Temperature float32
	MaxTokens   int
}

// With returns a copy of g that samples with s. The copy shares g's HTTP client.
func (g *ChatGenerator) With(s Sampling) *ChatGenerator {
	c := *g
	c.temperature = s.Temperature
	if s.MaxTokens > 0 {
		c.maxTokens = s.MaxTokens
	}
	return &c
}

// Generate sends one system and one user message and returns the first choice's text.
func (g *ChatGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", ErrEmptyCompletion
	}
	return answer, nil
}

// Disabled returns a Generator whose every call fails with err.
func Disabled(err error) Generator {
	return disabled{err: err}
}

type disabled struct{ err error }

func (d disabled) Generate(context.Context, string, string) (string, error) {
	return "", d.err
}
