package seo

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"
)

type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

func NewOpenAIGenerator(apiKey, model string) *OpenAIGenerator {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIGenerator{client: openai.NewClient(apiKey), model: model}
}

func (g *OpenAIGenerator) Name() string { return "openai" }

func (g *OpenAIGenerator) Generate(ctx context.Context, f ProjectFields) (Metadata, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You write concise SEO metadata. Answer with JSON only."},
			{Role: openai.ChatMessageRoleUser, Content: prompt(f)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
		MaxTokens:   300,
	})
	if err != nil {
		return Metadata{}, err
	}
	if len(resp.Choices) == 0 {
		return Metadata{}, errors.New("openai: no choices returned")
	}
	return parseAnswer(resp.Choices[0].Message.Content)
}
