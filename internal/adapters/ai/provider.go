package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/selivandex/macro-sentinel/internal/decision"
	"github.com/selivandex/macro-sentinel/pkg/logger"
	"github.com/selivandex/macro-sentinel/pkg/models"
)

// StrategyClient generates raw trading suggestions via the OpenAI chat API.
// It only proposes BUY, SELL or HOLD; overrides and corrections happen
// downstream in the decision engine.
type StrategyClient struct {
	client *openai.Client
	model  string
}

// NewStrategyClient creates new strategy provider
func NewStrategyClient(client *openai.Client, model string) *StrategyClient {
	if model == "" {
		model = openai.GPT4TurboPreview
	}
	return &StrategyClient{
		client: client,
		model:  model,
	}
}

// GenerateStrategy asks the LLM for a suggestion grounded in the macro
// snapshot, detected regime, matched pattern and any failure-memory warning.
func (c *StrategyClient) GenerateStrategy(ctx context.Context, req *decision.StrategyRequest) (*models.StrategySuggestion, error) {
	started := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(req)},
		},
		Temperature: 0.7,
		MaxTokens:   600,
	})
	if err != nil {
		return nil, fmt.Errorf("strategy completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in strategy response")
	}

	content := resp.Choices[0].Message.Content

	logger.Debug("strategy response",
		zap.Duration("latency", time.Since(started)),
		zap.String("news_id", req.News.ID),
		zap.String("response", content),
	)

	suggestion, err := parseStrategyResponse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse strategy response: %w", err)
	}

	if suggestion.Ticker == "" {
		suggestion.Ticker = req.News.Ticker
	}

	return suggestion, nil
}
