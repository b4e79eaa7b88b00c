package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/selivandex/macro-sentinel/pkg/logger"
	"github.com/selivandex/macro-sentinel/pkg/metrics"
)

// Repository stores generated embeddings. Embeddings are deterministic and
// expensive, so they are kept permanently rather than cached with expiry.
type Repository interface {
	Get(ctx context.Context, textHash string) ([]float32, bool)
	Set(ctx context.Context, textHash string, embedding []float32, model string, textLength int) error
}

// Client generates OpenAI embeddings with deduplication and retry.
type Client struct {
	repository    Repository     // optional
	metricsBuffer metrics.Buffer // optional
	openaiClient  *openai.Client
	model         openai.EmbeddingModel
}

// Config for embedding client
type Config struct {
	OpenAIClient  *openai.Client
	Repository    Repository
	MetricsBuffer metrics.Buffer
	Model         openai.EmbeddingModel // Default: openai.AdaEmbeddingV2
}

// NewClient creates new embedding client with optional deduplication
func NewClient(cfg Config) *Client {
	model := cfg.Model
	if model == "" {
		model = openai.AdaEmbeddingV2
	}

	if cfg.Repository != nil {
		logger.Info("embedding deduplication enabled")
	}

	return &Client{
		openaiClient:  cfg.OpenAIClient,
		repository:    cfg.Repository,
		metricsBuffer: cfg.MetricsBuffer,
		model:         model,
	}
}

// Generate creates an embedding for one text, consulting the dedup store
// before spending an API call.
func (c *Client) Generate(ctx context.Context, text string) ([]float32, error) {
	textHash := hashText(text)

	if c.repository != nil {
		if existing, found := c.repository.Get(ctx, textHash); found {
			c.recordDeduplication(textHash, len(text), true)
			logger.Debug("embedding deduplication hit",
				zap.Int("text_len", len(text)),
				zap.String("hash", textHash[:12]),
			)
			return existing, nil
		}
	}

	if c.openaiClient == nil {
		return nil, fmt.Errorf("openai embedding client not configured")
	}

	embedding, err := c.generateWithRetry(ctx, text, 3)
	if err != nil {
		return nil, fmt.Errorf("embedding api failed after retries: %w", err)
	}

	if c.repository != nil {
		if err := c.repository.Set(ctx, textHash, embedding, string(c.model), len(text)); err != nil {
			// Non-critical, the embedding is still usable
			logger.Warn("failed to store embedding", zap.Error(err))
		}
	}
	c.recordDeduplication(textHash, len(text), false)

	logger.Debug("embedding generated",
		zap.Int("text_len", len(text)),
		zap.Int("dim", len(embedding)),
		zap.String("hash", textHash[:12]),
	)

	return embedding, nil
}

// generateWithRetry calls the API with exponential backoff: 1s, 2s, 4s.
func (c *Client) generateWithRetry(ctx context.Context, text string, maxRetries int) ([]float32, error) {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			logger.Debug("retrying embedding request",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("context canceled during retry backoff: %w", ctx.Err())
			}
		}

		resp, err := c.openaiClient.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: c.model,
			Input: []string{text},
		})
		if err == nil {
			if len(resp.Data) == 0 {
				return nil, fmt.Errorf("embedding api returned no data")
			}
			return resp.Data[0].Embedding, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			logger.Warn("non-retryable embedding error", zap.Error(err))
			return nil, err
		}

		logger.Warn("retryable embedding error",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
		)
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", maxRetries, lastErr)
}

// isRetryableError checks if error should trigger a retry
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests ||
			apiErr.HTTPStatusCode >= 500
	}

	errStr := err.Error()
	for _, marker := range []string{
		"429", "rate limit",
		"timeout", "deadline exceeded",
		"connection refused", "connection reset",
		"500", "502", "503",
	} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}

	return false
}

func (c *Client) recordDeduplication(textHash string, textLength int, hit bool) {
	if c.metricsBuffer == nil {
		return
	}

	saved := 0.0
	if hit {
		saved = 0.0001
	}

	metric := &metrics.EmbeddingDeduplicationMetric{
		Timestamp:    time.Now(),
		TextHash:     textHash[:16],
		TextLength:   textLength,
		Model:        string(c.model),
		CacheHit:     hit,
		CostSavedUSD: saved,
	}
	if err := c.metricsBuffer.Add(metric); err != nil {
		logger.Warn("failed to add deduplication metric", zap.Error(err))
	}
}

// hashText creates SHA256 hash of text for the dedup key
func hashText(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}
