// Package openai implements the AI query-parser collaborator over an
// OpenAI-compatible chat-completions API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/dealhound-cloud/dealhound/internal/domain"
	"github.com/dealhound-cloud/dealhound/internal/metrics"
)

const systemPrompt = `You extract shopping intent from a search query.
Respond with a single JSON object:
{"categories":[],"brands":[],"price_min_cents":0,"price_max_cents":0,"required_features":[],"confidence":0.0}
Prices are integer cents (0 = unspecified). confidence is 0..1.
Do not include any text outside the JSON object.`

// ParseResult is the validated AI parser output.
type ParseResult struct {
	Categories       []string `json:"categories"`
	Brands           []string `json:"brands"`
	PriceMinCents    int64    `json:"price_min_cents"`
	PriceMaxCents    int64    `json:"price_max_cents"`
	RequiredFeatures []string `json:"required_features"`
	Confidence       float64  `json:"confidence"`
}

// Parser calls an OpenAI-compatible model to extract structured terms
// from a free-text query.
type Parser struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// Config holds the AI parser settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewParser creates an OpenAI-compatible query parser.
func NewParser(cfg *Config) *Parser {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Parser{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: timeout,
		logger:  cfg.Logger,
	}
}

// Parse extracts structured terms from text. Failures map to the sentinel
// taxonomy (ErrAIParserTimeout, ErrMalformedAIResponse) so the interpreter
// can fall back deterministically.
func (p *Parser) Parse(ctx context.Context, text string) (ParseResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})

	metrics.AIParseDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			metrics.AIParseTotal.WithLabelValues("timeout").Inc()
			return ParseResult{}, fmt.Errorf("parse query: %w", domain.ErrAIParserTimeout)
		}
		metrics.AIParseTotal.WithLabelValues("error").Inc()
		return ParseResult{}, parseAPIError(err)
	}

	if len(resp.Choices) == 0 {
		metrics.AIParseTotal.WithLabelValues("malformed").Inc()
		return ParseResult{}, fmt.Errorf("empty completion: %w", domain.ErrMalformedAIResponse)
	}

	result, err := decodeParseResult(resp.Choices[0].Message.Content)
	if err != nil {
		metrics.AIParseTotal.WithLabelValues("malformed").Inc()
		p.logger.Warn("AI parser returned an invalid payload", zap.Error(err))
		return ParseResult{}, err
	}

	metrics.AIParseTotal.WithLabelValues("success").Inc()
	return result, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (p *Parser) HealthCheck(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// decodeParseResult unmarshals and schema-validates the model's JSON payload.
func decodeParseResult(content string) (ParseResult, error) {
	content = strings.TrimSpace(content)
	// Models occasionally fence the object despite JSON mode.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var result ParseResult
	dec := json.NewDecoder(strings.NewReader(content))
	if err := dec.Decode(&result); err != nil {
		return ParseResult{}, fmt.Errorf("decode payload: %v: %w", err, domain.ErrMalformedAIResponse)
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return ParseResult{}, fmt.Errorf("confidence %g out of range: %w",
			result.Confidence, domain.ErrMalformedAIResponse)
	}
	if result.PriceMinCents < 0 || result.PriceMaxCents < 0 {
		return ParseResult{}, fmt.Errorf("negative price bound: %w", domain.ErrMalformedAIResponse)
	}
	if result.PriceMinCents > 0 && result.PriceMaxCents > 0 &&
		result.PriceMinCents > result.PriceMaxCents {
		return ParseResult{}, fmt.Errorf("inverted price bounds: %w", domain.ErrMalformedAIResponse)
	}
	return result, nil
}

// parseAPIError extracts a human-readable error from the API response.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("ai API error %d: %w", reqErr.HTTPStatusCode, domain.ErrMalformedAIResponse)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("ai API error %s: %w", apiErr.Type, domain.ErrMalformedAIResponse)
	}
	return fmt.Errorf("ai request: %v: %w", err, domain.ErrMalformedAIResponse)
}
