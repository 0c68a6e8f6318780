package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Extractor turns free text into suggested contact attributes. Implementations are
// called outside any session.
type Extractor interface {
	Extract(ctx context.Context, text string) (map[string]any, error)
}

// NoopExtractor never suggests anything.
type NoopExtractor struct{}

func (NoopExtractor) Extract(context.Context, string) (map[string]any, error) {
	return map[string]any{}, nil
}

// HTTPExtractor posts text to an extraction endpoint and reads back
// {"attributes": {...}}.
type HTTPExtractor struct {
	url     string
	apiKey  string
	timeout time.Duration
	logger  *zap.Logger
}

func NewHTTPExtractor(url, apiKey string, timeout time.Duration, logger *zap.Logger) *HTTPExtractor {
	return &HTTPExtractor{url: url, apiKey: apiKey, timeout: timeout, logger: logger}
}

type extractRequest struct {
	Text string `json:"text"`
}

type extractResponse struct {
	Attributes map[string]any `json:"attributes"`
}

func (e *HTTPExtractor) Extract(ctx context.Context, text string) (map[string]any, error) {
	if strings.TrimSpace(text) == "" {
		return map[string]any{}, nil
	}
	timeout := e.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	agent := fiber.Post(e.url).JSON(extractRequest{Text: text}).Timeout(timeout)
	if e.apiKey != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+e.apiKey)
	}
	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("extraction request: %w", errs[0])
	}
	if status < fiber.StatusOK || status >= fiber.StatusMultipleChoices {
		return nil, fmt.Errorf("extraction request: status %d", status)
	}

	var resp extractResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode extraction response: %w", err)
	}
	if resp.Attributes == nil {
		resp.Attributes = map[string]any{}
	}
	e.logger.Debug("extraction completed", zap.Int("attributes", len(resp.Attributes)))
	return resp.Attributes, nil
}
