package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
	"github.com/mohammadpnp/person-fusion/internal/platform/logger"
)

const (
	defaultMaxInputChars = 12000
	defaultRetryBackoff  = time.Second
	maxRetryBackoff      = 10 * time.Second
	placeholderTextLimit = 500
)

type Config struct {
	BaseURL              string
	APIKey               string
	Model                string
	FallbackModel        string
	Timeout              time.Duration
	MaxRetries           int
	MaxInputChars        int
	RetryBackoff         time.Duration
	PlaceholderOnFailure bool
}

// Client extracts person records through an OpenAI-compatible chat/completions endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	schema     *jsonschema.Schema
	log        *logger.Logger
}

func New(cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = defaultMaxInputChars
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if log == nil {
		log = logger.Nop()
	}
	schema, err := compileSchema(personSchema())
	if err != nil {
		return nil, fmt.Errorf("compile person schema: %w", err)
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		schema:     schema,
		log:        log,
	}, nil
}

// ExtractOne asks the model for at most one person in text. It returns (nil, nil) when the model
// is not configured or the answer names nobody.
func (c *Client) ExtractOne(ctx context.Context, text, sourceFileName string, vocabulary []domain.Tag) (*domain.Extraction, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		c.log.Warn("llm.extract.skipped", "reason", "api key not configured", "file", sourceFileName)
		return nil, nil
	}

	models := []string{c.cfg.Model}
	if c.cfg.FallbackModel != "" && c.cfg.FallbackModel != c.cfg.Model {
		models = append(models, c.cfg.FallbackModel)
	}

	var lastErr error
	for _, model := range models {
		ext, err := c.extractWithModel(ctx, model, text, sourceFileName, vocabulary)
		if err == nil {
			return ext, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		c.log.Warn("llm.extract.model_failed", "model", model, "file", sourceFileName, "error", err)
	}

	if c.cfg.PlaceholderOnFailure {
		c.log.Warn("llm.extract.placeholder", "file", sourceFileName, "error", lastErr)
		return placeholderExtraction(text)
	}
	return nil, lastErr
}

func (c *Client) extractWithModel(ctx context.Context, model, text, sourceFileName string, vocabulary []domain.Tag) (*domain.Extraction, error) {
	rid := uuid.NewString()
	start := time.Now()

	body := map[string]any{
		"model":           model,
		"temperature":     0,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": buildSystemPrompt()},
			{"role": "user", "content": buildUserPrompt(text, sourceFileName, vocabulary, c.cfg.MaxInputChars)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.postWithRetry(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return nil, errors.New("no choices in completion response")
	}

	obj, err := decodeObject(cc.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	if err := c.schema.Validate(obj); err != nil {
		return nil, fmt.Errorf("%w: schema validation failed: %v", errUnusableOutput, err)
	}

	b, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	var fields domain.ExtractedFields
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", errUnusableOutput, err)
	}

	fields.Tags = filterTags(fields.Tags, vocabulary)
	obj["tags"] = fields.Tags

	if fields.PrimaryName() == "" {
		c.log.Debug("llm.extract.no_person", "req_id", rid, "model", model, "file", sourceFileName)
		return nil, nil
	}

	payload, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"model", model,
		"file", sourceFileName,
		"tags", len(fields.Tags),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &domain.Extraction{Fields: fields, Raw: payload}, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("completion endpoint status %d: %s", e.code, e.body)
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return true
}

func (c *Client) postWithRetry(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	backoff := c.cfg.RetryBackoff
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		raw, err := c.post(ctx, url, b)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if ctx.Err() != nil || !retryable(err) || attempt == c.cfg.MaxRetries {
			break
		}
		c.log.Warn("llm.extract.retry", "attempt", attempt+1, "backoff", backoff.String(), "error", err)
		if err := sleepWithContext(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
		if backoff > maxRetryBackoff {
			backoff = maxRetryBackoff
		}
	}
	return nil, lastErr
}

func (c *Client) post(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion http error: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Warn("llm response body close error", "error", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read completion response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode, body: truncateRunes(string(raw), 300)}
	}
	return raw, nil
}

func placeholderExtraction(text string) (*domain.Extraction, error) {
	fields := domain.ExtractedFields{
		Remark:      "automatic extraction failed; source excerpt: " + truncateRunes(strings.TrimSpace(text), placeholderTextLimit),
		Placeholder: true,
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal placeholder: %w", err)
	}
	return &domain.Extraction{Fields: fields, Raw: raw}, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
