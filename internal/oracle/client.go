package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/askmap/diagnostic-engine/internal/apperrors"
	"github.com/askmap/diagnostic-engine/internal/observability"
)

const defaultEndpoint = "https://llm.api.cloud.yandex.net/foundationModels/v1/completion"

// Client calls a YandexGPT-compatible completion endpoint.
type Client struct {
	httpClient  *http.Client
	endpoint    string
	apiKey      string
	modelURI    string
	temperature float64
	maxTokens   int
	retry       RetryConfig
	logger      *observability.Logger
}

// Config holds completion client configuration.
type Config struct {
	APIKey      string
	ModelURI    string // e.g., "gpt://<folder>/yandexgpt-lite"
	Endpoint    string // Default: Yandex Cloud foundation models completion
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Retry       *RetryConfig
}

// NewClient creates a new completion client.
func NewClient(cfg Config, logger *observability.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, apperrors.ConfigError("oracle API key is required", nil)
	}
	if cfg.ModelURI == "" {
		return nil, apperrors.ConfigError("oracle model URI is required", nil)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retry := DefaultRetryConfig()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		endpoint:    cfg.Endpoint,
		apiKey:      cfg.APIKey,
		modelURI:    cfg.ModelURI,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		retry:       retry,
		logger:      logger.WithOperation("oracle"),
	}, nil
}

// CompletionRequest is the request body of the completion endpoint.
type CompletionRequest struct {
	ModelURI          string            `json:"modelUri"`
	CompletionOptions CompletionOptions `json:"completionOptions"`
	Messages          []Message         `json:"messages"`
}

// CompletionOptions controls sampling.
type CompletionOptions struct {
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	MaxTokens   string  `json:"maxTokens"`
}

// Message is one chat turn.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// CompletionResponse is the response body of the completion endpoint.
type CompletionResponse struct {
	Result struct {
		Alternatives []struct {
			Message Message `json:"message"`
			Status  string  `json:"status"`
		} `json:"alternatives"`
		ModelVersion string `json:"modelVersion"`
	} `json:"result"`
	Error *struct {
		Message  string `json:"message"`
		HTTPCode int    `json:"httpCode"`
	} `json:"error,omitempty"`
}

// Complete sends the prompt pair and returns the first alternative's text.
// An empty answer is not an error.
func (c *Client) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	reqBody := CompletionRequest{
		ModelURI: c.modelURI,
		CompletionOptions: CompletionOptions{
			Stream:      false,
			Temperature: c.temperature,
			MaxTokens:   strconv.Itoa(c.maxTokens),
		},
		Messages: []Message{
			{Role: "system", Text: systemPrompt},
			{Role: "user", Text: userText},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	start := time.Now()
	resp, err := c.retryWithBackoff(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Api-Key "+c.apiKey)
		return c.httpClient.Do(req)
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.OracleError("read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp CompletionResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
			return "", apperrors.OracleError(fmt.Sprintf("completion failed with status %d", resp.StatusCode), fmt.Errorf("%s", errResp.Error.Message))
		}
		return "", apperrors.OracleError(fmt.Sprintf("completion failed with status %d", resp.StatusCode), fmt.Errorf("body: %s", string(body)))
	}

	var completion CompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", apperrors.OracleError("unmarshal response", err)
	}

	c.logger.Debug().
		Dur("duration", time.Since(start)).
		Str("model_version", completion.Result.ModelVersion).
		Msg("Completion received")

	if len(completion.Result.Alternatives) == 0 {
		return "", nil
	}
	return strings.TrimSpace(completion.Result.Alternatives[0].Message.Text), nil
}
