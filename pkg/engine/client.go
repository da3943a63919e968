package engine

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/askmap/diagnostic-engine/internal/api/rpc"
)

type (
	AnalyzeRequest  = rpc.AnalyzeRequest
	AnalyzeResponse = rpc.AnalyzeResponse
	Cause           = rpc.Cause
)

// Client talks to a running diagnostic engine API.
type Client struct {
	baseURL string
	analyze *connect.Client[rpc.AnalyzeRequest, rpc.AnalyzeResponse]
}

// ClientConfig holds client configuration.
type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		baseURL: baseURL,
		analyze: rpc.NewAnalyzeClient(cfg.HTTPClient, baseURL),
	}, nil
}

// Analyze ranks probable causes of a complaint on the server.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	resp, err := c.analyze.CallUnary(ctx, connect.NewRequest(&req))
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	return resp.Msg, nil
}

// BaseURL returns the server address the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}
