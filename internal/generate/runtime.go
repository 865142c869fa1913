// Package generate implements core.Generator against a local inference
// runtime that hosts the vision-language model and exposes a small HTTP API.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"vlmodel/internal/core"
)

// RuntimeClient talks to the inference runtime. The runtime owns the model
// weights and tokenizer; this client only ships the normalized
// query/history/system triple and the sampling parameters.
type RuntimeClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewRuntimeClient creates a client for the runtime at baseURL.
func NewRuntimeClient(baseURL string, client *http.Client, logger *slog.Logger) *RuntimeClient {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RuntimeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger.With("component", "generate"),
	}
}

type generateRequest struct {
	Query   string             `json:"query"`
	History []core.HistoryTurn `json:"history,omitempty"`
	System  string             `json:"system"`
	core.SamplingOptions
}

// Generate implements core.Generator.
func (c *RuntimeClient) Generate(ctx context.Context, query string, history []core.HistoryTurn, system string, opts core.SamplingOptions) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Query:           query,
		History:         history,
		System:          system,
		SamplingOptions: opts,
	})
	if err != nil {
		return "", core.NewInternalError(fmt.Errorf("marshal generate request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(payload))
	if err != nil {
		return "", core.NewInternalError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", core.NewUpstreamError("generation runtime is unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", core.NewUpstreamError("failed to read runtime response", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("runtime returned error", "status", resp.StatusCode, "body", string(body))
		return "", core.NewUpstreamError(fmt.Sprintf("generation runtime returned status %d", resp.StatusCode), nil)
	}

	// The runtime's response schema has drifted across versions; accept
	// either field rather than binding to the full document.
	text := gjson.GetBytes(body, "response")
	if !text.Exists() {
		text = gjson.GetBytes(body, "text")
	}
	if !text.Exists() {
		return "", core.NewUpstreamError("generation runtime response carries no text", nil)
	}

	return text.String(), nil
}

// CheckAvailability implements core.AvailabilityChecker via the runtime's
// health endpoint.
func (c *RuntimeClient) CheckAvailability(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("runtime health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("runtime health check returned status %d", resp.StatusCode)
	}
	return nil
}
