package xumm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/abroadly/xamanlink/service/metrics"
)

// Client wraps the Xaman platform payload API with the two operations this
// service needs: creating a signing payload and fetching its state. It never
// retries; failures are mapped to typed errors and surfaced to the caller.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewClient creates a new payload API client. If metrics is nil, no metrics
// are recorded.
func NewClient(baseURL, apiKey, apiSecret string, m *metrics.Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		metrics:    m,
		logger:     logger,
	}
}

// CreatePayload submits a new signing payload to the wallet service and
// returns its id and transport handles.
func (c *Client) CreatePayload(ctx context.Context, req *CreatePayloadRequest) (*CreatedPayload, error) {
	if c.apiKey == "" || c.apiSecret == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload request: %w", err)
	}

	start := time.Now()
	resp, err := c.do(ctx, "POST", c.baseURL+"/payload", bytes.NewReader(body))
	c.record("CreatePayload", err, start)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, c.upstreamError(resp)
	}

	var created CreatedPayload
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("failed to decode create response: %w", err)
	}

	c.logger.DebugContext(ctx, "payload created",
		"uuid", created.UUID,
		"pushed", created.Pushed,
	)
	return &created, nil
}

// GetPayload fetches the current state of a payload by id.
func (c *Client) GetPayload(ctx context.Context, payloadID string) (*Payload, error) {
	if c.apiKey == "" || c.apiSecret == "" {
		return nil, ErrNotConfigured
	}

	u := fmt.Sprintf("%s/payload/%s", c.baseURL, url.PathEscape(payloadID))

	start := time.Now()
	resp, err := c.do(ctx, "GET", u, nil)
	c.record("GetPayload", err, start)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &NotFoundError{PayloadID: payloadID}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.upstreamError(resp)
	}

	var payload Payload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}

	// The API answers 200 with exists=false for unknown ids on some routes.
	if !payload.Meta.Exists && payload.Meta.UUID == "" {
		return nil, &NotFoundError{PayloadID: payloadID}
	}

	c.logger.DebugContext(ctx, "payload fetched",
		"uuid", payload.Meta.UUID,
		"signed", payload.Meta.Signed,
		"cancelled", payload.Meta.Cancelled,
		"expired", payload.Meta.Expired,
	)
	return &payload, nil
}

// do issues an authenticated request against the platform API.
func (c *Client) do(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("X-API-Secret", c.apiSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{StatusCode: 0, Message: err.Error()}
	}
	return resp, nil
}

// upstreamError drains an error response and preserves the upstream message.
func (c *Client) upstreamError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var errResp struct {
		Error struct {
			Reference string `json:"reference"`
			Code      int    `json:"code"`
		} `json:"error"`
		Message string `json:"message"`
	}

	msg := string(body)
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Message != "" {
			msg = errResp.Message
		} else if errResp.Error.Reference != "" {
			msg = fmt.Sprintf("upstream error reference %s (code %d)", errResp.Error.Reference, errResp.Error.Code)
		}
	}

	return &UpstreamError{StatusCode: resp.StatusCode, Message: msg}
}

// record emits call metrics for an upstream operation.
func (c *Client) record(method string, err error, start time.Time) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordUpstreamCall(method, status, time.Since(start).Seconds())
}
