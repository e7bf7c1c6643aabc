package client

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

	"github.com/abroadly/xamanlink/service/xumm"
)

// PayloadService is the gateway surface the orchestrator and reconciler
// depend on. Gateway implements it against the HTTP facade; tests substitute
// fakes, including fault-injected verifiers.
type PayloadService interface {
	CreatePayload(ctx context.Context, req *xumm.CreatePayloadRequest) (*xumm.CreatedPayload, error)
	GetPayload(ctx context.Context, payloadID string) (*xumm.Payload, error)
	CheckSign(ctx context.Context, signedTxHex string) (*CheckSignResult, error)
}

// CheckSignResult is the outcome of server-side signature verification.
type CheckSignResult struct {
	XRPAddress string `json:"xrpAddress"`
	Token      string `json:"token"`
}

// Gateway is the HTTP client for the xamanlink payload facade.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGateway creates a new payload facade client.
func NewGateway(baseURL string, httpClient *http.Client, logger *slog.Logger) *Gateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Gateway{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// CreatePayload submits a transaction template for signing and returns the
// created payload's id and transport handles.
func (g *Gateway) CreatePayload(ctx context.Context, req *xumm.CreatePayloadRequest) (*xumm.CreatedPayload, error) {
	reqBody := map[string]any{
		"transaction": req.TxJSON,
	}
	if req.Options != nil {
		reqBody["options"] = req.Options
	}
	if req.CustomMeta != nil {
		reqBody["custom_meta"] = req.CustomMeta
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/api/wallets/xaman/createpayload", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, g.parseErrorResponse(resp)
	}

	var response struct {
		Payload xumm.CreatedPayload `json:"payload"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	g.logger.Debug("payload created", "uuid", response.Payload.UUID)
	return &response.Payload, nil
}

// GetPayload fetches the current state of a payload.
func (g *Gateway) GetPayload(ctx context.Context, payloadID string) (*xumm.Payload, error) {
	u := fmt.Sprintf("%s/api/wallets/xaman/getpayload?payloadId=%s", g.baseURL, url.QueryEscape(payloadID))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &xumm.NotFoundError{PayloadID: payloadID}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, g.parseErrorResponse(resp)
	}

	var response struct {
		Payload xumm.Payload `json:"payload"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &response.Payload, nil
}

// CheckSign asks the facade to verify a signed-transaction hex. An invalid
// signature is reported as ErrVerificationFailed, never as a result.
func (g *Gateway) CheckSign(ctx context.Context, signedTxHex string) (*CheckSignResult, error) {
	u := fmt.Sprintf("%s/api/wallets/xaman/checksign?hex=%s", g.baseURL, url.QueryEscape(signedTxHex))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, g.parseErrorResponse(resp))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, g.parseErrorResponse(resp)
	}

	var result CheckSignResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	g.logger.Debug("signature verified", "address", result.XRPAddress)
	return &result, nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (g *Gateway) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
