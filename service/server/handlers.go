package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/abroadly/xamanlink/service/config"
	"github.com/abroadly/xamanlink/service/metrics"
	"github.com/abroadly/xamanlink/service/verify"
	"github.com/abroadly/xamanlink/service/xumm"
)

const maxRequestBodySize = 1 << 20 // 1MB - plenty for a transaction template

// handleCreatePayload returns a handler that submits a signing payload to the
// wallet service.
// POST /api/wallets/xaman/createpayload
//
// The configured network is always forced onto the payload options; whatever
// the caller supplied cannot redirect the payload to another network.
func handleCreatePayload(gateway *xumm.Client, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req struct {
			Transaction map[string]any       `json:"transaction"`
			Options     *xumm.PayloadOptions `json:"options"`
			CustomMeta  *xumm.CustomMeta     `json:"custom_meta"`
		}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Debug("failed to decode createpayload request", "error", err)
			if strings.Contains(err.Error(), "http: request body too large") {
				writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		if len(req.Transaction) == 0 {
			writeError(w, "transaction is required", http.StatusBadRequest)
			return
		}

		txType, _ := req.Transaction["TransactionType"].(string)
		if txType == "" {
			writeError(w, "transaction must include a TransactionType", http.StatusBadRequest)
			return
		}

		opts := req.Options
		if opts == nil {
			opts = &xumm.PayloadOptions{Submit: txType != "SignIn"}
		}
		// Network is not caller-controlled.
		opts.ForceNetwork = cfg.ForcedNetwork
		if opts.Expire == 0 {
			opts.Expire = int(cfg.PayloadExpiry.Minutes())
		}

		created, err := gateway.CreatePayload(r.Context(), &xumm.CreatePayloadRequest{
			TxJSON:     req.Transaction,
			Options:    opts,
			CustomMeta: req.CustomMeta,
		})
		if err != nil {
			writeGatewayError(w, err, logger)
			return
		}

		if m != nil {
			m.RecordPayloadCreated(txType)
		}
		logger.Info("signing payload created", "uuid", created.UUID, "tx_type", txType)

		writeJSON(w, map[string]any{"payload": created}, http.StatusOK)
	})
}

// handleGetPayload returns a handler that fetches a payload's current state.
// GET /api/wallets/xaman/getpayload?payloadId=
func handleGetPayload(gateway *xumm.Client, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payloadID := r.URL.Query().Get("payloadId")
		if payloadID == "" {
			writeError(w, "payloadId is required", http.StatusBadRequest)
			return
		}

		payload, err := gateway.GetPayload(r.Context(), payloadID)
		if err != nil {
			writeGatewayError(w, err, logger)
			return
		}

		logger.Debug("payload state fetched",
			"uuid", payload.Meta.UUID,
			"signed", payload.Meta.Signed,
		)
		writeJSON(w, map[string]any{"payload": payload}, http.StatusOK)
	})
}

// handleCheckSign returns a handler that verifies a signed-transaction hex
// and, when valid, issues a session token bound to the signer address.
// GET /api/wallets/xaman/checksign?hex=
func handleCheckSign(verifier *verify.Verifier, tokens *verify.TokenIssuer, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		blobHex := r.URL.Query().Get("hex")
		if blobHex == "" {
			writeError(w, "hex is required", http.StatusBadRequest)
			return
		}

		result, err := verifier.VerifyTxBlob(blobHex)
		if err != nil || !result.Valid {
			if err != nil && !errors.Is(err, verify.ErrInvalidSignature) {
				logger.Error("unexpected verification error", "error", err)
				writeError(w, "internal server error", http.StatusInternalServerError)
				return
			}
			logger.Info("signature rejected")
			writeError(w, "Invalid signature", http.StatusBadRequest)
			return
		}

		token, err := tokens.Issue(result.SignerAddress)
		if err != nil {
			logger.Error("failed to issue session token", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		logger.Info("signature verified", "signer", result.SignerAddress)
		writeJSON(w, map[string]string{
			"xrpAddress": result.SignerAddress,
			"token":      token,
		}, http.StatusOK)
	})
}

// writeGatewayError maps upstream client errors onto the HTTP surface.
func writeGatewayError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var notFound *xumm.NotFoundError
	var upstream *xumm.UpstreamError

	switch {
	case errors.Is(err, xumm.ErrNotConfigured):
		logger.Error("upstream credentials missing")
		writeError(w, "server credentials not configured", http.StatusInternalServerError)
	case errors.As(err, &notFound):
		writeError(w, "payload not found", http.StatusNotFound)
	case errors.As(err, &upstream):
		logger.Error("upstream error", "status", upstream.StatusCode, "message", upstream.Message)
		writeError(w, upstream.Message, http.StatusInternalServerError)
	default:
		logger.Error("gateway error", "error", err)
		writeError(w, "internal server error", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
