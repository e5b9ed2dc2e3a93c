package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/planner/models"
	"github.com/Cogwheel-Validator/spectra-bridge/planner/router"
	"github.com/shopspring/decimal"
)

// maxRequestBytes bounds the body of a route request
const maxRequestBytes = 64 << 10

// RoutePlanner answers a route request with a fully serialized result.
// *router.Planner satisfies it.
type RoutePlanner interface {
	PlanRoutes(ctx context.Context, req models.BridgeRequest) router.Result
}

// routesHandler serves POST /api/bridge/routes
type routesHandler struct {
	planner RoutePlanner
	// bounds planning, the planner answers EXECUTION_ERROR once it passes
	timeout time.Duration
}

// bridgeRequestBody mirrors models.BridgeRequest with the amount kept raw,
// so quoted amounts can be told apart from JSON numbers
type bridgeRequestBody struct {
	TargetChain  string          `json:"targetChain"`
	Amount       json.RawMessage `json:"amount"`
	TokenAddress string          `json:"tokenAddress"`
	UserAddress  string          `json:"userAddress"`
}

func (h *routesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, herr := decodeBridgeRequest(w, r)
	if herr != nil {
		Logger.Debug().Str("error", herr.Message).Msg("Rejected route request")
		writeHttpError(w, herr)
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	res := h.planner.PlanRoutes(ctx, req)

	cacheStatus := "MISS"
	if res.Cached {
		cacheStatus = "HIT"
	}
	w.Header().Set("X-Cache", cacheStatus)
	// plans depend on live balances and fees
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	writeJSON(w, res.Status, res.Body)
}

func decodeBridgeRequest(w http.ResponseWriter, r *http.Request) (models.BridgeRequest, *HttpError) {
	var (
		req  models.BridgeRequest
		body bridgeRequestBody
	)

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := decoder.Decode(&body); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return req, HTTPErrorBadRequest("Request body is required")
		case errors.As(err, &maxErr):
			return req, HTTPErrorBadRequest(fmt.Sprintf("Request body exceeds %d bytes", maxErr.Limit))
		default:
			return req, HTTPErrorBadRequest(fmt.Sprintf("Invalid request body: %v", err))
		}
	}
	if decoder.More() {
		return req, HTTPErrorBadRequest("Invalid request body: trailing data")
	}

	amount, herr := decodeAmount(body.Amount)
	if herr != nil {
		return req, herr
	}

	req = models.BridgeRequest{
		TargetChain:  body.TargetChain,
		Amount:       amount,
		TokenAddress: body.TokenAddress,
		UserAddress:  body.UserAddress,
	}
	return req, nil
}

// decodeAmount accepts only a JSON number. A missing or null amount decodes
// to zero and is rejected by request validation.
func decodeAmount(raw json.RawMessage) (decimal.Decimal, *HttpError) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, nil
	}
	if raw[0] == '"' {
		return decimal.Zero, HTTPErrorBadRequest("Invalid request body: amount must be a number")
	}
	var amount decimal.Decimal
	if err := amount.UnmarshalJSON(raw); err != nil {
		return decimal.Zero, HTTPErrorBadRequest(fmt.Sprintf("Invalid request body: amount: %v", err))
	}
	return amount, nil
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, []byte(`{"status":"healthy","service":"planner"}`))
}

// readyHandler reports not ready while check fails
func readyHandler(check func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				Logger.Warn().Err(err).Msg("Readiness check failed")
				writeJSON(w, http.StatusServiceUnavailable, []byte(`{"status":"not_ready"}`))
				return
			}
		}
		writeJSON(w, http.StatusOK, []byte(`{"status":"ready"}`))
	}
}
