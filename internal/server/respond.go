package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/brightline/composer/internal/apperr"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeData writes the {"data": ...} success envelope.
func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]any{"data": data}); err != nil {
		zap.L().Warn("response encode failed", zap.Error(err))
	}
}

// writeError maps an error to the {"error": {...}} envelope. Internal
// detail stays in the log; only typed messages reach the client.
func writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	body := errorBody{Code: apperr.CodeOf(err), Message: "internal error"}
	if e, ok := apperr.As(err); ok {
		body.Message = e.Message
	}
	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed", zap.String("code", body.Code), zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"error": body})
}

// decodeJSON decodes a request body, rejecting unknown garbage early.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Validation("invalid_body", "request body is not valid JSON")
	}
	return nil
}
