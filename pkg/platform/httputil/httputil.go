// Package httputil maps domain errors onto HTTP responses and centralizes
// JSON writing so handlers stay thin.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "github.com/fossabot/authrim-sub007/pkg/domain-errors"
)

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeInvalidInput:             http.StatusBadRequest,
	dErrors.CodeValidation:               http.StatusBadRequest,
	dErrors.CodeBadRequest:               http.StatusBadRequest,
	dErrors.CodeInvalidFlowConfiguration: http.StatusUnprocessableEntity,
	dErrors.CodeUnauthorized:             http.StatusUnauthorized,
	dErrors.CodeInvalidSession:           http.StatusForbidden,
	dErrors.CodeForbidden:                http.StatusForbidden,
	dErrors.CodeNotFound:                 http.StatusNotFound,
	dErrors.CodeConflict:                 http.StatusConflict,
	dErrors.CodeTimeout:                  http.StatusGatewayTimeout,
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to its HTTP status and writes the OAuth
// style error body. Internal errors never leak their description.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	resp := errorResponse{Error: string(code)}
	if status < http.StatusInternalServerError {
		var de *dErrors.Error
		if errors.As(err, &de) {
			resp.ErrorDescription = de.Message
		}
	}
	WriteJSON(w, status, resp)
}

// DecodeAndPrepare decodes the request body into T, rejecting unknown
// fields. On failure it logs, writes the bad request response, and returns
// false so handlers can bail with a bare return.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (T, bool) {
	var req T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "failed to decode request body",
				"request_id", requestID,
				"error", err,
			)
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON request body"))
		return req, false
	}
	return req, true
}
