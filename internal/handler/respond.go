package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	appI18n "github.com/pavelanni/taketest/internal/i18n"
)

// errorCodes maps message IDs to stable machine-readable codes.
var errorCodes = map[string]string{
	"ErrBadRequest":       "bad_request",
	"ErrMissingUser":      "missing_user",
	"ErrNotFound":         "not_found",
	"ErrAlreadySubmitted": "already_submitted",
	"ErrInternal":         "internal",
	"ErrChatDisabled":     "tutor_disabled",
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// writeError writes the error envelope with a message localized for the request.
func writeError(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:    errorCodes[msgID],
		Message: appI18n.T(r.Context(), msgID),
	}})
}

func writeValidationError(w http.ResponseWriter, r *http.Request, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
		Code:    errorCodes["ErrBadRequest"],
		Message: appI18n.T(r.Context(), "ErrBadRequest"),
		Fields:  fields,
	}})
}
