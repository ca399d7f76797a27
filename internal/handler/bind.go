package handler

import (
	"encoding/json"
	"net/http"

	"github.com/pavelanni/taketest/internal/validate"
)

const maxBodySize = 1 << 20

// bind decodes and validates the JSON request body into dst.
// Returns nil on success or a field error map on failure.
func bind(r *http.Request, dst any) map[string]string {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize))
	if err := dec.Decode(dst); err != nil {
		return validate.TranslateErrors(err)
	}
	return validate.Struct(dst)
}
