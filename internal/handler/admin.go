package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/taketest/internal/model"
	"github.com/pavelanni/taketest/internal/store"
	"github.com/pavelanni/taketest/internal/validate"
)

const maxUploadSize = 5 << 20

type importResponse struct {
	ID        string `json:"id"`
	Questions int    `json:"questions"`
	Skipped   bool   `json:"skipped"`
}

// handleImportTest stores a test uploaded as a JSON document. Re-uploading
// an identical document is a no-op.
func (h *Handler) handleImportTest(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadSize+1))
	if err != nil || len(data) > maxUploadSize {
		writeError(w, r, http.StatusBadRequest, "ErrBadRequest")
		return
	}

	var ti model.TestImport
	if err := json.Unmarshal(data, &ti); err != nil {
		writeValidationError(w, r, map[string]string{"detail": err.Error()})
		return
	}
	if fields := validate.Struct(&ti); fields != nil {
		writeValidationError(w, r, fields)
		return
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	key := "upload:" + ti.ID

	prev, err := h.store.GetImportedFileHash(r.Context(), key)
	if err != nil {
		h.internalError(w, r, "failed to read import hash", err)
		return
	}
	if prev == hash {
		slog.Info("test upload unchanged, skipping", "test_id", ti.ID)
		writeJSON(w, http.StatusOK, importResponse{ID: ti.ID, Questions: len(ti.Questions), Skipped: true})
		return
	}

	test := ti.ToTest()
	if err := h.store.InsertTest(r.Context(), test); err != nil {
		h.internalError(w, r, "failed to import test", err)
		return
	}
	if err := h.store.SetImportedFileHash(r.Context(), key, hash); err != nil {
		h.internalError(w, r, "failed to record import hash", err)
		return
	}
	slog.Info("imported test", "test_id", test.ID, "questions", len(test.Questions),
		"duration_minutes", test.DurationMinutes)
	writeJSON(w, http.StatusCreated, importResponse{ID: test.ID, Questions: len(test.Questions)})
}

func (h *Handler) handleExportResults(w http.ResponseWriter, r *http.Request) {
	export, err := h.store.ExportResults(r.Context(), chi.URLParam(r, "testID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "ErrNotFound")
		return
	}
	if err != nil {
		h.internalError(w, r, "failed to export results", err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="results-`+export.TestID+`.json"`)
	writeJSON(w, http.StatusOK, export)
}
