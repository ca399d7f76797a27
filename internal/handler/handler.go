// Package handler serves the test and result API backed by the store.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	appI18n "github.com/pavelanni/taketest/internal/i18n"
	"github.com/pavelanni/taketest/internal/llm"
	"github.com/pavelanni/taketest/internal/model"
	"github.com/pavelanni/taketest/internal/store"
)

// Config tunes the HTTP surface.
type Config struct {
	BasePath   string // URL prefix, e.g. "/taketest"; empty for root
	Lang       string // fallback language for error messages
	AdminToken string // bearer token for /api/admin; admin routes are disabled when empty
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	llm    *llm.Client
	config Config
}

// New creates a new Handler. l may be nil, which disables the tutor routes.
func New(s *store.Store, l *llm.Client, cfg Config) *Handler {
	if cfg.Lang == "" {
		cfg.Lang = "en"
	}
	return &Handler{store: s, llm: l, config: cfg}
}

// Router builds the full middleware stack and routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(appI18n.Middleware(h.config.Lang))

	if h.config.BasePath != "" {
		r.Route(h.config.BasePath, h.Routes)
	} else {
		h.Routes(r)
	}
	return r
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/tests", h.handleListTests)
		r.Get("/tests/{testID}/take", h.handleTakeTest)
		r.Get("/results/check", h.handleCheckSubmission)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Post("/results", h.handleSubmit)
			r.Get("/results/{resultID}", h.handleGetResult)
			r.Post("/results/{resultID}/explain/{index}", h.handleExplain)
			r.Post("/chat", h.handleChat)
		})

		if h.config.AdminToken != "" {
			r.Route("/admin", func(r chi.Router) {
				r.Use(h.requireAdmin)
				r.Post("/tests", h.handleImportTest)
				r.Get("/tests/{testID}/export", h.handleExportResults)
			})
		}
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.TestCount(r.Context())
	if err != nil {
		slog.Error("health check failed", "error", err)
		writeError(w, r, http.StatusServiceUnavailable, "ErrInternal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "tests": count})
}

func (h *Handler) handleListTests(w http.ResponseWriter, r *http.Request) {
	tests, err := h.store.ListTests(r.Context())
	if err != nil {
		h.internalError(w, r, "failed to list tests", err)
		return
	}
	if tests == nil {
		tests = []model.TestSummary{}
	}
	writeJSON(w, http.StatusOK, tests)
}

func (h *Handler) handleTakeTest(w http.ResponseWriter, r *http.Request) {
	test, err := h.store.GetTest(r.Context(), chi.URLParam(r, "testID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "ErrNotFound")
		return
	}
	if err != nil {
		h.internalError(w, r, "failed to load test", err)
		return
	}
	// Answer keys are excluded by the Question JSON tags.
	writeJSON(w, http.StatusOK, test)
}

func (h *Handler) handleCheckSubmission(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = r.Header.Get(userHeader)
	}
	testID := r.URL.Query().Get("testId")
	if userID == "" || testID == "" {
		writeError(w, r, http.StatusBadRequest, "ErrBadRequest")
		return
	}
	submitted, err := h.store.HasSubmission(r.Context(), userID, testID)
	if err != nil {
		h.internalError(w, r, "failed to check submission", err)
		return
	}
	writeJSON(w, http.StatusOK, model.SubmissionStatus{Submitted: submitted})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitRequest
	if fields := bind(r, &req); fields != nil {
		writeValidationError(w, r, fields)
		return
	}
	userID := userFromCtx(r.Context())

	submitted, err := h.store.HasSubmission(r.Context(), userID, req.TestID)
	if err != nil {
		h.internalError(w, r, "failed to check submission", err)
		return
	}
	if submitted {
		writeError(w, r, http.StatusConflict, "ErrAlreadySubmitted")
		return
	}

	// The store enforces one result per user and test; the check above only
	// answers the common case early.
	res, err := h.store.CreateResult(r.Context(), userID, req)
	if errors.Is(err, store.ErrAlreadySubmitted) {
		writeError(w, r, http.StatusConflict, "ErrAlreadySubmitted")
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "ErrNotFound")
		return
	}
	if err != nil {
		h.internalError(w, r, "failed to save result", err)
		return
	}
	slog.Info("result saved", "result_id", res.ID, "user_id", userID, "test_id", req.TestID,
		"score", res.Score, "max_score", res.MaxScore)
	writeJSON(w, http.StatusCreated, model.SubmitResult{ID: res.ID})
}

func (h *Handler) handleGetResult(w http.ResponseWriter, r *http.Request) {
	res, ok := h.ownResult(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ownResult loads the result named in the URL and checks that it belongs to
// the caller. It writes the error response itself.
func (h *Handler) ownResult(w http.ResponseWriter, r *http.Request) (*model.Result, bool) {
	res, err := h.store.GetResult(r.Context(), chi.URLParam(r, "resultID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "ErrNotFound")
		return nil, false
	}
	if err != nil {
		h.internalError(w, r, "failed to load result", err)
		return nil, false
	}
	if res.UserID != userFromCtx(r.Context()) {
		writeError(w, r, http.StatusNotFound, "ErrNotFound")
		return nil, false
	}
	return res, true
}

type explainResponse struct {
	Index         int    `json:"index"`
	Answer        string `json:"answer"`
	CorrectAnswer string `json:"correct_answer"`
	Explanation   string `json:"explanation"`
}

func (h *Handler) handleExplain(w http.ResponseWriter, r *http.Request) {
	if h.llm == nil {
		writeError(w, r, http.StatusNotImplemented, "ErrChatDisabled")
		return
	}
	res, ok := h.ownResult(w, r)
	if !ok {
		return
	}
	test, err := h.store.GetTest(r.Context(), res.TestID)
	if err != nil {
		h.internalError(w, r, "failed to load test", err)
		return
	}
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || idx < 0 || idx >= len(test.Questions) {
		writeError(w, r, http.StatusNotFound, "ErrNotFound")
		return
	}

	q := test.Questions[idx]
	lang := model.ParseLanguage(r.URL.Query().Get("lang"))
	text, err := h.llm.Explain(r.Context(), q, res.Answers[idx], lang)
	if err != nil {
		slog.Error("LLM explanation failed", "result_id", res.ID, "index", idx, "error", err)
		writeError(w, r, http.StatusBadGateway, "ErrInternal")
		return
	}
	writeJSON(w, http.StatusOK, explainResponse{
		Index:         idx,
		Answer:        res.Answers[idx],
		CorrectAnswer: q.CorrectAnswer,
		Explanation:   text,
	})
}

type chatRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	if h.llm == nil {
		writeError(w, r, http.StatusNotImplemented, "ErrChatDisabled")
		return
	}
	var req chatRequest
	if fields := bind(r, &req); fields != nil {
		writeValidationError(w, r, fields)
		return
	}
	reply, err := h.llm.Chat(r.Context(), req.Message)
	if err != nil {
		slog.Error("LLM chat failed", "user_id", userFromCtx(r.Context()), "error", err)
		writeError(w, r, http.StatusBadGateway, "ErrInternal")
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slog.Error(msg, "error", err, "request_id", middleware.GetReqID(r.Context()))
	writeError(w, r, http.StatusInternalServerError, "ErrInternal")
}
