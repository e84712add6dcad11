// Package handler exposes the study flow as a JSON API for the
// browser client. Rendering, widgets, and speech playback itself stay
// on the client; the server only prepares data and speech text.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/studyboost/booster/internal/grader"
	appI18n "github.com/studyboost/booster/internal/i18n"
	"github.com/studyboost/booster/internal/model"
	"github.com/studyboost/booster/internal/parser"
	"github.com/studyboost/booster/internal/prompt"
	"github.com/studyboost/booster/internal/session"
	"github.com/studyboost/booster/internal/store"
	"github.com/studyboost/booster/internal/vision"
)

// maxImageBytes caps uploaded page photos.
const maxImageBytes = 10 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	sessions *session.Manager
	store    *store.Store
}

// New creates a Handler.
func New(sessions *session.Manager, st *store.Store) *Handler {
	return &Handler{sessions: sessions, store: st}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", h.handleCreateSession)
		r.Get("/latest", h.handleLatestSession)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Post("/analyze", h.handleAnalyze)
			r.Get("/result", h.handleResult)
			r.Post("/answers", h.handleAnswers)
			r.Get("/history", h.handleHistory)
			r.Post("/retry", h.handleRetry)
			r.Post("/review/exit", h.handleExitReview)
			r.Get("/speech", h.handleSpeech)
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createSessionRequest struct {
	SchoolType string `json:"school_type"`
	Grade      int    `json:"grade"`
	AgeTarget  int    `json:"age_target"`
	QuizCount  int    `json:"quiz_count"`
}

type sessionResponse struct {
	SessionID string                `json:"session_id"`
	Profile   model.Profile         `json:"profile"`
	AgeTarget int                   `json:"age_target"`
	QuizCount int                   `json:"quiz_count"`
	History   model.HistoryDocument `json:"history"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "error.invalid_request", err)
		return
	}

	profile := model.Profile{SchoolType: model.SchoolType(req.SchoolType), Grade: req.Grade}
	config := model.SessionConfig{AgeTarget: req.AgeTarget, QuizCount: req.QuizCount}

	s, err := h.sessions.Create(profile, config)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "error.invalid_request", err)
		return
	}

	respondJSON(w, http.StatusCreated, sessionResponse{
		SessionID: s.ID(),
		Profile:   s.Profile(),
		AgeTarget: config.AgeTarget,
		QuizCount: config.QuizCount,
		History:   s.History(),
	})
}

// handleLatestSession resumes the most recently used profile, the way
// a page reload restores the last session.
func (h *Handler) handleLatestSession(w http.ResponseWriter, r *http.Request) {
	profile, err := h.store.LatestProfile()
	if errors.Is(err, store.ErrNoProfiles) {
		h.respondError(w, r, http.StatusNotFound, "error.no_profiles", err)
		return
	}
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, "error.invalid_request", err)
		return
	}

	// Settings are not stored with the history; resume with defaults.
	config := model.SessionConfig{AgeTarget: 15, QuizCount: 10}
	s, err := h.sessions.Create(profile, config)
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, "error.invalid_request", err)
		return
	}

	respondJSON(w, http.StatusOK, sessionResponse{
		SessionID: s.ID(),
		Profile:   s.Profile(),
		AgeTarget: config.AgeTarget,
		QuizCount: config.QuizCount,
		History:   s.History(),
	})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) *session.Session {
	s, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondError(w, r, http.StatusNotFound, "error.session_not_found", err)
		return nil
	}
	return s
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	// Cap the whole request body so an oversized photo is rejected
	// outright instead of truncated into a corrupt image.
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.respondError(w, r, http.StatusRequestEntityTooLarge, "error.image_too_large", err)
			return
		}
		h.respondError(w, r, http.StatusBadRequest, "error.invalid_request", err)
		return
	}

	subject := model.Subject(r.FormValue("subject"))
	style := prompt.Style(r.FormValue("style"))
	if style == "" {
		style = prompt.StyleSubject
	}
	directive := r.FormValue("directive")

	file, header, err := r.FormFile("image")
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "error.invalid_request", err)
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "error.invalid_request", err)
		return
	}
	mime := header.Header.Get("Content-Type")

	result, err := s.Analyze(r.Context(), subject, style, directive, image, mime)
	if err != nil {
		h.respondAnalyzeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// respondAnalyzeError maps pipeline failures onto HTTP statuses. Every
// failure aborts the whole submission; the client retries by
// resubmitting the image.
func (h *Handler) respondAnalyzeError(w http.ResponseWriter, r *http.Request, err error) {
	var modelErr *vision.ModelCallError
	var malformed *parser.MalformedJSONError
	switch {
	case errors.Is(err, session.ErrMissingCredential):
		h.respondError(w, r, http.StatusUnauthorized, "error.missing_api_key", err)
	case errors.Is(err, session.ErrReviewMode):
		h.respondError(w, r, http.StatusConflict, "error.review_mode", err)
	case errors.As(err, &modelErr):
		h.respondError(w, r, http.StatusBadGateway, "error.model_call_failed", err)
	case errors.Is(err, parser.ErrNoJSONFound):
		h.respondError(w, r, http.StatusUnprocessableEntity, "error.no_json_found", err)
	case errors.As(err, &malformed):
		h.respondError(w, r, http.StatusUnprocessableEntity, "error.malformed_reply", err)
	default:
		h.respondError(w, r, http.StatusUnprocessableEntity, "error.invalid_request", err)
	}
}

func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	current := s.Current()
	if current == nil {
		h.respondError(w, r, http.StatusNotFound, "error.no_analysis", session.ErrNoAnalysis)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"result":      current,
		"review_mode": s.InReview(),
	})
}

type answersRequest struct {
	Selections []int  `json:"selections"`
	Page       string `json:"page"`
}

type answersResponse struct {
	Correct  int                   `json:"correct"`
	Total    int                   `json:"total"`
	Score    string                `json:"score"`
	Tier     grader.Tier           `json:"tier"`
	Feedback model.FeedbackComment `json:"feedback"`
	Recorded bool                  `json:"recorded"`
	Message  string                `json:"message,omitempty"`
}

func (h *Handler) handleAnswers(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	var req answersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "error.invalid_request", err)
		return
	}

	result, feedback, err := s.SubmitAnswers(req.Selections)
	if err != nil {
		var incomplete *grader.IncompleteError
		switch {
		case errors.Is(err, session.ErrNoAnalysis):
			h.respondError(w, r, http.StatusConflict, "error.no_analysis", err)
		case errors.As(err, &incomplete):
			respondJSON(w, http.StatusBadRequest, map[string]any{
				"error": appI18n.Td(r.Context(), "error.quiz_incomplete", map[string]any{
					"Answered": incomplete.Answered,
					"Total":    incomplete.Total,
				}),
				"answered": incomplete.Answered,
				"total":    incomplete.Total,
			})
		default:
			h.respondError(w, r, http.StatusBadRequest, "error.invalid_request", err)
		}
		return
	}

	resp := answersResponse{
		Correct:  result.Correct,
		Total:    result.Total,
		Score:    result.DisplayScore(),
		Tier:     result.Tier,
		Feedback: feedback,
	}

	if !s.InReview() {
		if _, err := s.RecordResult(req.Page, result); err != nil {
			slog.Error("record result", "session", s.ID(), "error", err)
		} else {
			resp.Recorded = true
			resp.Message = appI18n.T(r.Context(), "msg.history_saved")
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"profile": s.Profile(),
		"history": s.History(),
	})
}

type retryRequest struct {
	Subject string `json:"subject"`
	Index   int    `json:"index"`
}

func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	var req retryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "error.invalid_request", err)
		return
	}

	result, err := s.StartReview(model.Subject(req.Subject), req.Index)
	if err != nil {
		if errors.Is(err, session.ErrNoQuizzesSaved) {
			h.respondError(w, r, http.StatusConflict, "error.no_quizzes_saved", err)
			return
		}
		h.respondError(w, r, http.StatusNotFound, "error.invalid_request", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"result":      result,
		"review_mode": true,
	})
}

func (h *Handler) handleExitReview(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	s.ExitReview()
	respondJSON(w, http.StatusOK, map[string]any{"review_mode": false})
}

// handleSpeech returns the text, rate, and language tag for one
// playback request. Synthesis happens client-side; a new request
// simply replaces whatever is playing.
func (h *Handler) handleSpeech(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}

	rate := 1.0
	if v := r.URL.Query().Get("rate"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed < 0.5 || parsed > 2.0 {
			h.respondError(w, r, http.StatusBadRequest, "error.invalid_request", errors.New("invalid rate"))
			return
		}
		rate = parsed
	}

	var (
		utt any
		err error
	)
	switch target := r.URL.Query().Get("target"); target {
	case "", "full":
		utt, err = s.SpeechFull(rate)
	case "english":
		utt, err = s.SpeechEnglish(rate)
	case "block":
		index, convErr := strconv.Atoi(r.URL.Query().Get("index"))
		if convErr != nil {
			h.respondError(w, r, http.StatusBadRequest, "error.invalid_request", convErr)
			return
		}
		utt, err = s.SpeechBlock(index, rate)
	case "feedback":
		utt, err = s.SpeechFeedback(grader.Tier(r.URL.Query().Get("tier")), rate)
	default:
		h.respondError(w, r, http.StatusBadRequest, "error.invalid_request", errors.New("unknown target"))
		return
	}
	if err != nil {
		if errors.Is(err, session.ErrNoAnalysis) {
			h.respondError(w, r, http.StatusConflict, "error.no_analysis", err)
			return
		}
		h.respondError(w, r, http.StatusNotFound, "error.invalid_request", err)
		return
	}

	respondJSON(w, http.StatusOK, utt)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, status int, msgID string, err error) {
	if status >= 500 {
		slog.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		slog.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	respondJSON(w, status, map[string]string{"error": appI18n.T(r.Context(), msgID)})
}
