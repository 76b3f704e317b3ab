// Package handler exposes the generation pipeline and the run ledger over
// HTTP as a JSON API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/formsmith/formsmith/internal/catalog"
	"github.com/formsmith/formsmith/internal/model"
	"github.com/formsmith/formsmith/internal/store"
)

// Runner is the pipeline surface the HTTP layer drives.
type Runner interface {
	Run(ctx context.Context, input model.PipelineInput, cfg model.PipelineConfig) (*model.GeneratedForm, error)
	GenerateQuick(ctx context.Context, prompt string, questionCount int) (*model.GeneratedForm, error)
	GenerateHighQuality(ctx context.Context, prompt string) (*model.GeneratedForm, error)
	GenerateQuiz(ctx context.Context, topic string, questionCount int, referenceData string) (*model.GeneratedForm, error)
	GenerateSurvey(ctx context.Context, topic string, questionCount int) (*model.GeneratedForm, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	pipeline  Runner
	store     *store.Store
	logger    *slog.Logger
	providers []string
}

// Config carries Handler options.
type Config struct {
	// Providers is the backend list reported by the health endpoint.
	Providers []string
	Logger    *slog.Logger
}

// New creates a new Handler.
func New(pipeline Runner, s *store.Store, cfg Config) (*Handler, error) {
	if pipeline == nil {
		return nil, errors.New("handler: pipeline is required")
	}
	if s == nil {
		return nil, errors.New("handler: store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{pipeline: pipeline, store: s, logger: logger, providers: cfg.Providers}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/forms/generate", h.handleGenerate)
	r.Post("/api/forms/quiz", h.handleGenerateQuiz)
	r.Post("/api/forms/survey", h.handleGenerateSurvey)
	r.Get("/api/runs", h.handleListRuns)
	r.Get("/api/runs/{runID}", h.handleGetRun)
	r.Get("/api/stats", h.handleStats)
	r.Get("/api/fieldtypes", h.handleFieldTypes)
	r.Get("/healthz", h.handleHealth)
}

type generateRequest struct {
	Prompt        string          `json:"prompt"`
	UserContext   string          `json:"userContext,omitempty"`
	QuestionCount int             `json:"questionCount,omitempty"`
	ReferenceData string          `json:"referenceData,omitempty"`
	Config        *generateConfig `json:"config,omitempty"`
}

type generateConfig struct {
	Preset                  string `json:"preset,omitempty"`
	SkipFieldOptimization   bool   `json:"skipFieldOptimization,omitempty"`
	SkipQuestionEnhancement bool   `json:"skipQuestionEnhancement,omitempty"`
	ParallelOptimization    bool   `json:"parallelOptimization,omitempty"`
	MaxLatencyMs            int64  `json:"maxLatencyMs,omitempty"`
	Tone                    string `json:"tone,omitempty"`
	PreferredProvider       string `json:"preferredProvider,omitempty"`
}

func (req generateRequest) input() model.PipelineInput {
	return model.PipelineInput{
		Prompt:        req.Prompt,
		UserContext:   req.UserContext,
		QuestionCount: req.QuestionCount,
		ReferenceData: req.ReferenceData,
	}
}

func (req generateRequest) pipelineConfig() model.PipelineConfig {
	if req.Config == nil {
		return model.PipelineConfig{}
	}
	return model.PipelineConfig{
		SkipFieldOptimization:   req.Config.SkipFieldOptimization,
		SkipQuestionEnhancement: req.Config.SkipQuestionEnhancement,
		ParallelOptimization:    req.Config.ParallelOptimization,
		MaxLatency:              time.Duration(req.Config.MaxLatencyMs) * time.Millisecond,
		Tone:                    model.Tone(strings.ToLower(strings.TrimSpace(req.Config.Tone))),
		PreferredProvider:       strings.TrimSpace(req.Config.PreferredProvider),
	}
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	preset := ""
	if req.Config != nil {
		preset = strings.ToLower(strings.TrimSpace(req.Config.Preset))
	}

	runID := uuid.NewString()
	ctx := model.ContextWithRunID(r.Context(), runID)
	started := time.Now()

	var form *model.GeneratedForm
	var err error
	switch preset {
	case "":
		form, err = h.pipeline.Run(ctx, req.input(), req.pipelineConfig())
	case "quick":
		form, err = h.pipeline.GenerateQuick(ctx, req.Prompt, req.QuestionCount)
	case "high-quality":
		form, err = h.pipeline.GenerateHighQuality(ctx, req.Prompt)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown preset %q", preset))
		return
	}
	h.respondGenerated(w, runID, req.input(), form, time.Since(started), err)
}

type quizRequest struct {
	Topic         string `json:"topic"`
	Count         int    `json:"count,omitempty"`
	ReferenceData string `json:"referenceData,omitempty"`
}

func (h *Handler) handleGenerateQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}

	runID := uuid.NewString()
	ctx := model.ContextWithRunID(r.Context(), runID)
	started := time.Now()

	form, err := h.pipeline.GenerateQuiz(ctx, req.Topic, req.Count, req.ReferenceData)
	input := model.PipelineInput{Prompt: req.Topic, QuestionCount: req.Count, ReferenceData: req.ReferenceData}
	h.respondGenerated(w, runID, input, form, time.Since(started), err)
}

type surveyRequest struct {
	Topic string `json:"topic"`
	Count int    `json:"count,omitempty"`
}

func (h *Handler) handleGenerateSurvey(w http.ResponseWriter, r *http.Request) {
	var req surveyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}

	runID := uuid.NewString()
	ctx := model.ContextWithRunID(r.Context(), runID)
	started := time.Now()

	form, err := h.pipeline.GenerateSurvey(ctx, req.Topic, req.Count)
	input := model.PipelineInput{Prompt: req.Topic, QuestionCount: req.Count}
	h.respondGenerated(w, runID, input, form, time.Since(started), err)
}

// respondGenerated records the outcome in the ledger and writes the HTTP
// response. Pipeline failures map to 502 since the fault sits with the
// upstream providers, not the request.
func (h *Handler) respondGenerated(w http.ResponseWriter, runID string, input model.PipelineInput, form *model.GeneratedForm, latency time.Duration, err error) {
	w.Header().Set("X-Run-ID", runID)
	if err != nil {
		h.recordRun(runID, input, nil, latency, err)
		h.logger.Error("form generation failed", "run_id", runID, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.recordRun(runID, input, form, latency, nil)
	writeJSON(w, http.StatusOK, form)
}

// recordRun persists one run outcome. Ledger problems are logged, never
// surfaced to the client.
func (h *Handler) recordRun(runID string, input model.PipelineInput, form *model.GeneratedForm, latency time.Duration, runErr error) {
	if err := h.store.InsertRun(model.NewRun(runID, input, form, latency, runErr)); err != nil {
		h.logger.Error("record run failed", "run_id", runID, "error", err)
	}
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{Limit: 50}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	filter.Status = model.RunStatus(r.URL.Query().Get("status"))
	filter.FormType = model.FormType(r.URL.Query().Get("form_type"))

	runs, err := h.store.ListRuns(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Summaries only. GET /api/runs/{runID} serves the form JSON.
	for i := range runs {
		runs[i].Form = nil
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.GetRun(chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleFieldTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalog.Types())
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"providers": h.providers,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
