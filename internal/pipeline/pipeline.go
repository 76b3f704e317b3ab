// Package pipeline orchestrates form generation: content analysis, structure
// generation, then field optimization and question enhancement running in
// parallel, merged into one finished form.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/formsmith/formsmith/internal/analyzer"
	"github.com/formsmith/formsmith/internal/catalog"
	"github.com/formsmith/formsmith/internal/enhancer"
	"github.com/formsmith/formsmith/internal/jsonx"
	"github.com/formsmith/formsmith/internal/llm"
	"github.com/formsmith/formsmith/internal/llm/prompts"
	"github.com/formsmith/formsmith/internal/model"
	"github.com/formsmith/formsmith/internal/telemetry"
)

// Stage names as they appear in form metadata and run records.
const (
	StageContentAnalysis     = "content-analysis"
	StageFormGeneration      = "form-generation"
	StageFieldOptimization   = "field-optimization"
	StageQuestionEnhancement = "question-enhancement"
)

// Reference material longer than this routes structure generation to the
// long-context model tier.
const longContextThreshold = 4000

// Pipeline generates complete forms from natural language prompts.
type Pipeline struct {
	llm    llm.Completer
	logger *slog.Logger
	tracer trace.Tracer
}

// Options configures a Pipeline. Zero values fall back to the process-wide
// defaults.
type Options struct {
	Logger *slog.Logger
	Tracer trace.Tracer
}

// New assembles a Pipeline around a completion client.
func New(completer llm.Completer, opts Options) (*Pipeline, error) {
	if completer == nil {
		return nil, errors.New("pipeline: completion client is required")
	}
	if err := prompts.Load(prompts.Templates); err != nil {
		return nil, fmt.Errorf("load prompt templates: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer("pipeline")
	}
	return &Pipeline{llm: completer, logger: logger, tracer: tracer}, nil
}

// Run executes the full pipeline for one request.
func (p *Pipeline) Run(ctx context.Context, input model.PipelineInput, cfg model.PipelineConfig) (*model.GeneratedForm, error) {
	return p.run(ctx, input, cfg, "")
}

// run is the shared implementation behind Run and the presets. A non-empty
// force overrides whatever form type the analysis stage classifies.
func (p *Pipeline) run(ctx context.Context, input model.PipelineInput, cfg model.PipelineConfig, force model.FormType) (*model.GeneratedForm, error) {
	if strings.TrimSpace(input.Prompt) == "" {
		return nil, errors.New("pipeline: prompt is empty")
	}
	if input.QuestionCount < 0 {
		input.QuestionCount = 0
	}

	runID := model.RunIDFromContext(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = model.ContextWithRunID(ctx, runID)
	}
	if cfg.MaxLatency > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.MaxLatency)
		defer cancel()
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.Int("request.question_count", input.QuestionCount),
	))
	defer span.End()

	logger := p.logger.With("run_id", runID)
	start := time.Now()
	state := &runState{}
	rec := &recordingCompleter{inner: p.llm, state: state, preferred: cfg.PreferredProvider}
	fieldAnalyzer := analyzer.New(rec, logger)
	qEnhancer := enhancer.New(rec, logger)

	analysis := p.analyzeContent(ctx, rec, input, logger, state)
	if force != "" {
		analysis.FormType = force
		analysis.IsQuiz = force == model.FormTypeQuiz
		analysis.IsSurvey = force == model.FormTypeSurvey
	}
	if cfg.Tone.Valid() {
		analysis.Tone = cfg.Tone
	}

	// Structure generation is the one stage that can fail the run: without
	// a skeleton there is nothing to improve.
	form, err := p.generateStructure(ctx, rec, input, analysis, logger, state)
	if err != nil {
		telemetry.PipelineRunTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "form generation failed")
		return nil, err
	}

	// Simple one-shot forms skip the improvement passes; quizzes and
	// surveys always get them because scoring and wording carry the value.
	simpleForm := analysis.Complexity == model.ComplexitySimple && !analysis.IsQuiz && !analysis.IsSurvey
	skipOptimization := cfg.SkipFieldOptimization || simpleForm
	skipEnhancement := cfg.SkipQuestionEnhancement || simpleForm
	if simpleForm && (!cfg.SkipFieldOptimization || !cfg.SkipQuestionEnhancement) {
		logger.Info("simple form, skipping improvement passes", "complexity", analysis.Complexity)
	}

	var (
		optResults []model.FieldAnalysisResult
		optOK      bool
		enhResults []enhancer.EnhancedQuestion
		enhOK      bool
	)
	switch {
	case skipOptimization && skipEnhancement:
		// Nothing to do.
	case cfg.ParallelOptimization:
		// Both passes read the generated fields and never report errors up,
		// so a branch failing cannot cancel its sibling.
		g, gctx := errgroup.WithContext(ctx)
		if !skipOptimization {
			g.Go(func() error {
				optResults, optOK = p.optimizeFields(gctx, fieldAnalyzer, form, analysis)
				return nil
			})
		}
		if !skipEnhancement {
			g.Go(func() error {
				enhResults, enhOK = p.enhanceQuestions(gctx, qEnhancer, form, analysis)
				return nil
			})
		}
		_ = g.Wait()
	default:
		if !skipOptimization {
			optResults, optOK = p.optimizeFields(ctx, fieldAnalyzer, form, analysis)
		}
		if !skipEnhancement {
			enhResults, enhOK = p.enhanceQuestions(ctx, qEnhancer, form, analysis)
		}
	}
	if optOK {
		state.recordStage(StageFieldOptimization)
	}
	if enhOK {
		state.recordStage(StageQuestionEnhancement)
	}

	form.Fields = mergeFields(form.Fields, optResults, enhResults, analysis.IsQuiz)

	form.Metadata = model.FormMetadata{
		FormType:   analysis.FormType,
		Domain:     analysis.Domain,
		Tone:       analysis.Tone,
		Complexity: analysis.Complexity,
		Pipeline: model.PipelineStats{
			Stages:         state.stageList(),
			TotalLatencyMs: time.Since(start).Milliseconds(),
			ModelsUsed:     state.modelList(),
		},
	}

	telemetry.PipelineRunTotal.WithLabelValues("succeeded").Inc()
	span.SetAttributes(
		attribute.String("form.type", string(analysis.FormType)),
		attribute.Int("form.field_count", len(form.Fields)),
	)
	logger.Info("pipeline run complete",
		"title", form.Title,
		"fields", len(form.Fields),
		"form_type", analysis.FormType,
		"stages", form.Metadata.Pipeline.Stages,
		"latency_ms", form.Metadata.Pipeline.TotalLatencyMs)
	return form, nil
}

// analyzeContent classifies the request. It cannot fail: when no backend
// answers, a keyword scan of the prompt stands in.
func (p *Pipeline) analyzeContent(ctx context.Context, rec llm.Completer, input model.PipelineInput, logger *slog.Logger, state *runState) model.ContentAnalysis {
	ctx, span := p.tracer.Start(ctx, "pipeline.analyze")
	defer span.End()
	start := time.Now()
	defer observeStage(StageContentAnalysis, start)

	analysis, err := p.analyzeWithAI(ctx, rec, input)
	if err != nil {
		logger.Warn("content analysis falling back to keyword scan", "error", err)
		analysis = fallbackAnalysis(input)
	}
	analysis.Normalize()
	state.recordStage(StageContentAnalysis)
	logger.Info("content analysis complete",
		"form_type", analysis.FormType,
		"domain", analysis.Domain,
		"complexity", analysis.Complexity,
		"confidence", analysis.Confidence)
	return analysis
}

func (p *Pipeline) analyzeWithAI(ctx context.Context, rec llm.Completer, input model.PipelineInput) (model.ContentAnalysis, error) {
	prompt, err := prompts.BuildAnalysisPrompt(prompts.AnalysisData{
		Prompt:      input.Prompt,
		UserContext: input.UserContext,
	})
	if err != nil {
		return model.ContentAnalysis{}, err
	}
	res, err := rec.Complete(ctx, llm.CompletionRequest{
		Purpose: llm.PurposeAnalysis,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: prompt},
			{Role: llm.RoleUser, Content: "Analyze the request now."},
		},
		Temperature: 0.2,
		MaxTokens:   1024,
		JSONMode:    true,
	})
	if err != nil {
		return model.ContentAnalysis{}, err
	}
	var analysis model.ContentAnalysis
	if err := jsonx.Unmarshal(res.Content, "content-analysis", &analysis); err != nil {
		return model.ContentAnalysis{}, err
	}
	return analysis, nil
}

// generateStructure produces the form skeleton. Unlike the other stages it
// returns an error: a run without fields has no value.
func (p *Pipeline) generateStructure(ctx context.Context, rec llm.Completer, input model.PipelineInput, analysis model.ContentAnalysis, logger *slog.Logger, state *runState) (*model.GeneratedForm, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.generate")
	defer span.End()
	start := time.Now()
	defer observeStage(StageFormGeneration, start)

	prompt, err := prompts.BuildStructurePrompt(prompts.StructureData{
		Prompt:        input.Prompt,
		Purpose:       analysis.Purpose,
		FormType:      string(analysis.FormType),
		Domain:        string(analysis.Domain),
		Audience:      analysis.Audience,
		Tone:          string(analysis.Tone),
		IsQuiz:        analysis.IsQuiz,
		IsSurvey:      analysis.IsSurvey,
		KeyTopics:     strings.Join(analysis.KeyTopics, ", "),
		QuestionCount: input.QuestionCount,
		ReferenceData: input.ReferenceData,
		TypeReference: catalog.BuildPromptReference(),
	})
	if err != nil {
		return nil, err
	}

	// Quiz extraction from source material always takes the long-context
	// tier; other forms only when the reference outgrows the standard one.
	purpose := llm.PurposeStructure
	if len(input.ReferenceData) > longContextThreshold ||
		(analysis.IsQuiz && strings.TrimSpace(input.ReferenceData) != "") {
		purpose = llm.PurposeLongContext
	}

	res, err := rec.Complete(ctx, llm.CompletionRequest{
		Purpose: purpose,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: prompt},
			{Role: llm.RoleUser, Content: "Generate the form now."},
		},
		Temperature: 0.4,
		MaxTokens:   4096,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("form generation: %w", err)
	}

	var form model.GeneratedForm
	if err := jsonx.Unmarshal(res.Content, "form-structure", &form); err != nil {
		return nil, err
	}
	if len(form.Fields) == 0 {
		return nil, errors.New("form generation: response held no fields")
	}

	normalizeForm(&form, analysis)
	state.recordStage(StageFormGeneration)
	logger.Info("form structure generated",
		"title", form.Title,
		"fields", len(form.Fields),
		"provider", res.Provider,
		"model", res.Model)
	return &form, nil
}

// optimizeFields runs the semantic type pass. The analyzer itself never
// fails, so the only way to lose this stage is run cancellation, in which
// case the heuristic output produced under a dead context is discarded.
func (p *Pipeline) optimizeFields(ctx context.Context, fieldAnalyzer *analyzer.Analyzer, form *model.GeneratedForm, analysis model.ContentAnalysis) ([]model.FieldAnalysisResult, bool) {
	ctx, span := p.tracer.Start(ctx, "pipeline.optimize")
	defer span.End()
	start := time.Now()
	defer observeStage(StageFieldOptimization, start)

	results := fieldAnalyzer.AnalyzeFieldTypes(ctx, model.CloneFields(form.Fields), analyzer.FormContext{
		FormType: string(analysis.FormType),
		Domain:   string(analysis.Domain),
		Audience: analysis.Audience,
		IsQuiz:   analysis.IsQuiz,
	})
	if ctx.Err() != nil {
		return nil, false
	}
	return results, true
}

// enhanceQuestions runs the wording pass with the variant matching the form
// type. Like optimization, it only fails on run cancellation.
func (p *Pipeline) enhanceQuestions(ctx context.Context, qEnhancer *enhancer.Enhancer, form *model.GeneratedForm, analysis model.ContentAnalysis) ([]enhancer.EnhancedQuestion, bool) {
	ctx, span := p.tracer.Start(ctx, "pipeline.enhance")
	defer span.End()
	start := time.Now()
	defer observeStage(StageQuestionEnhancement, start)

	opts := enhancer.Options{
		Tone:     analysis.Tone,
		FormType: string(analysis.FormType),
		Audience: analysis.Audience,
	}
	fields := model.CloneFields(form.Fields)

	var results []enhancer.EnhancedQuestion
	switch {
	case analysis.IsQuiz:
		results = qEnhancer.EnhanceQuiz(ctx, fields, opts)
	case analysis.IsSurvey:
		results = qEnhancer.EnhanceSurvey(ctx, fields, opts)
	default:
		results = qEnhancer.Enhance(ctx, fields, opts)
	}
	if ctx.Err() != nil {
		return nil, false
	}
	return results, true
}

var idCleaner = regexp.MustCompile(`[^a-z0-9]+`)

// normalizeForm anchors a raw structure to the catalog and repairs the gaps
// backends commonly leave: blank titles, missing or duplicate ids, unknown
// type keys, quiz data on a non-quiz form.
func normalizeForm(form *model.GeneratedForm, analysis model.ContentAnalysis) {
	if strings.TrimSpace(form.Title) == "" {
		form.Title = "Generated Form"
	}
	form.Title = strings.TrimSpace(form.Title)
	form.Description = strings.TrimSpace(form.Description)

	seen := make(map[string]bool, len(form.Fields))
	for i := range form.Fields {
		f := &form.Fields[i]

		f.Label = strings.TrimSpace(f.Label)
		if f.Label == "" {
			f.Label = fmt.Sprintf("Question %d", i+1)
		}
		f.ID = fieldID(f.ID, i, seen)
		f.Type = catalog.Normalize(f.Type)
		f.Order = i

		opts := f.Options[:0]
		for _, o := range f.Options {
			if o = strings.TrimSpace(o); o != "" {
				opts = append(opts, o)
			}
		}
		if len(opts) == 0 {
			f.Options = nil
		} else {
			f.Options = opts
		}

		if !analysis.IsQuiz {
			f.QuizConfig = nil
			continue
		}
		// Quiz choice fields always carry at least a repairable option set,
		// even when the improvement passes are skipped.
		if catalog.IsChoice(f.Type) && len(f.Options) < 2 {
			f.Options = analyzer.PlaceholderOptions(4)
		}
		if f.QuizConfig != nil {
			if f.QuizConfig.Points <= 0 {
				f.QuizConfig.Points = 1
			}
			// A claimed answer missing from the options takes the first
			// slot, keeping the field scorable as generated.
			if len(f.QuizConfig.CorrectAnswer) > 0 && len(f.Options) > 0 &&
				!f.QuizConfig.CorrectAnswer.ContainedIn(f.Options) {
				f.Options[0] = f.QuizConfig.CorrectAnswer[0]
			}
		}
	}

	if !analysis.IsQuiz {
		form.QuizMode = nil
		return
	}
	if form.QuizMode == nil {
		form.QuizMode = &model.QuizMode{
			ShowScoreImmediately: true,
			ShowCorrectAnswers:   true,
			ShowExplanations:     true,
		}
	}
	form.QuizMode.Enabled = true
	if form.QuizMode.PassingScore <= 0 {
		form.QuizMode.PassingScore = 70
	}
	if form.QuizMode.PassingScore > 100 {
		form.QuizMode.PassingScore = 100
	}
}

// fieldID normalizes one field id to snake_case and deduplicates it within
// the form.
func fieldID(raw string, i int, seen map[string]bool) string {
	id := idCleaner.ReplaceAllString(strings.ToLower(strings.TrimSpace(raw)), "_")
	id = strings.Trim(id, "_")
	if id == "" {
		id = fmt.Sprintf("field_%d", i+1)
	}
	if seen[id] {
		id = fmt.Sprintf("%s_%d", id, i+1)
	}
	seen[id] = true
	return id
}

// fallbackAnalysis builds a coarse classification from prompt keywords so a
// run can proceed with every backend down.
func fallbackAnalysis(input model.PipelineInput) model.ContentAnalysis {
	haystack := promptWords(input.Prompt + " " + input.UserContext)
	a := model.ContentAnalysis{Confidence: 0.2}

	switch {
	case promptHas(haystack, "quiz", "trivia", "test my", "exam ", "exams "):
		a.FormType = model.FormTypeQuiz
	case promptHas(haystack, "survey", "poll ", "satisfaction", "nps "):
		a.FormType = model.FormTypeSurvey
	case promptHas(haystack, "registration", "register", "sign up", "signup", "enroll"):
		a.FormType = model.FormTypeRegistration
	case promptHas(haystack, "rsvp"):
		a.FormType = model.FormTypeRSVP
	case promptHas(haystack, "booking", "appointment", "reservation"):
		a.FormType = model.FormTypeBooking
	case promptHas(haystack, "order "):
		a.FormType = model.FormTypeOrder
	case promptHas(haystack, "application", "apply", "job "):
		a.FormType = model.FormTypeApplication
	case promptHas(haystack, "donation", "donate"):
		a.FormType = model.FormTypeDonation
	case promptHas(haystack, "review "):
		a.FormType = model.FormTypeReview
	case promptHas(haystack, "feedback"):
		a.FormType = model.FormTypeSurvey
	case promptHas(haystack, "contact"):
		a.FormType = model.FormTypeContact
	}

	switch {
	case promptHas(haystack, "patient", "medical", "clinic", "health"):
		a.Domain = model.DomainHealthcare
	case promptHas(haystack, "student", "course", "school", "class ", "lesson"):
		a.Domain = model.DomainEducation
	case promptHas(haystack, "invoice", "loan ", "insurance", "tax "):
		a.Domain = model.DomainFinance
	case promptHas(haystack, "legal", "contract", "attorney"):
		a.Domain = model.DomainLegal
	case promptHas(haystack, "event ", "wedding", "party ", "conference"):
		a.Domain = model.DomainEvents
	case promptHas(haystack, "employee", "company", "business", "client"):
		a.Domain = model.DomainBusiness
	case promptHas(haystack, "product", "store ", "shop "):
		a.Domain = model.DomainRetail
	}

	a.Normalize()
	return a
}

// promptWords lowercases text, maps punctuation to spaces, and pads both
// ends so keyword checks see word boundaries.
func promptWords(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return ' '
	}, strings.ToLower(s))
	return " " + mapped + " "
}

// promptHas reports whether any keyword starts a word in the haystack. A
// keyword with a trailing space requires the whole word.
func promptHas(haystack string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(haystack, " "+kw) {
			return true
		}
	}
	return false
}

func observeStage(stage string, start time.Time) {
	telemetry.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// runState accumulates stage and model telemetry for one run. The parallel
// improvement passes record through it concurrently.
type runState struct {
	mu     sync.Mutex
	stages []string
	models []string
}

func (s *runState) recordStage(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages = append(s.stages, name)
}

func (s *runState) recordModel(provider, modelName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := provider + "/" + modelName
	if !slices.Contains(s.models, key) {
		s.models = append(s.models, key)
	}
}

func (s *runState) stageList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.stages)
}

func (s *runState) modelList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.models)
}

// recordingCompleter tags every model a run touches and applies the run's
// provider preference, wrapping the shared client so per-run state stays out
// of it.
type recordingCompleter struct {
	inner     llm.Completer
	state     *runState
	preferred string
}

func (r *recordingCompleter) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResult, error) {
	if req.Preferred == "" {
		req.Preferred = r.preferred
	}
	res, err := r.inner.Complete(ctx, req)
	if err == nil {
		r.state.recordModel(res.Provider, res.Model)
	}
	return res, err
}
