package store

import (
	"testing"
	"time"

	"github.com/formsmith/formsmith/internal/catalog"
	"github.com/formsmith/formsmith/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestRun(t *testing.T, s *Store, r model.Run) {
	t.Helper()
	if err := s.InsertRun(r); err != nil {
		t.Fatalf("insertTestRun %s: %v", r.ID, err)
	}
}

func testRun(id string, status model.RunStatus, formType model.FormType, latencyMs int64, createdAt time.Time) model.Run {
	return model.Run{
		ID:         id,
		Prompt:     "prompt for " + id,
		FormType:   formType,
		Domain:     model.DomainGeneral,
		Complexity: model.ComplexityModerate,
		Tone:       model.ToneProfessional,
		Title:      "Form " + id,
		FieldCount: 3,
		Stages:     []string{"content-analysis", "form-generation"},
		ModelsUsed: []string{"ollama/llama3.2"},
		LatencyMs:  latencyMs,
		Status:     status,
		CreatedAt:  createdAt,
	}
}

func TestRunRoundTrip(t *testing.T) {
	s := newTestStore(t)

	// Empty ledger.
	count, err := s.RunCount()
	if err != nil {
		t.Fatalf("RunCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 runs, got %d", count)
	}

	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	run := testRun("run-1", model.RunSucceeded, model.FormTypeQuiz, 2400, created)
	run.Form = &model.GeneratedForm{
		Title: "Solar System Quiz",
		Fields: []model.FormField{
			{ID: "red_planet", Label: "Which planet is red?", Type: catalog.KeyMultipleChoice,
				Options: []string{"Mars", "Venus", "Jupiter", "Mercury"},
				QuizConfig: &model.QuizConfig{
					CorrectAnswer: model.CorrectAnswer{"Mars"},
					Points:        1,
				}},
			{ID: "why", Label: "Why is it red?", Type: catalog.KeyLongAnswer, Order: 1},
		},
	}
	insertTestRun(t, s, run)

	got, err := s.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got == nil {
		t.Fatal("expected run, got nil")
	}
	if got.Prompt != "prompt for run-1" {
		t.Errorf("expected prompt round-trip, got %q", got.Prompt)
	}
	if got.FormType != model.FormTypeQuiz {
		t.Errorf("expected form type quiz, got %q", got.FormType)
	}
	if got.Status != model.RunSucceeded {
		t.Errorf("expected status succeeded, got %q", got.Status)
	}
	if len(got.Stages) != 2 || got.Stages[0] != "content-analysis" {
		t.Errorf("expected stages round-trip, got %v", got.Stages)
	}
	if len(got.ModelsUsed) != 1 || got.ModelsUsed[0] != "ollama/llama3.2" {
		t.Errorf("expected models round-trip, got %v", got.ModelsUsed)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("expected created_at %v, got %v", created, got.CreatedAt)
	}
	if got.Form == nil {
		t.Fatal("expected form JSON to round-trip")
	}
	if got.Form.Title != "Solar System Quiz" {
		t.Errorf("expected form title round-trip, got %q", got.Form.Title)
	}
	if len(got.Form.Fields) != 2 {
		t.Fatalf("expected 2 form fields, got %d", len(got.Form.Fields))
	}
	qc := got.Form.Fields[0].QuizConfig
	if qc == nil || len(qc.CorrectAnswer) != 1 || qc.CorrectAnswer[0] != "Mars" {
		t.Errorf("expected quiz config round-trip, got %+v", qc)
	}

	// Unknown ID returns nil without error.
	missing, err := s.GetRun("no-such-run")
	if err != nil {
		t.Fatalf("GetRun missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown run, got %+v", missing)
	}
}

func TestInsertRunWithoutForm(t *testing.T) {
	s := newTestStore(t)

	run := testRun("run-failed", model.RunFailed, "", 0, time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC))
	run.Stages = []string{"content-analysis"}
	run.Error = "form generation: all providers failed"
	insertTestRun(t, s, run)

	got, err := s.GetRun("run-failed")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got == nil {
		t.Fatal("expected run, got nil")
	}
	if got.Form != nil {
		t.Errorf("expected nil form, got %+v", got.Form)
	}
	if got.Error != "form generation: all providers failed" {
		t.Errorf("expected error round-trip, got %q", got.Error)
	}
}

func TestListRunsFilter(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	insertTestRun(t, s, testRun("run-a", model.RunSucceeded, model.FormTypeSurvey, 1000, base))
	insertTestRun(t, s, testRun("run-b", model.RunSucceeded, model.FormTypeQuiz, 2000, base.Add(time.Minute)))
	insertTestRun(t, s, testRun("run-c", model.RunFailed, model.FormTypeContact, 0, base.Add(2*time.Minute)))
	insertTestRun(t, s, testRun("run-d", model.RunSucceeded, model.FormTypeQuiz, 3000, base.Add(3*time.Minute)))

	tests := []struct {
		name      string
		filter    RunFilter
		wantCount int
		wantFirst string
	}{
		{"no filter", RunFilter{}, 4, "run-d"},
		{"by status succeeded", RunFilter{Status: model.RunSucceeded}, 3, "run-d"},
		{"by status failed", RunFilter{Status: model.RunFailed}, 1, "run-c"},
		{"by form type quiz", RunFilter{FormType: model.FormTypeQuiz}, 2, "run-d"},
		{"by both", RunFilter{Status: model.RunSucceeded, FormType: model.FormTypeSurvey}, 1, "run-a"},
		{"no match", RunFilter{Status: model.RunFailed, FormType: model.FormTypeQuiz}, 0, ""},
		{"limit", RunFilter{Limit: 2}, 2, "run-d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := s.ListRuns(tt.filter)
			if err != nil {
				t.Fatalf("ListRuns: %v", err)
			}
			if len(runs) != tt.wantCount {
				t.Fatalf("expected %d runs, got %d", tt.wantCount, len(runs))
			}
			if tt.wantFirst != "" && runs[0].ID != tt.wantFirst {
				t.Errorf("expected first run %s, got %s", tt.wantFirst, runs[0].ID)
			}
		})
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	insertTestRun(t, s, testRun("run-a", model.RunSucceeded, model.FormTypeSurvey, 1000, base))
	insertTestRun(t, s, testRun("run-b", model.RunSucceeded, model.FormTypeQuiz, 3000, base.Add(time.Minute)))
	insertTestRun(t, s, testRun("run-c", model.RunFailed, model.FormTypeQuiz, 9000, base.Add(2*time.Minute)))
	insertTestRun(t, s, testRun("run-d", model.RunSucceeded, model.FormTypeContact, 2000, base.Add(3*time.Minute)))

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalRuns != 4 {
		t.Errorf("expected 4 total runs, got %d", stats.TotalRuns)
	}
	if stats.Succeeded != 3 {
		t.Errorf("expected 3 succeeded, got %d", stats.Succeeded)
	}
	if stats.Failed != 1 {
		t.Errorf("expected 1 failed, got %d", stats.Failed)
	}
	// Failed-run latency must not skew the average.
	if stats.AvgLatencyMs != 2000 {
		t.Errorf("expected avg latency 2000, got %d", stats.AvgLatencyMs)
	}
	if len(stats.TopFormTypes) != 3 {
		t.Fatalf("expected 3 form types, got %d", len(stats.TopFormTypes))
	}
	if stats.TopFormTypes[0].FormType != "quiz" || stats.TopFormTypes[0].Count != 2 {
		t.Errorf("expected quiz on top with 2, got %+v", stats.TopFormTypes[0])
	}
	// Equal counts fall back to alphabetical order.
	if stats.TopFormTypes[1].FormType != "contact" || stats.TopFormTypes[2].FormType != "survey" {
		t.Errorf("expected contact then survey, got %+v", stats.TopFormTypes[1:])
	}
}

func TestExportAllRuns(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	insertTestRun(t, s, testRun("run-a", model.RunSucceeded, model.FormTypeSurvey, 1000, base))
	insertTestRun(t, s, testRun("run-b", model.RunFailed, model.FormTypeQuiz, 0, base.Add(time.Minute)))
	insertTestRun(t, s, testRun("run-c", model.RunSucceeded, model.FormTypeQuiz, 3000, base.Add(2*time.Minute)))

	export, err := s.ExportAllRuns(0)
	if err != nil {
		t.Fatalf("ExportAllRuns: %v", err)
	}
	if export.RunCount != 3 || len(export.Runs) != 3 {
		t.Fatalf("expected 3 exported runs, got count=%d len=%d", export.RunCount, len(export.Runs))
	}
	if export.Succeeded != 2 || export.Failed != 1 {
		t.Errorf("expected 2 succeeded / 1 failed, got %d / %d", export.Succeeded, export.Failed)
	}
	if export.AvgLatencyMs != 2000 {
		t.Errorf("expected avg latency 2000, got %d", export.AvgLatencyMs)
	}
	if export.Runs[0].ID != "run-c" {
		t.Errorf("expected newest run first, got %s", export.Runs[0].ID)
	}
	if export.ExportedAt.IsZero() {
		t.Error("expected exported_at to be set")
	}

	// Limited export counts only what it contains.
	limited, err := s.ExportAllRuns(1)
	if err != nil {
		t.Fatalf("ExportAllRuns limited: %v", err)
	}
	if limited.RunCount != 1 || limited.Runs[0].ID != "run-c" {
		t.Errorf("expected single newest run, got count=%d", limited.RunCount)
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)

	// Fresh database is stamped by migrate.
	version, err := s.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != 1 {
		t.Errorf("expected schema version 1, got %d", version)
	}

	if err := s.SetMetadata("default_provider", "ollama"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	value, err := s.GetMetadata("default_provider")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if value != "ollama" {
		t.Errorf("expected 'ollama', got %q", value)
	}

	// Upsert overwrites.
	if err := s.SetMetadata("default_provider", "openai"); err != nil {
		t.Fatalf("SetMetadata overwrite: %v", err)
	}
	value, err = s.GetMetadata("default_provider")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if value != "openai" {
		t.Errorf("expected 'openai', got %q", value)
	}

	// Missing keys are empty, not errors.
	value, err = s.GetMetadata("never_set")
	if err != nil {
		t.Fatalf("GetMetadata missing: %v", err)
	}
	if value != "" {
		t.Errorf("expected empty value, got %q", value)
	}
}
