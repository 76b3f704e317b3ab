package model

import (
	"context"
	"encoding/json"
	"testing"
)

func TestContentAnalysisNormalizeDefaults(t *testing.T) {
	var a ContentAnalysis
	a.Normalize()

	if a.Domain != DomainGeneral {
		t.Errorf("Domain = %q, want %q", a.Domain, DomainGeneral)
	}
	if a.FormType != FormTypeGeneral {
		t.Errorf("FormType = %q, want %q", a.FormType, FormTypeGeneral)
	}
	if a.Tone != ToneProfessional {
		t.Errorf("Tone = %q, want %q", a.Tone, ToneProfessional)
	}
	if a.Complexity != ComplexityModerate {
		t.Errorf("Complexity = %q, want %q", a.Complexity, ComplexityModerate)
	}
	if a.KeyTopics == nil || a.EssentialFields == nil || a.StrategicFields == nil {
		t.Error("expected nil slices to be replaced with empty slices")
	}
}

func TestContentAnalysisNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   ContentAnalysis
		want func(t *testing.T, a ContentAnalysis)
	}{
		{
			name: "unknown values replaced",
			in:   ContentAnalysis{Domain: "astrology", FormType: "poem", Tone: "sarcastic", Complexity: "extreme"},
			want: func(t *testing.T, a ContentAnalysis) {
				if a.Domain != DomainGeneral || a.FormType != FormTypeGeneral {
					t.Errorf("got domain %q, form type %q", a.Domain, a.FormType)
				}
				if a.Tone != ToneProfessional || a.Complexity != ComplexityModerate {
					t.Errorf("got tone %q, complexity %q", a.Tone, a.Complexity)
				}
			},
		},
		{
			name: "mixed case accepted",
			in:   ContentAnalysis{Domain: "Education", FormType: "Quiz", Tone: "Friendly", Complexity: "Simple"},
			want: func(t *testing.T, a ContentAnalysis) {
				if a.Domain != DomainEducation || a.FormType != FormTypeQuiz {
					t.Errorf("got domain %q, form type %q", a.Domain, a.FormType)
				}
				if !a.IsQuiz {
					t.Error("quiz form type should force IsQuiz")
				}
			},
		},
		{
			name: "survey form type forces IsSurvey",
			in:   ContentAnalysis{FormType: FormTypeSurvey},
			want: func(t *testing.T, a ContentAnalysis) {
				if !a.IsSurvey {
					t.Error("survey form type should force IsSurvey")
				}
			},
		},
		{
			name: "confidence clamped high",
			in:   ContentAnalysis{Confidence: 12.5},
			want: func(t *testing.T, a ContentAnalysis) {
				if a.Confidence != 1 {
					t.Errorf("Confidence = %v, want 1", a.Confidence)
				}
			},
		},
		{
			name: "confidence clamped low",
			in:   ContentAnalysis{Confidence: -0.3},
			want: func(t *testing.T, a ContentAnalysis) {
				if a.Confidence != 0 {
					t.Errorf("Confidence = %v, want 0", a.Confidence)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := tt.in
			a.Normalize()
			tt.want(t, a)
		})
	}
}

func TestCorrectAnswerJSON(t *testing.T) {
	t.Run("single answer marshals as string", func(t *testing.T) {
		data, err := json.Marshal(CorrectAnswer{"Mars"})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(data) != `"Mars"` {
			t.Errorf("got %s, want %q", data, "Mars")
		}
	})

	t.Run("multiple answers marshal as array", func(t *testing.T) {
		data, err := json.Marshal(CorrectAnswer{"Mars", "Venus"})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(data) != `["Mars","Venus"]` {
			t.Errorf("got %s", data)
		}
	})

	t.Run("unmarshal string", func(t *testing.T) {
		var c CorrectAnswer
		if err := json.Unmarshal([]byte(`"Mars"`), &c); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(c) != 1 || c[0] != "Mars" {
			t.Errorf("got %v", c)
		}
	})

	t.Run("unmarshal array", func(t *testing.T) {
		var c CorrectAnswer
		if err := json.Unmarshal([]byte(`["Mars","Venus"]`), &c); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(c) != 2 {
			t.Errorf("got %v", c)
		}
	})

	t.Run("unmarshal empty string means unset", func(t *testing.T) {
		var c CorrectAnswer
		if err := json.Unmarshal([]byte(`""`), &c); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(c) != 0 {
			t.Errorf("got %v, want empty", c)
		}
	})
}

func TestCorrectAnswerContainedIn(t *testing.T) {
	options := []string{"Mars", "Venus", "Jupiter", "Saturn"}

	tests := []struct {
		name   string
		answer CorrectAnswer
		want   bool
	}{
		{"present", CorrectAnswer{"Mars"}, true},
		{"absent", CorrectAnswer{"Pluto"}, false},
		{"all present", CorrectAnswer{"Mars", "Venus"}, true},
		{"one absent", CorrectAnswer{"Mars", "Pluto"}, false},
		{"empty answer", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.answer.ContainedIn(options); got != tt.want {
				t.Errorf("ContainedIn = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCloneFields(t *testing.T) {
	original := []FormField{
		{
			ID:         "q1",
			Label:      "Which planet is red?",
			Type:       "multiple-choice",
			Options:    []string{"Mars", "Venus"},
			Validation: map[string]any{"required": true},
			QuizConfig: &QuizConfig{CorrectAnswer: CorrectAnswer{"Mars"}, Points: 1},
		},
	}

	clone := CloneFields(original)
	clone[0].Options[0] = "Pluto"
	clone[0].Validation["required"] = false
	clone[0].QuizConfig.CorrectAnswer[0] = "Pluto"
	clone[0].QuizConfig.Points = 5

	if original[0].Options[0] != "Mars" {
		t.Error("clone shares the options slice with the original")
	}
	if original[0].Validation["required"] != true {
		t.Error("clone shares the validation map with the original")
	}
	if original[0].QuizConfig.CorrectAnswer[0] != "Mars" || original[0].QuizConfig.Points != 1 {
		t.Error("clone shares the quiz config with the original")
	}
}

func TestRunIDContext(t *testing.T) {
	ctx := context.Background()
	if got := RunIDFromContext(ctx); got != "" {
		t.Errorf("empty context returned run ID %q", got)
	}

	ctx = ContextWithRunID(ctx, "run-123")
	if got := RunIDFromContext(ctx); got != "run-123" {
		t.Errorf("got %q, want run-123", got)
	}
}
