package pipeline

import (
	"slices"

	"github.com/formsmith/formsmith/internal/catalog"
	"github.com/formsmith/formsmith/internal/enhancer"
	"github.com/formsmith/formsmith/internal/model"
)

// mergeFields folds the improvement passes into the generated fields. The
// optimizer owns the field type, the enhancer owns the label, and for help
// text, placeholder and options the enhancement wins over the optimization,
// which wins over the original. Either result slice may be short or nil
// when its stage was skipped or lost to cancellation.
func mergeFields(fields []model.FormField, opt []model.FieldAnalysisResult, enh []enhancer.EnhancedQuestion, isQuiz bool) []model.FormField {
	out := model.CloneFields(fields)
	for i := range out {
		if i < len(opt) {
			applyOptimization(&out[i], opt[i], isQuiz)
		}
		if i < len(enh) {
			applyEnhancement(&out[i], enh[i])
		}
		out[i].Order = i
	}
	return out
}

func applyOptimization(f *model.FormField, rec model.FieldAnalysisResult, isQuiz bool) {
	if rec.RecommendedType != "" {
		f.Type = rec.RecommendedType
		// Options make no sense on a type that stopped being a choice.
		if !catalog.IsChoice(f.Type) && f.Type != catalog.KeyYesNo {
			f.Options = nil
		}
	}
	if len(rec.SuggestedOptions) > 0 && (catalog.IsChoice(f.Type) || f.Type == catalog.KeyYesNo) {
		replaceOptions(f, rec.SuggestedOptions)
	}
	if rec.SuggestedPlaceholder != "" {
		f.Placeholder = rec.SuggestedPlaceholder
	}
	if rec.SuggestedHelpText != "" {
		f.HelpText = rec.SuggestedHelpText
	}
	if len(rec.SuggestedValidation) > 0 {
		f.Validation = rec.SuggestedValidation
	}
	if isQuiz {
		mergeQuizConfig(f, rec)
	}
}

func applyEnhancement(f *model.FormField, eq enhancer.EnhancedQuestion) {
	if eq.Label != "" {
		f.Label = eq.Label
	}
	if eq.HelpText != "" {
		f.HelpText = eq.HelpText
	}
	if eq.Placeholder != "" {
		f.Placeholder = eq.Placeholder
	}
	// The enhancer only rewords options in place, so a same-length list is
	// the only acceptable replacement.
	if len(eq.Options) > 0 && len(eq.Options) == len(f.Options) {
		replaceOptions(f, eq.Options)
	}
}

// replaceOptions swaps in a new option list, keeping a stored correct
// answer valid: remapped by position when the lists align, substituted into
// the first slot otherwise.
func replaceOptions(f *model.FormField, newOpts []string) {
	old := f.Options
	f.Options = slices.Clone(newOpts)

	if f.QuizConfig == nil || len(f.QuizConfig.CorrectAnswer) == 0 {
		return
	}
	if f.QuizConfig.CorrectAnswer.ContainedIn(f.Options) {
		return
	}
	if len(old) == len(f.Options) {
		f.QuizConfig.CorrectAnswer = remapAnswers(f.QuizConfig.CorrectAnswer, old, f.Options)
		if f.QuizConfig.CorrectAnswer.ContainedIn(f.Options) {
			return
		}
	}
	f.QuizConfig.CorrectAnswer = f.QuizConfig.CorrectAnswer[:1]
	f.Options[0] = f.QuizConfig.CorrectAnswer[0]
}

// remapAnswers translates answers across an option rewrite by position.
// Answers not found in the old list pass through unchanged.
func remapAnswers(answers model.CorrectAnswer, old, updated []string) model.CorrectAnswer {
	out := make(model.CorrectAnswer, len(answers))
	for i, answer := range answers {
		if idx := slices.Index(old, answer); idx >= 0 && idx < len(updated) {
			out[i] = updated[idx]
		} else {
			out[i] = answer
		}
	}
	return out
}

// mergeQuizConfig ensures a scorable quiz field carries scoring data,
// keeping what the structure stage produced and filling gaps from the
// optimizer's suggestion. Fields that ended up unscorable lose their quiz
// config entirely.
func mergeQuizConfig(f *model.FormField, rec model.FieldAnalysisResult) {
	if !catalog.IsScorable(f.Type) {
		f.QuizConfig = nil
		return
	}
	if f.QuizConfig == nil {
		f.QuizConfig = &model.QuizConfig{}
	}
	if f.QuizConfig.Points <= 0 {
		f.QuizConfig.Points = 1
	}
	if len(f.QuizConfig.CorrectAnswer) == 0 && rec.SuggestedCorrectAnswer != "" {
		f.QuizConfig.CorrectAnswer = model.CorrectAnswer{rec.SuggestedCorrectAnswer}
	}
	if len(f.QuizConfig.CorrectAnswer) > 0 && len(f.Options) > 0 &&
		!f.QuizConfig.CorrectAnswer.ContainedIn(f.Options) {
		f.QuizConfig.CorrectAnswer = f.QuizConfig.CorrectAnswer[:1]
		f.Options[0] = f.QuizConfig.CorrectAnswer[0]
	}
}
