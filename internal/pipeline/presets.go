package pipeline

import (
	"context"

	"github.com/formsmith/formsmith/internal/model"
)

// GenerateQuick produces a form with the improvement passes skipped,
// trading polish for latency.
func (p *Pipeline) GenerateQuick(ctx context.Context, prompt string, questionCount int) (*model.GeneratedForm, error) {
	return p.run(ctx, model.PipelineInput{Prompt: prompt, QuestionCount: questionCount}, model.PipelineConfig{
		SkipFieldOptimization:   true,
		SkipQuestionEnhancement: true,
	}, "")
}

// GenerateHighQuality runs every stage, with the improvement passes in
// parallel.
func (p *Pipeline) GenerateHighQuality(ctx context.Context, prompt string) (*model.GeneratedForm, error) {
	return p.run(ctx, model.PipelineInput{Prompt: prompt}, model.PipelineConfig{
		ParallelOptimization: true,
	}, "")
}

// GenerateQuiz produces a scored quiz no matter how the request reads,
// with questionCount questions when positive. Reference material, such as
// lecture notes, is passed through to the structure prompt.
func (p *Pipeline) GenerateQuiz(ctx context.Context, topic string, questionCount int, referenceData string) (*model.GeneratedForm, error) {
	input := model.PipelineInput{
		Prompt:        topic,
		QuestionCount: questionCount,
		ReferenceData: referenceData,
	}
	return p.run(ctx, input, model.PipelineConfig{
		ParallelOptimization: true,
	}, model.FormTypeQuiz)
}

// GenerateSurvey produces a survey, holding the wording pass to the survey
// variant's neutrality rules.
func (p *Pipeline) GenerateSurvey(ctx context.Context, topic string, questionCount int) (*model.GeneratedForm, error) {
	return p.run(ctx, model.PipelineInput{Prompt: topic, QuestionCount: questionCount}, model.PipelineConfig{
		ParallelOptimization: true,
	}, model.FormTypeSurvey)
}
