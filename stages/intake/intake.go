// Package intake turns a student's free-text request, plus any extracted
// document text, into the structured profile every later stage reads.
package intake

import (
	"context"
	"strings"

	"github.com/KhangChau12/scholarship-advisor/internal/coerce"
	"github.com/KhangChau12/scholarship-advisor/internal/llm"
	"github.com/KhangChau12/scholarship-advisor/internal/pipeline"
	"github.com/KhangChau12/scholarship-advisor/internal/schema"
)

// StageName is how downstream stages refer to intake output.
const StageName = "intake"

const systemPrompt = "You are a scholarship advisor for Vietnamese students. " +
	"Analyze the student's request and any attached documents, then fill in the requested fields. " +
	"Leave a field empty when the student gave no usable signal for it. " +
	"Score completeness from 0 to 100 based on how much of the profile is known."

type completer interface {
	Complete(ctx context.Context, request llm.Request) (coerce.Result, error)
}

// Settings is the stage's configurable policy, mapped from its config body.
type Settings struct {
	Model string `yaml:"model"`
}

// Descriptor declares the intake output shape.
func Descriptor() schema.Descriptor {
	return schema.MustNew(
		schema.Field{Name: "target_country", Kind: schema.KindString, Hint: "destination country, or empty"},
		schema.Field{Name: "field_of_study", Kind: schema.KindString, Hint: "intended field or major"},
		schema.Field{Name: "degree_level", Kind: schema.KindString, Hint: "bachelor, master, or phd"},
		schema.Field{Name: "budget_range", Kind: schema.KindString, Hint: "what the family can afford per year"},
		schema.Field{Name: "profile_summary", Kind: schema.KindString, Hint: "two-sentence academic profile"},
		schema.Field{Name: "completeness_score", Kind: schema.KindNumber, Hint: "0-100"},
		schema.Field{Name: "missing_info", Kind: schema.KindList, Elem: &schema.Field{Kind: schema.KindString}},
		schema.Field{Name: "clarification_questions", Kind: schema.KindList, Elem: &schema.Field{Kind: schema.KindString}},
	)
}

// New builds the intake stage for one advisory run.
func New(llmCompleter completer, settings Settings, requestText string, documentText string) pipeline.Stage {
	descriptor := Descriptor()
	return pipeline.Stage{
		Name:   StageName,
		Schema: descriptor,
		Run: func(ctx context.Context, _ *pipeline.RunContext) (pipeline.Outcome, error) {
			request := llm.UserRequest(systemPrompt, buildUserPrompt(requestText, documentText), descriptor)
			request.Model = settings.Model
			result, err := llmCompleter.Complete(ctx, request)
			if err != nil {
				return pipeline.Outcome{}, err
			}
			return pipeline.OutcomeOf(result), nil
		},
	}
}

func buildUserPrompt(requestText string, documentText string) string {
	var builder strings.Builder
	builder.WriteString("Student request:\n")
	builder.WriteString(strings.TrimSpace(requestText))
	if trimmed := strings.TrimSpace(documentText); trimmed != "" {
		builder.WriteString("\n\nAttached documents:\n")
		builder.WriteString(trimmed)
	}
	return builder.String()
}
