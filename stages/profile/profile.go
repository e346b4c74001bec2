// Package profile assesses the student's competitiveness. The narrative
// assessment comes from the completion service; the numeric score and rating
// are computed locally from document facts so they stay deterministic.
package profile

import (
	"context"
	"strconv"
	"strings"

	"github.com/KhangChau12/scholarship-advisor/internal/coerce"
	"github.com/KhangChau12/scholarship-advisor/internal/docext"
	"github.com/KhangChau12/scholarship-advisor/internal/llm"
	"github.com/KhangChau12/scholarship-advisor/internal/pipeline"
	"github.com/KhangChau12/scholarship-advisor/internal/schema"
	"github.com/KhangChau12/scholarship-advisor/stages/intake"
)

// StageName is how downstream stages refer to profile output.
const StageName = "profile"

const systemPrompt = "You assess a Vietnamese student's scholarship competitiveness. " +
	"Be candid about weaknesses; generic encouragement helps nobody. " +
	"Ground every point in the profile details you were given."

type completer interface {
	Complete(ctx context.Context, request llm.Request) (coerce.Result, error)
}

// Settings is the stage's configurable policy, mapped from its config body.
type Settings struct {
	Model string `yaml:"model"`
}

// Descriptor declares the profile output shape. profile_score and rating are
// overwritten with locally computed values after coercion.
func Descriptor() schema.Descriptor {
	return schema.MustNew(
		schema.Field{Name: "strengths", Kind: schema.KindList, Elem: &schema.Field{Kind: schema.KindString}},
		schema.Field{Name: "weaknesses", Kind: schema.KindList, Elem: &schema.Field{Kind: schema.KindString}},
		schema.Field{Name: "improvement_plan", Kind: schema.KindList, Elem: &schema.Field{Kind: schema.KindString}},
		schema.Field{Name: "assessment", Kind: schema.KindString, Hint: "three-sentence overall judgment"},
		schema.Field{Name: "profile_score", Kind: schema.KindNumber, Hint: "0-100"},
		schema.Field{Name: "rating", Kind: schema.KindString},
	)
}

// New builds the profile assessment stage for one advisory run.
func New(llmCompleter completer, settings Settings, documentText string) pipeline.Stage {
	descriptor := Descriptor()
	return pipeline.Stage{
		Name:     StageName,
		Requires: []string{intake.StageName},
		Schema:   descriptor,
		Run: func(ctx context.Context, run *pipeline.RunContext) (pipeline.Outcome, error) {
			facts := docext.ScrapeProfile(documentText)
			request := llm.UserRequest(systemPrompt, buildUserPrompt(run, facts, documentText), descriptor)
			request.Model = settings.Model

			result, err := llmCompleter.Complete(ctx, request)
			if err != nil {
				return pipeline.Outcome{}, err
			}

			score := Score(facts)
			result.Value["profile_score"] = score
			result.Value["rating"] = Rating(score)
			result.Defaulted = withoutFields(result.Defaulted, "profile_score", "rating")
			return pipeline.OutcomeOf(result), nil
		},
	}
}

func buildUserPrompt(run *pipeline.RunContext, facts docext.ProfileFacts, documentText string) string {
	var builder strings.Builder
	builder.WriteString("Profile summary: ")
	builder.WriteString(run.String(intake.StageName, "profile_summary"))
	builder.WriteString("\nField of study: ")
	builder.WriteString(run.String(intake.StageName, "field_of_study"))
	builder.WriteString("\nDegree level: ")
	builder.WriteString(run.String(intake.StageName, "degree_level"))

	if facts.GPA > 0 || facts.IELTS > 0 || facts.TOEFL > 0 || facts.SAT > 0 {
		builder.WriteString("\n\nMeasured signals:")
		appendFact(&builder, "GPA", facts.GPA)
		appendFact(&builder, "IELTS", facts.IELTS)
		appendFact(&builder, "TOEFL", facts.TOEFL)
		appendFact(&builder, "SAT", facts.SAT)
	}
	if trimmed := strings.TrimSpace(documentText); trimmed != "" {
		builder.WriteString("\n\nDocuments:\n")
		builder.WriteString(trimmed)
	}
	return builder.String()
}

func appendFact(builder *strings.Builder, label string, value float64) {
	if value <= 0 {
		return
	}
	builder.WriteString("\n- ")
	builder.WriteString(label)
	builder.WriteString(": ")
	builder.WriteString(strconv.FormatFloat(value, 'f', -1, 64))
}

func withoutFields(defaulted []string, names ...string) []string {
	kept := defaulted[:0]
	for _, field := range defaulted {
		skip := false
		for _, name := range names {
			if field == name {
				skip = true
				break
			}
		}
		if !skip {
			kept = append(kept, field)
		}
	}
	return kept
}
