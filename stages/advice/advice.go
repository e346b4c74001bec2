// Package advice produces the final deliverable: an executive summary with a
// prioritized application list, action plan, and timeline, optionally mailed
// to the student.
package advice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KhangChau12/scholarship-advisor/internal/coerce"
	"github.com/KhangChau12/scholarship-advisor/internal/llm"
	"github.com/KhangChau12/scholarship-advisor/internal/notify"
	"github.com/KhangChau12/scholarship-advisor/internal/pipeline"
	"github.com/KhangChau12/scholarship-advisor/internal/schema"
	"github.com/KhangChau12/scholarship-advisor/stages/finance"
	"github.com/KhangChau12/scholarship-advisor/stages/intake"
	"github.com/KhangChau12/scholarship-advisor/stages/profile"
	"github.com/KhangChau12/scholarship-advisor/stages/scholarships"
)

// StageName names the advice stage in reports.
const StageName = "advice"

const emailSubject = "Your scholarship advisory summary"

const systemPrompt = "You are a scholarship advisor writing a final summary for a Vietnamese student. " +
	"Be specific: name programs, dates, and amounts from the analysis you were given. " +
	"The action plan is concrete next steps, the timeline maps months to milestones, " +
	"and the success probability reflects the profile score honestly."

type completer interface {
	Complete(ctx context.Context, request llm.Request) (coerce.Result, error)
}

// Settings is the stage's configurable policy, mapped from its config body.
type Settings struct {
	Model   string  `yaml:"model"`
	Weights Weights `yaml:"weights"`
}

func summaryDescriptor() schema.Descriptor {
	return schema.MustNew(
		schema.Field{Name: "executive_summary", Kind: schema.KindString, Hint: "one paragraph"},
		schema.Field{Name: "action_plan", Kind: schema.KindList, Elem: &schema.Field{Kind: schema.KindString}},
		schema.Field{Name: "timeline", Kind: schema.KindList, Elem: &schema.Field{Kind: schema.KindString}, Hint: "month: milestone"},
		schema.Field{Name: "success_probability", Kind: schema.KindNumber, Hint: "0-100"},
	)
}

// Descriptor declares the advice output shape: the coerced summary plus the
// locally computed prioritization and delivery flag.
func Descriptor() schema.Descriptor {
	return schema.MustNew(
		schema.Field{Name: "executive_summary", Kind: schema.KindString},
		schema.Field{Name: "action_plan", Kind: schema.KindList, Elem: &schema.Field{Kind: schema.KindString}},
		schema.Field{Name: "timeline", Kind: schema.KindList, Elem: &schema.Field{Kind: schema.KindString}},
		schema.Field{Name: "success_probability", Kind: schema.KindNumber},
		schema.Field{Name: "prioritized_scholarships", Kind: schema.KindList, Elem: &schema.Field{Kind: schema.KindObject}},
		schema.Field{Name: "notification_sent", Kind: schema.KindBoolean},
	)
}

// New builds the advice stage. Mailer and recipient may be empty; delivery is
// best-effort and never fails the stage.
func New(llmCompleter completer, mailer notify.Mailer, recipient string, settings Settings, logger *zap.Logger, now func() time.Time) pipeline.Stage {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return pipeline.Stage{
		Name:     StageName,
		Requires: []string{intake.StageName, scholarships.StageName, profile.StageName, finance.StageName},
		Schema:   Descriptor(),
		Run: func(ctx context.Context, run *pipeline.RunContext) (pipeline.Outcome, error) {
			profileScore := run.Number(profile.StageName, "profile_score")
			items := scholarshipItems(run)
			prioritized := Prioritize(items, profileScore, now(), settings.Weights)

			request := llm.UserRequest(systemPrompt, buildUserPrompt(run, prioritized), summaryDescriptor())
			request.Model = settings.Model
			result, err := llmCompleter.Complete(ctx, request)
			if err != nil {
				return pipeline.Outcome{}, err
			}

			prioritizedValue := make([]any, 0, len(prioritized))
			for _, item := range prioritized {
				prioritizedValue = append(prioritizedValue, item)
			}

			value := make(map[string]any, len(result.Value)+2)
			for key, fieldValue := range result.Value {
				value[key] = fieldValue
			}
			value["prioritized_scholarships"] = prioritizedValue

			sent := false
			if mailer != nil && strings.TrimSpace(recipient) != "" {
				summary, _ := value["executive_summary"].(string)
				sent = mailer.Send(ctx, recipient, emailSubject, renderEmail(summary, prioritized))
				logger.Info("summary notification attempted",
					zap.String("recipient", recipient),
					zap.Bool("sent", sent),
				)
			}
			value["notification_sent"] = sent

			return pipeline.Outcome{
				Value:         value,
				Confidence:    result.Confidence,
				Defaulted:     result.Defaulted,
				CoercedFields: len(result.Value),
			}, nil
		},
	}
}

func scholarshipItems(run *pipeline.RunContext) []map[string]any {
	rawItems := run.List(scholarships.StageName, "scholarships")
	items := make([]map[string]any, 0, len(rawItems))
	for _, rawItem := range rawItems {
		if item, ok := rawItem.(map[string]any); ok {
			items = append(items, item)
		}
	}
	return items
}

func buildUserPrompt(run *pipeline.RunContext, prioritized []map[string]any) string {
	var builder strings.Builder
	builder.WriteString("Student profile: ")
	builder.WriteString(run.String(intake.StageName, "profile_summary"))
	fmt.Fprintf(&builder, "\nProfile score: %.0f (%s)",
		run.Number(profile.StageName, "profile_score"),
		run.String(profile.StageName, "rating"),
	)
	fmt.Fprintf(&builder, "\nEstimated annual cost: %.0f %s, best net cost %.0f",
		run.Number(finance.StageName, "total_annual_cost_converted"),
		run.String(finance.StageName, "target_currency"),
		run.Number(finance.StageName, "best_net_cost"),
	)

	builder.WriteString("\n\nPrioritized scholarships:\n")
	for itemIndex, item := range prioritized {
		name, _ := item["name"].(string)
		value, _ := item["value"].(string)
		deadline, _ := item["deadline"].(string)
		priority, _ := item["priority"].(string)
		fmt.Fprintf(&builder, "%d. %s (value: %s, deadline: %s, priority: %s)\n",
			itemIndex+1, name, value, deadline, priority)
	}
	return builder.String()
}

func renderEmail(summary string, prioritized []map[string]any) string {
	var builder strings.Builder
	builder.WriteString("<h2>Scholarship advisory summary</h2><p>")
	builder.WriteString(summary)
	builder.WriteString("</p><h3>Apply first</h3><ol>")
	for _, item := range prioritized {
		name, _ := item["name"].(string)
		deadline, _ := item["deadline"].(string)
		builder.WriteString("<li>")
		builder.WriteString(name)
		if deadline != "" {
			builder.WriteString(" (deadline: ")
			builder.WriteString(deadline)
			builder.WriteString(")")
		}
		builder.WriteString("</li>")
	}
	builder.WriteString("</ol>")
	return builder.String()
}
