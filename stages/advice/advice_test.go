package advice

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/KhangChau12/scholarship-advisor/internal/coerce"
	"github.com/KhangChau12/scholarship-advisor/internal/llm"
	"github.com/KhangChau12/scholarship-advisor/internal/pipeline"
)

type fakeCompleter struct {
	lastRequest llm.Request
	result      coerce.Result
	err         error
}

func (f *fakeCompleter) Complete(_ context.Context, request llm.Request) (coerce.Result, error) {
	f.lastRequest = request
	return f.result, f.err
}

type fakeMailer struct {
	recipient string
	subject   string
	body      string
	accept    bool
	calls     int
}

func (f *fakeMailer) Send(_ context.Context, recipient string, subject string, htmlBody string) bool {
	f.calls++
	f.recipient = recipient
	f.subject = subject
	f.body = htmlBody
	return f.accept
}

var fixedNow = time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

func summaryResult() coerce.Result {
	return coerce.Result{
		Value: map[string]any{
			"executive_summary":   "Apply to Chevening first.",
			"action_plan":         []any{"draft essays"},
			"timeline":            []any{"March: IELTS retake"},
			"success_probability": float64(72),
		},
		Confidence: coerce.Exact,
	}
}

func seededRun(profileScore float64, items []any) *pipeline.RunContext {
	run := pipeline.NewRunContext()
	run.Seed("intake", map[string]any{"profile_summary": "STEM student"})
	run.Seed("scholarships", map[string]any{"scholarships": items})
	run.Seed("profile", map[string]any{"profile_score": profileScore, "rating": "Strong"})
	run.Seed("finance", map[string]any{
		"total_annual_cost_converted": float64(40000),
		"target_currency":             "USD",
		"best_net_cost":               float64(5000),
	})
	return run
}

func TestPrioritizeOrdersAndBands(t *testing.T) {
	items := []map[string]any{
		{"name": "Low match", "rank_score": float64(40), "value": "stipend"},
		{"name": "Full flagship", "rank_score": float64(95), "value": "full", "deadline": "2025-04-15"},
		{"name": "Partial", "rank_score": float64(80), "value": "50%"},
	}
	prioritized := Prioritize(items, 75, fixedNow, Weights{})

	if prioritized[0]["name"] != "Full flagship" {
		t.Fatalf("expected flagship first, got %v", prioritized[0]["name"])
	}
	// 95*0.4 + full 30 + strong profile 15 + deadline within window 10 = 93.
	if score := prioritized[0]["priority_score"].(float64); score != 93 {
		t.Fatalf("flagship priority score = %v, expected 93", score)
	}
	if prioritized[0]["priority"] != priorityHigh {
		t.Fatalf("flagship priority = %v, expected high", prioritized[0]["priority"])
	}
	// 80*0.4 + partial 20 + strong profile 15 = 67.
	if prioritized[1]["priority"] != priorityMedium {
		t.Fatalf("partial priority = %v, expected medium", prioritized[1]["priority"])
	}
	// 40*0.4 + strong profile 15 = 31.
	if prioritized[2]["priority"] != priorityLow {
		t.Fatalf("low-match priority = %v, expected low", prioritized[2]["priority"])
	}
}

func TestPrioritizeDeadlineWindow(t *testing.T) {
	testCases := []struct {
		name     string
		deadline string
		expected float64
	}{
		{name: "inside window", deadline: "2025-04-15", expected: 50},
		{name: "past deadline", deadline: "2025-02-01", expected: 40},
		{name: "far future", deadline: "January 2026", expected: 40},
		{name: "unparseable", deadline: "rolling admissions", expected: 40},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			items := []map[string]any{{"name": "X", "rank_score": float64(100), "deadline": testCase.deadline}}
			prioritized := Prioritize(items, 0, fixedNow, Weights{})
			if score := prioritized[0]["priority_score"].(float64); score != testCase.expected {
				t.Fatalf("score for deadline %q = %v, expected %v", testCase.deadline, score, testCase.expected)
			}
		})
	}
}

func TestPrioritizeCapsListLength(t *testing.T) {
	items := make([]map[string]any, 12)
	for itemIndex := range items {
		items[itemIndex] = map[string]any{"name": "item", "rank_score": float64(itemIndex)}
	}
	if got := len(Prioritize(items, 0, fixedNow, Weights{})); got != maxPrioritized {
		t.Fatalf("prioritized length = %d, expected %d", got, maxPrioritized)
	}
}

func TestRunSendsEmailWhenRecipientConfigured(t *testing.T) {
	completer := &fakeCompleter{result: summaryResult()}
	mailer := &fakeMailer{accept: true}
	items := []any{map[string]any{"name": "Chevening", "value": "full", "deadline": "2025-04-15"}}

	stage := New(completer, mailer, "student@example.com", Settings{}, nil, func() time.Time { return fixedNow })
	outcome, err := stage.Run(context.Background(), seededRun(75, items))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Value["notification_sent"] != true {
		t.Fatalf("notification_sent = %v, expected true", outcome.Value["notification_sent"])
	}
	if mailer.calls != 1 || mailer.recipient != "student@example.com" {
		t.Fatalf("mailer called %d times for %q", mailer.calls, mailer.recipient)
	}
	if !strings.Contains(mailer.body, "Chevening") {
		t.Fatalf("email body missing scholarship name: %q", mailer.body)
	}
	if !strings.Contains(mailer.body, "Apply to Chevening first.") {
		t.Fatalf("email body missing summary: %q", mailer.body)
	}
}

func TestRunDeliveryFailureDoesNotFailStage(t *testing.T) {
	completer := &fakeCompleter{result: summaryResult()}
	mailer := &fakeMailer{accept: false}

	stage := New(completer, mailer, "student@example.com", Settings{}, nil, func() time.Time { return fixedNow })
	outcome, err := stage.Run(context.Background(), seededRun(75, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Value["notification_sent"] != false {
		t.Fatalf("notification_sent = %v, expected false", outcome.Value["notification_sent"])
	}
	if outcome.Confidence != coerce.Exact {
		t.Fatalf("delivery failure changed confidence to %q", outcome.Confidence)
	}
}

func TestRunWithoutRecipientSkipsMailer(t *testing.T) {
	completer := &fakeCompleter{result: summaryResult()}
	mailer := &fakeMailer{accept: true}

	stage := New(completer, mailer, "   ", Settings{}, nil, func() time.Time { return fixedNow })
	outcome, err := stage.Run(context.Background(), seededRun(75, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mailer.calls != 0 {
		t.Fatal("mailer must not be called without a recipient")
	}
	if outcome.Value["notification_sent"] != false {
		t.Fatal("notification_sent must be false when no mail was attempted")
	}
}

func TestRunMostlyDefaultedSummaryKeepsCoercedFieldCount(t *testing.T) {
	// The stage widens the four coerced summary fields with two computed
	// ones; the outcome must still report the coerced count so a
	// three-of-four-defaulted summary degrades downstream.
	completer := &fakeCompleter{result: coerce.Result{
		Value: map[string]any{
			"executive_summary":   "Apply to Chevening first.",
			"action_plan":         []any{},
			"timeline":            []any{},
			"success_probability": float64(0),
		},
		Confidence: coerce.Repaired,
		Defaulted:  []string{"action_plan", "timeline", "success_probability"},
	}}

	stage := New(completer, nil, "", Settings{}, nil, func() time.Time { return fixedNow })
	outcome, err := stage.Run(context.Background(), seededRun(75, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.CoercedFields != 4 {
		t.Fatalf("coerced field count = %d, expected 4", outcome.CoercedFields)
	}
	if len(outcome.Defaulted) != 3 {
		t.Fatalf("defaulted fields = %v, expected the three summary fields", outcome.Defaulted)
	}
	if len(outcome.Value) != 6 {
		t.Fatalf("widened value has %d fields, expected 6", len(outcome.Value))
	}
}

func TestRunPromptCarriesUpstreamAnalysis(t *testing.T) {
	completer := &fakeCompleter{result: summaryResult()}
	items := []any{map[string]any{"name": "Vanier", "value": "full"}}

	stage := New(completer, nil, "", Settings{}, nil, func() time.Time { return fixedNow })
	if _, err := stage.Run(context.Background(), seededRun(75, items)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	userContent := completer.lastRequest.Messages[0].Content
	for _, fragment := range []string{"STEM student", "75 (Strong)", "40000 USD", "Vanier"} {
		if !strings.Contains(userContent, fragment) {
			t.Fatalf("prompt missing %q:\n%s", fragment, userContent)
		}
	}
}
