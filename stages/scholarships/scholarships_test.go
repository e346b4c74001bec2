package scholarships

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/KhangChau12/scholarship-advisor/internal/coerce"
	"github.com/KhangChau12/scholarship-advisor/internal/llm"
	"github.com/KhangChau12/scholarship-advisor/internal/pipeline"
	"github.com/KhangChau12/scholarship-advisor/internal/search"
)

type fakeCompleter struct {
	mutex    sync.Mutex
	requests []llm.Request
	respond  func(request llm.Request) (coerce.Result, error)
}

func (f *fakeCompleter) Complete(_ context.Context, request llm.Request) (coerce.Result, error) {
	f.mutex.Lock()
	f.requests = append(f.requests, request)
	f.mutex.Unlock()
	if f.respond != nil {
		return f.respond(request)
	}
	return coerce.Result{Value: map[string]any{"scholarships": []any{}}, Confidence: coerce.Exact}, nil
}

type fakeSearcher struct {
	results map[string][]search.Result
	queries []string
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) ([]search.Result, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

func seededRun(fieldOfStudy string, targetCountry string) *pipeline.RunContext {
	run := pipeline.NewRunContext()
	run.Seed("intake", map[string]any{
		"field_of_study": fieldOfStudy,
		"target_country": targetCountry,
		"degree_level":   "master",
	})
	return run
}

func TestRunFatalWithoutFieldOrCountry(t *testing.T) {
	stage := New(&fakeCompleter{}, &fakeSearcher{}, Settings{}, nil)
	_, err := stage.Run(context.Background(), seededRun("", "  "))
	var fatal *pipeline.FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if fatal.Stage != StageName {
		t.Fatalf("fatal error names stage %q", fatal.Stage)
	}
}

func TestBuildQueriesIncludesFlagshipPrograms(t *testing.T) {
	testCases := []struct {
		country string
		program string
	}{
		{country: "USA", program: "Fulbright"},
		{country: "United Kingdom", program: "Chevening"},
		{country: "Canada", program: "Vanier"},
		{country: "Australia", program: "Australia Awards"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.country, func(t *testing.T) {
			queries := BuildQueries("computer science", testCase.country, "master")
			joined := strings.Join(queries, "\n")
			if !strings.Contains(joined, testCase.program) {
				t.Fatalf("queries for %s omit %s:\n%s", testCase.country, testCase.program, joined)
			}
		})
	}
}

func TestBuildQueriesSkipsBlankPartsAndDuplicates(t *testing.T) {
	queries := BuildQueries("physics", "", "")
	if len(queries) == 0 {
		t.Fatal("expected field-only queries")
	}
	seen := map[string]struct{}{}
	for _, query := range queries {
		if strings.Contains(query, "  ") {
			t.Fatalf("query has collapsed blank part: %q", query)
		}
		if _, duplicate := seen[query]; duplicate {
			t.Fatalf("duplicate query %q", query)
		}
		seen[query] = struct{}{}
	}
}

func TestRunEmptySearchResultsIsValid(t *testing.T) {
	completer := &fakeCompleter{}
	stage := New(completer, &fakeSearcher{}, Settings{}, nil)

	outcome, err := stage.Run(context.Background(), seededRun("physics", "Canada"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list, _ := outcome.Value["scholarships"].([]any); len(list) != 0 {
		t.Fatalf("expected empty scholarship list, got %v", list)
	}
	if outcome.Confidence != coerce.Exact {
		t.Fatalf("empty results should stay exact, got %q", outcome.Confidence)
	}
	if len(completer.requests) != 0 {
		t.Fatal("no completion calls expected without search results")
	}
}

func TestRunMergesBatchesInIndexOrder(t *testing.T) {
	results := make([]search.Result, 6)
	for resultIndex := range results {
		results[resultIndex] = search.Result{
			Title: fmt.Sprintf("Program %d", resultIndex),
			Link:  fmt.Sprintf("https://example.com/%d", resultIndex),
		}
	}
	searcher := &fakeSearcher{results: map[string][]search.Result{}}
	searcher.results["physics scholarships for Vietnamese students Canada"] = results

	completer := &fakeCompleter{respond: func(request llm.Request) (coerce.Result, error) {
		userContent := request.Messages[0].Content
		name := "batch-unknown"
		for resultIndex := range results {
			if strings.Contains(userContent, fmt.Sprintf("https://example.com/%d", resultIndex)) {
				name = fmt.Sprintf("from-result-%d", resultIndex)
				break
			}
		}
		return coerce.Result{
			Value: map[string]any{"scholarships": []any{
				map[string]any{"name": name, "match_score": float64(50)},
			}},
			Confidence: coerce.Exact,
		}, nil
	}}

	stage := New(completer, searcher, Settings{BatchSize: 2, MaxParallel: 3}, nil)
	outcome, err := stage.Run(context.Background(), seededRun("physics", "Canada"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	list, _ := outcome.Value["scholarships"].([]any)
	if len(list) != 3 {
		t.Fatalf("expected one merged item per batch, got %d", len(list))
	}
	for itemIndex, expected := range []string{"from-result-0", "from-result-2", "from-result-4"} {
		item := list[itemIndex].(map[string]any)
		if item["name"] != expected {
			t.Fatalf("item %d = %v, expected name %s", itemIndex, item["name"], expected)
		}
	}
}

func TestRunAllBatchesDefaultedDegradesOutcome(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]search.Result{
		"physics scholarships for Vietnamese students Canada": {
			{Title: "Program A", Link: "https://example.com/a"},
			{Title: "Program B", Link: "https://example.com/b"},
		},
	}}
	completer := &fakeCompleter{respond: func(llm.Request) (coerce.Result, error) {
		return coerce.Result{
			Value:      map[string]any{"scholarships": []any{}},
			Confidence: coerce.Default,
			Defaulted:  []string{"scholarships"},
		}, nil
	}}

	stage := New(completer, searcher, Settings{}, nil)
	outcome, err := stage.Run(context.Background(), seededRun("physics", "Canada"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Confidence != coerce.Default {
		t.Fatalf("all-default batches should carry default confidence, got %q", outcome.Confidence)
	}
	if len(outcome.Defaulted) != 1 || outcome.Defaulted[0] != "scholarships" {
		t.Fatalf("defaulted fields = %v, expected the scholarship list", outcome.Defaulted)
	}
	if list, _ := outcome.Value["scholarships"].([]any); len(list) != 0 {
		t.Fatalf("expected empty scholarship list, got %v", list)
	}
}

func TestRunAllBatchesFailingIsAnError(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]search.Result{
		"physics scholarships for Vietnamese students Canada": {
			{Title: "Program", Link: "https://example.com/p"},
		},
	}}
	completer := &fakeCompleter{respond: func(llm.Request) (coerce.Result, error) {
		return coerce.Result{}, errors.New("service down")
	}}

	stage := New(completer, searcher, Settings{}, nil)
	if _, err := stage.Run(context.Background(), seededRun("physics", "Canada")); err == nil {
		t.Fatal("expected an error when every batch fails")
	}
}

func TestRankBoostsAndOrdering(t *testing.T) {
	items := []map[string]any{
		{"name": "Generic grant", "value": "some support", "match_score": float64(50)},
		{"name": "Chevening Scholarship", "value": "full", "requirements": "open to Vietnam applicants", "match_score": float64(50)},
		{"name": "Partial aid", "value": "50%", "match_score": float64(50)},
	}
	ranked := Rank(items, "", Boosts{})

	if ranked[0]["name"] != "Chevening Scholarship" {
		t.Fatalf("expected prestigious full Vietnam-friendly program first, got %v", ranked[0]["name"])
	}
	// 50 + prestigious 20 + full 15 + vietnam 15 = 100
	if score := ranked[0]["rank_score"].(float64); score != 100 {
		t.Fatalf("top score = %v, expected 100", score)
	}
	if ranked[1]["name"] != "Partial aid" {
		t.Fatalf("expected partial award second, got %v", ranked[1]["name"])
	}
	if score := ranked[1]["rank_score"].(float64); score != 60 {
		t.Fatalf("partial score = %v, expected 60", score)
	}
}

func TestRankGPARequirementAdjustments(t *testing.T) {
	items := []map[string]any{
		{"name": "Open program", "requirements": "minimum GPA 2.8", "match_score": float64(50)},
		{"name": "Selective program", "requirements": "minimum GPA 3.8", "match_score": float64(50)},
	}
	ranked := Rank(items, "", Boosts{})

	if score := ranked[0]["rank_score"].(float64); score != 55 {
		t.Fatalf("accessible program score = %v, expected 55", score)
	}
	if score := ranked[1]["rank_score"].(float64); score != 45 {
		t.Fatalf("demanding program score = %v, expected 45", score)
	}
}

func TestRankFieldMatchBoost(t *testing.T) {
	items := []map[string]any{
		{"name": "Computer Science Excellence Award", "match_score": float64(40)},
		{"name": "General Merit Award", "match_score": float64(40)},
	}
	ranked := Rank(items, "Computer Science", Boosts{})
	if ranked[0]["name"] != "Computer Science Excellence Award" {
		t.Fatalf("field-matched program should rank first, got %v", ranked[0]["name"])
	}
	if score := ranked[0]["rank_score"].(float64); score != 50 {
		t.Fatalf("field-matched score = %v, expected 50", score)
	}
}
