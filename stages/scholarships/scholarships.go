// Package scholarships finds and ranks scholarship programs matching the
// intake profile. Search hits are analyzed in fixed-size batches with bounded
// parallel completion calls, then merged in batch order so output stays
// deterministic for identical inputs.
package scholarships

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/KhangChau12/scholarship-advisor/internal/coerce"
	"github.com/KhangChau12/scholarship-advisor/internal/llm"
	"github.com/KhangChau12/scholarship-advisor/internal/pipeline"
	"github.com/KhangChau12/scholarship-advisor/internal/schema"
	"github.com/KhangChau12/scholarship-advisor/internal/search"
	"github.com/KhangChau12/scholarship-advisor/stages/intake"
)

// StageName is how downstream stages refer to scholarship output.
const StageName = "scholarships"

const (
	defaultBatchSize   = 3
	defaultSearchLimit = 5
	defaultMaxParallel = 3
	defaultMaxRanked   = 10

	missingIntakeSignal  = "field_of_study or target_country"
	allBatchesFailFormat = "all %d analysis batches failed, last error: %w"
)

const batchSystemPrompt = "You extract scholarship programs from web search results for a Vietnamese student. " +
	"List every distinct scholarship the results mention. Use the exact program name, state the award value " +
	"the way the source does, and score how well each program fits the student's field from 0 to 100. " +
	"Skip results that are not about a specific scholarship."

type completer interface {
	Complete(ctx context.Context, request llm.Request) (coerce.Result, error)
}

type searcher interface {
	Search(ctx context.Context, query string, limit int) ([]search.Result, error)
}

// Settings is the stage's configurable policy, mapped from its config body.
type Settings struct {
	Model       string `yaml:"model"`
	BatchSize   int    `yaml:"batch_size"`
	SearchLimit int    `yaml:"search_limit"`
	MaxParallel int    `yaml:"max_parallel"`
	MaxRanked   int    `yaml:"max_ranked"`
	Boosts      Boosts `yaml:"boosts"`
}

func (s Settings) withDefaults() Settings {
	if s.BatchSize <= 0 {
		s.BatchSize = defaultBatchSize
	}
	if s.SearchLimit <= 0 {
		s.SearchLimit = defaultSearchLimit
	}
	if s.MaxParallel <= 0 {
		s.MaxParallel = defaultMaxParallel
	}
	if s.MaxRanked <= 0 {
		s.MaxRanked = defaultMaxRanked
	}
	s.Boosts = s.Boosts.withDefaults()
	return s
}

func scholarshipListField() schema.Field {
	return schema.Field{
		Name: "scholarships",
		Kind: schema.KindList,
		Elem: &schema.Field{
			Kind: schema.KindObject,
			Fields: []schema.Field{
				{Name: "name", Kind: schema.KindString},
				{Name: "organization", Kind: schema.KindString},
				{Name: "value", Kind: schema.KindString, Hint: "e.g. full, 50%, $20000 per year"},
				{Name: "deadline", Kind: schema.KindString},
				{Name: "requirements", Kind: schema.KindString},
				{Name: "link", Kind: schema.KindString},
				{Name: "match_score", Kind: schema.KindNumber, Hint: "0-100 field fit"},
			},
		},
	}
}

func batchDescriptor() schema.Descriptor {
	return schema.MustNew(scholarshipListField())
}

// Descriptor declares the scholarships output shape.
func Descriptor() schema.Descriptor {
	return schema.MustNew(
		scholarshipListField(),
		schema.Field{Name: "total_found", Kind: schema.KindNumber},
		schema.Field{Name: "queries_used", Kind: schema.KindList, Elem: &schema.Field{Kind: schema.KindString}},
	)
}

// New builds the scholarship discovery stage.
func New(llmCompleter completer, webSearcher searcher, settings Settings, logger *zap.Logger) pipeline.Stage {
	settings = settings.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	descriptor := Descriptor()
	return pipeline.Stage{
		Name:     StageName,
		Requires: []string{intake.StageName},
		Schema:   descriptor,
		Run: func(ctx context.Context, run *pipeline.RunContext) (pipeline.Outcome, error) {
			fieldOfStudy := run.String(intake.StageName, "field_of_study")
			targetCountry := run.String(intake.StageName, "target_country")
			degreeLevel := run.String(intake.StageName, "degree_level")
			if strings.TrimSpace(fieldOfStudy) == "" && strings.TrimSpace(targetCountry) == "" {
				return pipeline.Outcome{}, pipeline.NewFatal(StageName, missingIntakeSignal)
			}

			queries := BuildQueries(fieldOfStudy, targetCountry, degreeLevel)
			results := collectResults(ctx, webSearcher, queries, settings.SearchLimit, logger)
			logger.Info("scholarship search complete",
				zap.Int("queries", len(queries)),
				zap.Int("results", len(results)),
			)

			queriesValue := make([]any, 0, len(queries))
			for _, query := range queries {
				queriesValue = append(queriesValue, query)
			}
			if len(results) == 0 {
				return pipeline.Outcome{
					Value: map[string]any{
						"scholarships": []any{},
						"total_found":  float64(0),
						"queries_used": queriesValue,
					},
					Confidence: coerce.Exact,
				}, nil
			}

			analysis, err := analyzeBatches(ctx, llmCompleter, settings, fieldOfStudy, results, logger)
			if err != nil {
				return pipeline.Outcome{}, err
			}

			ranked := Rank(analysis.items, fieldOfStudy, settings.Boosts)
			totalFound := len(ranked)
			if len(ranked) > settings.MaxRanked {
				ranked = ranked[:settings.MaxRanked]
			}
			rankedValue := make([]any, 0, len(ranked))
			for _, item := range ranked {
				rankedValue = append(rankedValue, item)
			}
			outcome := pipeline.Outcome{
				Value: map[string]any{
					"scholarships": rankedValue,
					"total_found":  float64(totalFound),
					"queries_used": queriesValue,
				},
				Confidence:    analysis.confidence,
				CoercedFields: batchDescriptor().Len(),
			}
			if !analysis.recovered {
				outcome.Confidence = coerce.Default
				outcome.Defaulted = []string{"scholarships"}
			}
			return outcome, nil
		},
	}
}

func collectResults(ctx context.Context, webSearcher searcher, queries []string, limit int, logger *zap.Logger) []search.Result {
	var combined []search.Result
	for _, query := range queries {
		results, err := webSearcher.Search(ctx, query, limit)
		if err != nil {
			logger.Warn("search query failed", zap.String("query", query), zap.Error(err))
			continue
		}
		combined = append(combined, results...)
	}
	return search.Deduplicate(combined)
}

type batchOutcome struct {
	items      []map[string]any
	confidence coerce.Confidence
	err        error
}

// batchAnalysis aggregates the fan-out: the merged items, the blended
// confidence, and whether any batch's coercion recovered actual data (an
// all-default batch extracted nothing, even though it did not error).
type batchAnalysis struct {
	items      []map[string]any
	confidence coerce.Confidence
	recovered  bool
}

// analyzeBatches fans the deduplicated results out to the completion service
// in batches. Batches run concurrently up to MaxParallel; the merged item
// list preserves batch index order regardless of completion order.
func analyzeBatches(ctx context.Context, llmCompleter completer, settings Settings, fieldOfStudy string, results []search.Result, logger *zap.Logger) (batchAnalysis, error) {
	batches := splitBatches(results, settings.BatchSize)
	outcomes := make([]batchOutcome, len(batches))

	semaphore := make(chan struct{}, settings.MaxParallel)
	var waitGroup sync.WaitGroup
	for batchIndex, batch := range batches {
		waitGroup.Add(1)
		go func(batchIndex int, batch []search.Result) {
			defer waitGroup.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()
			outcomes[batchIndex] = analyzeOneBatch(ctx, llmCompleter, settings.Model, fieldOfStudy, batch)
		}(batchIndex, batch)
	}
	waitGroup.Wait()

	analysis := batchAnalysis{confidence: coerce.Exact}
	failures := 0
	var lastErr error
	for batchIndex, outcome := range outcomes {
		if outcome.err != nil {
			failures++
			lastErr = outcome.err
			logger.Warn("scholarship batch failed", zap.Int("batch", batchIndex), zap.Error(outcome.err))
			continue
		}
		analysis.items = append(analysis.items, outcome.items...)
		if outcome.confidence != coerce.Default {
			analysis.recovered = true
		}
		if outcome.confidence != coerce.Exact {
			analysis.confidence = coerce.Repaired
		}
	}
	if failures == len(batches) {
		return batchAnalysis{}, fmt.Errorf(allBatchesFailFormat, len(batches), lastErr)
	}
	if failures > 0 {
		analysis.confidence = coerce.Repaired
	}
	return analysis, nil
}

func analyzeOneBatch(ctx context.Context, llmCompleter completer, model string, fieldOfStudy string, batch []search.Result) batchOutcome {
	var builder strings.Builder
	builder.WriteString("Student field of study: ")
	builder.WriteString(fieldOfStudy)
	builder.WriteString("\n\nSearch results:\n")
	for resultIndex, result := range batch {
		fmt.Fprintf(&builder, "%d. %s\n   %s\n   %s\n", resultIndex+1, result.Title, result.Link, result.Snippet)
	}

	request := llm.UserRequest(batchSystemPrompt, builder.String(), batchDescriptor())
	request.Model = model
	result, err := llmCompleter.Complete(ctx, request)
	if err != nil {
		return batchOutcome{err: err}
	}

	rawItems, _ := result.Value["scholarships"].([]any)
	items := make([]map[string]any, 0, len(rawItems))
	for _, rawItem := range rawItems {
		if item, ok := rawItem.(map[string]any); ok {
			items = append(items, item)
		}
	}
	return batchOutcome{items: items, confidence: result.Confidence}
}

func splitBatches(results []search.Result, batchSize int) [][]search.Result {
	var batches [][]search.Result
	for start := 0; start < len(results); start += batchSize {
		end := start + batchSize
		if end > len(results) {
			end = len(results)
		}
		batches = append(batches, results[start:end])
	}
	return batches
}
