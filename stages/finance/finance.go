// Package finance estimates study costs and how far the found scholarships
// stretch against them. Cost figures come from the completion service over
// fresh search snippets; conversion and funding scenarios are computed
// locally.
package finance

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/KhangChau12/scholarship-advisor/internal/coerce"
	"github.com/KhangChau12/scholarship-advisor/internal/llm"
	"github.com/KhangChau12/scholarship-advisor/internal/pipeline"
	"github.com/KhangChau12/scholarship-advisor/internal/schema"
	"github.com/KhangChau12/scholarship-advisor/internal/search"
	"github.com/KhangChau12/scholarship-advisor/stages/intake"
	"github.com/KhangChau12/scholarship-advisor/stages/scholarships"
)

// StageName is how downstream stages refer to finance output.
const StageName = "finance"

const (
	defaultSearchLimit    = 3
	defaultTargetCurrency = "USD"

	// Stacking discounts: combined scholarships rarely pay out in full
	// together, so multi-award scenarios are haircut.
	topTwoStackFactor   = 0.7
	topThreeStackFactor = 0.5
)

const systemPrompt = "You estimate annual study costs for an international student from Vietnam. " +
	"Use the search snippets when they carry concrete figures; otherwise give your best typical range " +
	"for the country and degree level. All figures are per year in the local currency you name."

type completer interface {
	Complete(ctx context.Context, request llm.Request) (coerce.Result, error)
}

type searcher interface {
	Search(ctx context.Context, query string, limit int) ([]search.Result, error)
}

type rater interface {
	Rate(ctx context.Context, from string, to string) (float64, bool)
}

// Settings is the stage's configurable policy, mapped from its config body.
type Settings struct {
	Model          string `yaml:"model"`
	SearchLimit    int    `yaml:"search_limit"`
	TargetCurrency string `yaml:"target_currency"`
}

func (s Settings) withDefaults() Settings {
	if s.SearchLimit <= 0 {
		s.SearchLimit = defaultSearchLimit
	}
	if strings.TrimSpace(s.TargetCurrency) == "" {
		s.TargetCurrency = defaultTargetCurrency
	}
	return s
}

func costRangeField(name string, hint string) schema.Field {
	return schema.Field{
		Name: name,
		Kind: schema.KindObject,
		Hint: hint,
		Fields: []schema.Field{
			{Name: "minimum", Kind: schema.KindNumber},
			{Name: "maximum", Kind: schema.KindNumber},
		},
	}
}

func costDescriptor() schema.Descriptor {
	return schema.MustNew(
		costRangeField("tuition_fees", "annual tuition range"),
		costRangeField("living_costs", "annual living cost range"),
		costRangeField("other_costs", "insurance, visa, materials"),
		schema.Field{Name: "currency", Kind: schema.KindString, Hint: "ISO code of the figures"},
		schema.Field{Name: "notes", Kind: schema.KindString},
	)
}

// Descriptor declares the finance output shape: the coerced cost breakdown
// plus the locally computed totals and funding scenarios.
func Descriptor() schema.Descriptor {
	return schema.MustNew(
		costRangeField("tuition_fees", "annual tuition range"),
		costRangeField("living_costs", "annual living cost range"),
		costRangeField("other_costs", "insurance, visa, materials"),
		schema.Field{Name: "currency", Kind: schema.KindString},
		schema.Field{Name: "notes", Kind: schema.KindString},
		schema.Field{Name: "total_annual_cost", Kind: schema.KindNumber},
		schema.Field{Name: "total_annual_cost_converted", Kind: schema.KindNumber},
		schema.Field{Name: "target_currency", Kind: schema.KindString},
		schema.Field{Name: "funding_scenarios", Kind: schema.KindList, Elem: &schema.Field{Kind: schema.KindObject}},
		schema.Field{Name: "best_net_cost", Kind: schema.KindNumber},
	)
}

// New builds the cost analysis stage.
func New(llmCompleter completer, webSearcher searcher, currencyRater rater, settings Settings, logger *zap.Logger) pipeline.Stage {
	settings = settings.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return pipeline.Stage{
		Name:     StageName,
		Requires: []string{intake.StageName, scholarships.StageName},
		Schema:   Descriptor(),
		Run: func(ctx context.Context, run *pipeline.RunContext) (pipeline.Outcome, error) {
			targetCountry := run.String(intake.StageName, "target_country")
			fieldOfStudy := run.String(intake.StageName, "field_of_study")
			degreeLevel := run.String(intake.StageName, "degree_level")

			snippets := collectSnippets(ctx, webSearcher, costQueries(fieldOfStudy, targetCountry, degreeLevel), settings.SearchLimit, logger)

			request := llm.UserRequest(systemPrompt, buildUserPrompt(targetCountry, degreeLevel, snippets), costDescriptor())
			request.Model = settings.Model
			result, err := llmCompleter.Complete(ctx, request)
			if err != nil {
				return pipeline.Outcome{}, err
			}

			totalLocal := rangeMidpoint(result.Value, "tuition_fees") +
				rangeMidpoint(result.Value, "living_costs") +
				rangeMidpoint(result.Value, "other_costs")
			localCurrency, _ := result.Value["currency"].(string)

			rate := conversionRate(ctx, currencyRater, localCurrency, settings.TargetCurrency, logger)
			totalConverted := totalLocal * rate

			scenarios, bestNet := fundingScenarios(run.Value(scholarships.StageName), totalConverted)

			value := make(map[string]any, len(result.Value)+5)
			for key, fieldValue := range result.Value {
				value[key] = fieldValue
			}
			value["total_annual_cost"] = totalLocal
			value["total_annual_cost_converted"] = totalConverted
			value["target_currency"] = settings.TargetCurrency
			value["funding_scenarios"] = scenarios
			value["best_net_cost"] = bestNet

			return pipeline.Outcome{
				Value:         value,
				Confidence:    result.Confidence,
				Defaulted:     result.Defaulted,
				CoercedFields: len(result.Value),
			}, nil
		},
	}
}

func costQueries(fieldOfStudy string, targetCountry string, degreeLevel string) []string {
	country := strings.TrimSpace(targetCountry)
	if country == "" {
		country = "abroad"
	}
	queries := []string{
		strings.TrimSpace("tuition fees " + degreeLevel + " " + fieldOfStudy + " international students " + country),
		"cost of living for students in " + country,
		"annual study cost " + country + " international student",
	}
	return queries
}

func collectSnippets(ctx context.Context, webSearcher searcher, queries []string, limit int, logger *zap.Logger) []search.Result {
	var combined []search.Result
	for _, query := range queries {
		results, err := webSearcher.Search(ctx, query, limit)
		if err != nil {
			logger.Warn("cost search failed", zap.String("query", query), zap.Error(err))
			continue
		}
		combined = append(combined, results...)
	}
	return search.Deduplicate(combined)
}

func buildUserPrompt(targetCountry string, degreeLevel string, snippets []search.Result) string {
	var builder strings.Builder
	builder.WriteString("Country: ")
	builder.WriteString(targetCountry)
	builder.WriteString("\nDegree level: ")
	builder.WriteString(degreeLevel)
	if len(snippets) > 0 {
		builder.WriteString("\n\nSearch snippets:\n")
		for snippetIndex, snippet := range snippets {
			fmt.Fprintf(&builder, "%d. %s: %s\n", snippetIndex+1, snippet.Title, snippet.Snippet)
		}
	}
	return builder.String()
}

// conversionRate resolves local-to-target. An unknown pair falls back to 1.0
// so downstream numbers stay usable, just unconverted.
func conversionRate(ctx context.Context, currencyRater rater, localCurrency string, targetCurrency string, logger *zap.Logger) float64 {
	local := strings.ToUpper(strings.TrimSpace(localCurrency))
	target := strings.ToUpper(strings.TrimSpace(targetCurrency))
	if local == "" || local == target || currencyRater == nil {
		return 1.0
	}
	rate, found := currencyRater.Rate(ctx, local, target)
	if !found {
		logger.Warn("currency rate unavailable, assuming parity",
			zap.String("from", local),
			zap.String("to", target),
		)
		return 1.0
	}
	return rate
}

func rangeMidpoint(value map[string]any, field string) float64 {
	nested, _ := value[field].(map[string]any)
	minimum, _ := nested["minimum"].(float64)
	maximum, _ := nested["maximum"].(float64)
	if maximum < minimum {
		maximum = minimum
	}
	return (minimum + maximum) / 2
}

// fundingScenarios builds the net-cost outlooks against the top ranked
// scholarships. Combined scenarios discount stacked coverage because awards
// rarely combine at face value.
func fundingScenarios(scholarshipValue map[string]any, annualCost float64) ([]any, float64) {
	coverages := awardCoverages(scholarshipValue, annualCost)
	bestNet := annualCost

	var scenarios []any
	appendScenario := func(label string, covered float64) {
		if covered > annualCost {
			covered = annualCost
		}
		net := annualCost - covered
		if net < bestNet {
			bestNet = net
		}
		scenarios = append(scenarios, map[string]any{
			"label":    label,
			"covered":  covered,
			"net_cost": net,
		})
	}

	appendScenario("self-funded", 0)
	if len(coverages) >= 1 {
		appendScenario("best single scholarship", coverages[0])
	}
	if len(coverages) >= 2 {
		appendScenario("top two combined", (coverages[0]+coverages[1])*topTwoStackFactor)
	}
	if len(coverages) >= 3 {
		appendScenario("top three combined", (coverages[0]+coverages[1]+coverages[2])*topThreeStackFactor)
	}
	return scenarios, bestNet
}

func awardCoverages(scholarshipValue map[string]any, annualCost float64) []float64 {
	items, _ := scholarshipValue["scholarships"].([]any)
	var coverages []float64
	for _, rawItem := range items {
		item, ok := rawItem.(map[string]any)
		if !ok {
			continue
		}
		valueText, _ := item["value"].(string)
		covered, kind := ParseAwardValue(valueText, annualCost)
		if kind == AwardUnknown {
			continue
		}
		coverages = append(coverages, covered)
		if len(coverages) == 3 {
			break
		}
	}
	return coverages
}
