package advice

import (
	"sort"
	"strings"
	"time"
)

const (
	maxPrioritized = 8

	priorityHigh   = "high"
	priorityMedium = "medium"
	priorityLow    = "low"

	deadlineWindow = 90 * 24 * time.Hour
)

// Weights are the additive priority adjustments. Zero values fall back to the
// stock policy.
type Weights struct {
	MatchFactor     float64 `yaml:"match_factor"`
	FullAward       float64 `yaml:"full_award"`
	PartialAward    float64 `yaml:"partial_award"`
	StrongProfile   float64 `yaml:"strong_profile"`
	DecentProfile   float64 `yaml:"decent_profile"`
	DeadlineSoon    float64 `yaml:"deadline_soon"`
	HighThreshold   float64 `yaml:"high_threshold"`
	MediumThreshold float64 `yaml:"medium_threshold"`
}

func (w Weights) withDefaults() Weights {
	if w == (Weights{}) {
		return Weights{
			MatchFactor:     0.4,
			FullAward:       30,
			PartialAward:    20,
			StrongProfile:   15,
			DecentProfile:   10,
			DeadlineSoon:    10,
			HighThreshold:   80,
			MediumThreshold: 60,
		}
	}
	return w
}

// deadlineLayouts are the date shapes scholarship pages commonly use.
var deadlineLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"January 2, 2006",
	"2 January 2006",
	"January 2006",
}

// Prioritize orders scholarships by application priority for this student:
// the ranked match blended with award value, profile strength, and deadline
// proximity. Returns at most eight entries, each annotated with its priority
// band.
func Prioritize(items []map[string]any, profileScore float64, now time.Time, weights Weights) []map[string]any {
	weights = weights.withDefaults()

	prioritized := make([]map[string]any, 0, len(items))
	for _, item := range items {
		annotated := make(map[string]any, len(item)+2)
		for key, value := range item {
			annotated[key] = value
		}
		score := priorityScore(item, profileScore, now, weights)
		annotated["priority_score"] = score
		annotated["priority"] = priorityBand(score, weights)
		prioritized = append(prioritized, annotated)
	}

	sort.SliceStable(prioritized, func(left, right int) bool {
		leftScore, _ := prioritized[left]["priority_score"].(float64)
		rightScore, _ := prioritized[right]["priority_score"].(float64)
		return leftScore > rightScore
	})
	if len(prioritized) > maxPrioritized {
		prioritized = prioritized[:maxPrioritized]
	}
	return prioritized
}

func priorityScore(item map[string]any, profileScore float64, now time.Time, weights Weights) float64 {
	match, _ := item["rank_score"].(float64)
	if match == 0 {
		match, _ = item["match_score"].(float64)
	}
	score := match * weights.MatchFactor

	value, _ := item["value"].(string)
	normalizedValue := strings.ToLower(value)
	switch {
	case strings.Contains(normalizedValue, "full") || strings.Contains(normalizedValue, "100%"):
		score += weights.FullAward
	case strings.Contains(normalizedValue, "%") || strings.Contains(normalizedValue, "partial"):
		score += weights.PartialAward
	}

	switch {
	case profileScore >= 70:
		score += weights.StrongProfile
	case profileScore >= 50:
		score += weights.DecentProfile
	}

	deadline, _ := item["deadline"].(string)
	if due, found := parseDeadline(deadline); found {
		until := due.Sub(now)
		if until > 0 && until <= deadlineWindow {
			score += weights.DeadlineSoon
		}
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

func priorityBand(score float64, weights Weights) string {
	switch {
	case score >= weights.HighThreshold:
		return priorityHigh
	case score >= weights.MediumThreshold:
		return priorityMedium
	default:
		return priorityLow
	}
}

func parseDeadline(text string) (time.Time, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range deadlineLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
