package scholarships

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Boosts are the additive ranking adjustments applied on top of the model's
// field match score. Zero values fall back to the stock policy.
type Boosts struct {
	FullAward       float64 `yaml:"full_award"`
	PartialAward    float64 `yaml:"partial_award"`
	Prestigious     float64 `yaml:"prestigious"`
	VietnamFriendly float64 `yaml:"vietnam_friendly"`
	FieldMatch      float64 `yaml:"field_match"`
	AccessibleGPA   float64 `yaml:"accessible_gpa"`
	DemandingGPA    float64 `yaml:"demanding_gpa"`
}

func (b Boosts) withDefaults() Boosts {
	if b == (Boosts{}) {
		return Boosts{
			FullAward:       15,
			PartialAward:    10,
			Prestigious:     20,
			VietnamFriendly: 15,
			FieldMatch:      10,
			AccessibleGPA:   5,
			DemandingGPA:    -5,
		}
	}
	return b
}

var prestigiousPrograms = []string{
	"fulbright", "chevening", "vanier", "australia awards",
	"erasmus", "daad", "mext", "gates cambridge", "rhodes",
}

var gpaRequirementPattern = regexp.MustCompile(`\b([0-4]\.\d{1,2})\b`)

// Rank scores each scholarship and returns the list in descending score
// order. Scores are clamped to [0, 100] and stored under rank_score so
// downstream stages can reuse them.
func Rank(items []map[string]any, fieldOfStudy string, boosts Boosts) []map[string]any {
	boosts = boosts.withDefaults()
	ranked := make([]map[string]any, len(items))
	for itemIndex, item := range items {
		scored := make(map[string]any, len(item)+1)
		for key, value := range item {
			scored[key] = value
		}
		scored["rank_score"] = scoreItem(item, fieldOfStudy, boosts)
		ranked[itemIndex] = scored
	}
	sort.SliceStable(ranked, func(left, right int) bool {
		leftScore, _ := ranked[left]["rank_score"].(float64)
		rightScore, _ := ranked[right]["rank_score"].(float64)
		return leftScore > rightScore
	})
	return ranked
}

func scoreItem(item map[string]any, fieldOfStudy string, boosts Boosts) float64 {
	score, _ := item["match_score"].(float64)

	name := lowerString(item, "name")
	organization := lowerString(item, "organization")
	value := lowerString(item, "value")
	requirements := lowerString(item, "requirements")
	haystack := name + " " + organization + " " + requirements

	switch {
	case strings.Contains(value, "full") || strings.Contains(value, "100%"):
		score += boosts.FullAward
	case strings.Contains(value, "%") || strings.Contains(value, "partial"):
		score += boosts.PartialAward
	}
	for _, program := range prestigiousPrograms {
		if strings.Contains(name, program) || strings.Contains(organization, program) {
			score += boosts.Prestigious
			break
		}
	}
	if strings.Contains(haystack, "vietnam") {
		score += boosts.VietnamFriendly
	}
	if field := strings.ToLower(strings.TrimSpace(fieldOfStudy)); field != "" && strings.Contains(haystack, field) {
		score += boosts.FieldMatch
	}
	if required, found := requiredGPA(requirements); found {
		if required <= 3.0 {
			score += boosts.AccessibleGPA
		} else if required >= 3.5 {
			score += boosts.DemandingGPA
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

func requiredGPA(requirements string) (float64, bool) {
	match := gpaRequirementPattern.FindStringSubmatch(requirements)
	if match == nil {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func lowerString(item map[string]any, key string) string {
	value, _ := item[key].(string)
	return strings.ToLower(value)
}
