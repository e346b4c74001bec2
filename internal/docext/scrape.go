package docext

import (
	"regexp"
	"strconv"
	"strings"
)

// ProfileFacts are the scoreable signals scraped out of applicant documents.
// Zero values mean "not mentioned", never "scored zero".
type ProfileFacts struct {
	GPA          float64
	IELTS        float64
	TOEFL        float64
	SAT          float64
	Achievements []string
	Activities   []string
	Languages    []string
}

var (
	gpaPattern   = regexp.MustCompile(`(?i)\bGPA\b[:\s]*([0-4](?:\.\d{1,2})?)`)
	ieltsPattern = regexp.MustCompile(`(?i)\bIELTS\b[:\s]*(\d(?:\.\d)?)`)
	toeflPattern = regexp.MustCompile(`(?i)\bTOEFL\b[:\s]*(\d{2,3})`)
	satPattern   = regexp.MustCompile(`(?i)\bSAT\b[:\s]*(\d{3,4})`)

	achievementKeywords = []string{"award", "achievement", "prize", "medal", "honor", "scholarship", "winner"}
	activityKeywords    = []string{"volunteer", "club", "member", "president", "leader", "organized", "activity"}
	languageKeywords    = []string{"language", "fluent", "native", "bilingual"}
)

// ScrapeProfile pulls structured signals out of free-form document text. It
// is a heuristic pass: anything it misses still reaches the completion
// service through the raw text.
func ScrapeProfile(text string) ProfileFacts {
	facts := ProfileFacts{}
	facts.GPA = firstFloat(gpaPattern, text)
	facts.IELTS = firstFloat(ieltsPattern, text)
	facts.TOEFL = firstFloat(toeflPattern, text)
	facts.SAT = firstFloat(satPattern, text)

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || len(trimmed) > 200 {
			continue
		}
		lower := strings.ToLower(trimmed)
		switch {
		case containsAny(lower, achievementKeywords):
			facts.Achievements = append(facts.Achievements, trimmed)
		case containsAny(lower, activityKeywords):
			facts.Activities = append(facts.Activities, trimmed)
		case containsAny(lower, languageKeywords):
			facts.Languages = append(facts.Languages, trimmed)
		}
	}
	return facts
}

func firstFloat(pattern *regexp.Regexp, text string) float64 {
	match := pattern.FindStringSubmatch(text)
	if len(match) < 2 {
		return 0
	}
	parsed, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0
	}
	return parsed
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
