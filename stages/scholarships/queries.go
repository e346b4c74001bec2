package scholarships

import "strings"

// flagshipQueries are the named programs worth searching for explicitly when
// the student targets their host country.
var flagshipQueries = map[string][]string{
	"usa":            {"Fulbright scholarship for Vietnamese students"},
	"united states":  {"Fulbright scholarship for Vietnamese students"},
	"america":        {"Fulbright scholarship for Vietnamese students"},
	"uk":             {"Chevening scholarship Vietnam requirements"},
	"united kingdom": {"Chevening scholarship Vietnam requirements"},
	"england":        {"Chevening scholarship Vietnam requirements"},
	"canada":         {"Vanier Canada graduate scholarship international"},
	"australia":      {"Australia Awards scholarship Vietnam"},
}

// BuildQueries derives the search queries for the student's field, country,
// and degree level. Blank inputs narrow the set instead of producing junk
// queries; at least one caller input is non-blank by the time this runs.
func BuildQueries(fieldOfStudy string, targetCountry string, degreeLevel string) []string {
	fieldOfStudy = strings.TrimSpace(fieldOfStudy)
	targetCountry = strings.TrimSpace(targetCountry)
	degreeLevel = strings.TrimSpace(degreeLevel)

	var queries []string
	appendQuery := func(parts ...string) {
		var kept []string
		for _, part := range parts {
			if strings.TrimSpace(part) != "" {
				kept = append(kept, strings.TrimSpace(part))
			}
		}
		queries = append(queries, strings.Join(kept, " "))
	}

	queries = append(queries, flagshipQueries[strings.ToLower(targetCountry)]...)

	if fieldOfStudy != "" {
		appendQuery(fieldOfStudy, "scholarships for Vietnamese students", targetCountry)
		appendQuery("fully funded", fieldOfStudy, "scholarships", targetCountry)
	}
	if targetCountry != "" {
		appendQuery(degreeLevel, "scholarships in", targetCountry, "for international students")
		appendQuery(targetCountry, "government scholarships Vietnam")
	}
	if fieldOfStudy != "" && degreeLevel != "" {
		appendQuery(degreeLevel, fieldOfStudy, "scholarship deadlines")
	}

	return dedupeQueries(queries)
}

func dedupeQueries(queries []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(queries))
	for _, query := range queries {
		normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
		if normalized == "" {
			continue
		}
		if _, duplicate := seen[normalized]; duplicate {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, strings.Join(strings.Fields(query), " "))
	}
	return out
}
