package profile

import "github.com/KhangChau12/scholarship-advisor/internal/docext"

// Rating thresholds, from the measured score downwards.
const (
	RatingOutstanding = "Outstanding"
	RatingStrong      = "Strong"
	RatingCompetitive = "Competitive"
	RatingDeveloping  = "Developing"
	RatingEmerging    = "Emerging"
)

const baseScore = 20

// Score computes the deterministic competitiveness score from scraped
// document facts. Each signal contributes a capped band so one strong area
// cannot dominate the whole score.
func Score(facts docext.ProfileFacts) float64 {
	score := float64(baseScore)
	score += gpaPoints(facts.GPA)
	score += languagePoints(facts)
	score += cappedCount(len(facts.Achievements), 5, 15)
	score += cappedCount(len(facts.Activities), 4, 12)
	if len(facts.Languages) > 1 {
		score += cappedCount(len(facts.Languages)-1, 3, 6)
	}
	if score > 100 {
		score = 100
	}
	return score
}

// Rating maps a score to its band name.
func Rating(score float64) string {
	switch {
	case score >= 80:
		return RatingOutstanding
	case score >= 65:
		return RatingStrong
	case score >= 50:
		return RatingCompetitive
	case score >= 35:
		return RatingDeveloping
	default:
		return RatingEmerging
	}
}

func gpaPoints(gpa float64) float64 {
	switch {
	case gpa >= 3.7:
		return 30
	case gpa >= 3.3:
		return 20
	case gpa >= 3.0:
		return 10
	default:
		return 0
	}
}

// languagePoints scores the stronger of the two test signals; a student with
// both IELTS and TOEFL results gets credit once.
func languagePoints(facts docext.ProfileFacts) float64 {
	ielts := ieltsPoints(facts.IELTS)
	toefl := toeflPoints(facts.TOEFL)
	if toefl > ielts {
		return toefl
	}
	return ielts
}

func ieltsPoints(band float64) float64 {
	switch {
	case band >= 7.0:
		return 15
	case band >= 6.5:
		return 10
	case band >= 6.0:
		return 5
	default:
		return 0
	}
}

func toeflPoints(total float64) float64 {
	switch {
	case total >= 100:
		return 15
	case total >= 90:
		return 10
	case total >= 79:
		return 5
	default:
		return 0
	}
}

func cappedCount(count int, pointsEach float64, maximum float64) float64 {
	points := float64(count) * pointsEach
	if points > maximum {
		return maximum
	}
	return points
}
