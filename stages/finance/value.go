package finance

import (
	"regexp"
	"strconv"
	"strings"
)

// AwardKind classifies how a scholarship expresses its value.
type AwardKind string

const (
	AwardFull       AwardKind = "full"
	AwardPercentage AwardKind = "percentage"
	AwardFixed      AwardKind = "fixed"
	AwardUnknown    AwardKind = "unknown"
)

var (
	percentagePattern = regexp.MustCompile(`(\d{1,3})\s*%`)
	amountPattern     = regexp.MustCompile(`[$€£]\s*([\d,]+(?:\.\d+)?)\s*([kK])?`)
)

// ParseAwardValue turns a scholarship's free-text value ("full", "50%",
// "$20,000 per year") into the annual amount it covers against the given
// annual cost. Unrecognized text covers nothing.
func ParseAwardValue(value string, annualCost float64) (float64, AwardKind) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return 0, AwardUnknown
	}

	if strings.Contains(normalized, "full") || strings.Contains(normalized, "100%") ||
		strings.Contains(normalized, "toàn phần") {
		return annualCost, AwardFull
	}

	if match := percentagePattern.FindStringSubmatch(normalized); match != nil {
		percent, err := strconv.ParseFloat(match[1], 64)
		if err == nil && percent > 0 && percent <= 100 {
			return annualCost * percent / 100, AwardPercentage
		}
	}

	if match := amountPattern.FindStringSubmatch(normalized); match != nil {
		digits := strings.ReplaceAll(match[1], ",", "")
		amount, err := strconv.ParseFloat(digits, 64)
		if err == nil && amount > 0 {
			if match[2] != "" {
				amount *= 1000
			}
			if amount > annualCost && annualCost > 0 {
				amount = annualCost
			}
			return amount, AwardFixed
		}
	}

	if strings.Contains(normalized, "partial") || strings.Contains(normalized, "bán phần") {
		return annualCost / 2, AwardPercentage
	}
	return 0, AwardUnknown
}
