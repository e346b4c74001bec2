package coerce

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/KhangChau12/scholarship-advisor/internal/schema"
)

// scanFields runs the per-field pattern strategy: every descriptor field is
// searched independently and fields without a match stay unset so conform
// fills their defaults.
func scanFields(text string, descriptor schema.Descriptor) (map[string]any, bool) {
	found := map[string]any{}
	for _, field := range descriptor.Fields() {
		if value, ok := ScanField(text, field.Name, field.Kind); ok {
			found[field.Name] = value
		}
	}
	if len(found) == 0 {
		return nil, false
	}
	return found, true
}

// ScanField searches text for a `"name": value` shaped substring and decodes
// the value for the requested kind. It is a pure function so each kind's
// pattern can be exercised on its own.
func ScanField(text string, name string, kind schema.Kind) (any, bool) {
	position, ok := fieldValuePosition(text, name)
	if !ok {
		return nil, false
	}
	remainder := text[position:]
	switch kind {
	case schema.KindString:
		return scanQuotedString(remainder)
	case schema.KindNumber:
		return scanBareNumber(remainder)
	case schema.KindBoolean:
		return scanBareBoolean(remainder)
	case schema.KindList:
		return scanDelimited(remainder, '[', ']')
	case schema.KindObject:
		return scanDelimitedObject(remainder)
	}
	return nil, false
}

// fieldValuePosition finds the offset just past `"name"` and its colon.
func fieldValuePosition(text string, name string) (int, bool) {
	pattern := regexp.MustCompile(`"` + regexp.QuoteMeta(name) + `"\s*:\s*`)
	location := pattern.FindStringIndex(text)
	if location == nil {
		return 0, false
	}
	return location[1], true
}

var quotedStringPattern = regexp.MustCompile(`^"((?:[^"\\]|\\.)*)"`)

func scanQuotedString(text string) (any, bool) {
	match := quotedStringPattern.FindString(text)
	if match == "" {
		return nil, false
	}
	var decoded string
	if err := json.Unmarshal([]byte(match), &decoded); err != nil {
		return nil, false
	}
	return decoded, true
}

var bareNumberPattern = regexp.MustCompile(`^-?\d+(?:\.\d+)?`)

func scanBareNumber(text string) (any, bool) {
	match := bareNumberPattern.FindString(text)
	if match == "" {
		return nil, false
	}
	parsed, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil, false
	}
	return parsed, true
}

var bareBooleanPattern = regexp.MustCompile(`^(true|false)\b`)

func scanBareBoolean(text string) (any, bool) {
	match := bareBooleanPattern.FindString(text)
	if match == "" {
		return nil, false
	}
	return match == "true", true
}

func scanDelimited(text string, open, close byte) (any, bool) {
	candidate, ok := balancedSlice(text, open, close)
	if !ok {
		return nil, false
	}
	var decoded []any
	if err := json.Unmarshal([]byte(candidate), &decoded); err != nil {
		return nil, false
	}
	if decoded == nil {
		decoded = []any{}
	}
	return decoded, true
}

func scanDelimitedObject(text string) (any, bool) {
	candidate, ok := balancedSlice(text, '{', '}')
	if !ok {
		return nil, false
	}
	parsed, decoded := decodeObject(candidate)
	if !decoded {
		return nil, false
	}
	return parsed, true
}

// parseLooseNumber accepts numbers decorated with separators or a percent
// sign, the way completion services often format scores.
func parseLooseNumber(text string) (float64, bool) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimSuffix(cleaned, "%")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}
