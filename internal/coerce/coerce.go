// Package coerce recovers schema-conforming values from the raw text a
// completion service returns. It applies extraction strategies in descending
// order of confidence and never fails: input that defeats every strategy
// degrades to an all-default result.
package coerce

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/KhangChau12/scholarship-advisor/internal/schema"
)

// Confidence tags how much repair a coercion needed.
type Confidence string

const (
	// Exact means the whole text parsed directly and every field conformed.
	Exact Confidence = "exact"
	// Repaired means the value was extracted or adjusted from decorated text.
	Repaired Confidence = "repaired"
	// Default means nothing usable was recovered and every field is a default.
	Default Confidence = "default"
)

// Result is the outcome of a coercion. Value always contains exactly the
// descriptor's fields with their declared kinds. Defaulted lists the
// top-level field names that hold kind defaults rather than extracted data.
type Result struct {
	Value      map[string]any
	Confidence Confidence
	Defaulted  []string
}

// MajorityDefaulted reports whether more than half of the fields carry
// defaults. Stage orchestration treats such results as degraded.
func (r Result) MajorityDefaulted() bool {
	return len(r.Defaulted)*2 > len(r.Value)
}

// Coerce applies the strategy chain: direct parse, fenced-block extraction,
// balanced-brace scanning, per-field pattern scanning, default construction.
func Coerce(rawText string, descriptor schema.Descriptor) Result {
	trimmed := strings.TrimSpace(rawText)
	if trimmed != "" {
		if parsed, ok := parseDirect(trimmed, descriptor); ok {
			return conform(parsed, descriptor, Exact)
		}
		if parsed, ok := parseFenced(trimmed, descriptor); ok {
			return conform(parsed, descriptor, Repaired)
		}
		if parsed, ok := scanBalancedObjects(trimmed, descriptor); ok {
			return conform(parsed, descriptor, Repaired)
		}
		if parsed, ok := scanFields(trimmed, descriptor); ok {
			return conform(parsed, descriptor, Repaired)
		}
	}
	return Result{
		Value:      descriptor.Default(),
		Confidence: Default,
		Defaulted:  descriptor.Names(),
	}
}

// parseDirect accepts the whole text only when it is an object literal whose
// top-level fields are all present.
func parseDirect(text string, descriptor schema.Descriptor) (map[string]any, bool) {
	parsed, ok := decodeObject(text)
	if !ok {
		return nil, false
	}
	for _, name := range descriptor.Names() {
		if _, present := parsed[name]; !present {
			return nil, false
		}
	}
	return parsed, true
}

var fencedBlockPattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")

// parseFenced extracts object literals out of code fences. A block is only
// accepted when it shares at least one field name with the descriptor, so an
// unrelated fenced object does not shadow later strategies.
func parseFenced(text string, descriptor schema.Descriptor) (map[string]any, bool) {
	matches := fencedBlockPattern.FindAllStringSubmatch(text, -1)
	for _, match := range matches {
		block := strings.TrimSpace(match[1])
		parsed, ok := decodeObject(block)
		if !ok {
			if candidate, found := firstBalancedObject(block); found {
				parsed, ok = decodeObject(candidate)
			}
		}
		if ok && overlapCount(parsed, descriptor) > 0 {
			return parsed, true
		}
	}
	return nil, false
}

// scanBalancedObjects walks the text for balanced object literals, nested
// ones included, and accepts the first candidate whose field-name overlap
// with the descriptor reaches 50%.
func scanBalancedObjects(text string, descriptor schema.Descriptor) (map[string]any, bool) {
	for index := 0; index < len(text); index++ {
		if text[index] != '{' {
			continue
		}
		candidate, ok := balancedSlice(text[index:], '{', '}')
		if !ok {
			continue
		}
		parsed, decoded := decodeObject(candidate)
		if decoded && overlapCount(parsed, descriptor)*2 >= descriptor.Len() {
			return parsed, true
		}
		// Keep scanning from the next character so nested objects inside a
		// rejected or unparseable candidate still get considered.
	}
	return nil, false
}

func overlapCount(parsed map[string]any, descriptor schema.Descriptor) int {
	count := 0
	for _, name := range descriptor.Names() {
		if _, present := parsed[name]; present {
			count++
		}
	}
	return count
}

func decodeObject(text string) (map[string]any, bool) {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, false
	}
	if parsed == nil {
		return nil, false
	}
	return parsed, true
}

// firstBalancedObject finds the first balanced {...} span in the text.
func firstBalancedObject(text string) (string, bool) {
	for index := 0; index < len(text); index++ {
		if text[index] != '{' {
			continue
		}
		if candidate, ok := balancedSlice(text[index:], '{', '}'); ok {
			return candidate, true
		}
	}
	return "", false
}

// balancedSlice returns the prefix of text spanning one balanced open/close
// pair, honoring string literals and escapes. text must start at the opener.
func balancedSlice(text string, open, close byte) (string, bool) {
	if len(text) == 0 || text[0] != open {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for index := 0; index < len(text); index++ {
		character := text[index]
		if inString {
			switch {
			case escaped:
				escaped = false
			case character == '\\':
				escaped = true
			case character == '"':
				inString = false
			}
			continue
		}
		switch character {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[:index+1], true
			}
		}
	}
	return "", false
}

// conform reshapes a parsed mapping into exactly the descriptor's fields,
// filling gaps with defaults and downgrading confidence when repairs happen.
func conform(parsed map[string]any, descriptor schema.Descriptor, base Confidence) Result {
	value := make(map[string]any, descriptor.Len())
	var defaulted []string
	repaired := base == Repaired

	for _, field := range descriptor.Fields() {
		raw, present := parsed[field.Name]
		if !present {
			value[field.Name] = field.Default()
			defaulted = append(defaulted, field.Name)
			repaired = true
			continue
		}
		converted, changed, ok := conformValue(field, raw)
		if !ok {
			value[field.Name] = field.Default()
			defaulted = append(defaulted, field.Name)
			repaired = true
			continue
		}
		if changed {
			repaired = true
		}
		value[field.Name] = converted
	}

	confidence := base
	switch {
	case len(defaulted) == descriptor.Len():
		confidence = Default
	case repaired:
		confidence = Repaired
	}
	return Result{Value: value, Confidence: confidence, Defaulted: defaulted}
}

// conformValue converts raw into the field's declared kind. The second return
// reports whether a repair was applied; the third whether conversion was
// possible at all.
func conformValue(field schema.Field, raw any) (any, bool, bool) {
	switch field.Kind {
	case schema.KindString:
		return conformString(raw)
	case schema.KindNumber:
		return conformNumber(raw)
	case schema.KindBoolean:
		return conformBoolean(raw)
	case schema.KindList:
		if list, ok := raw.([]any); ok {
			return list, false, true
		}
		return nil, false, false
	case schema.KindObject:
		nested, ok := raw.(map[string]any)
		if !ok {
			return nil, false, false
		}
		if len(field.Fields) == 0 {
			return nested, false, true
		}
		return conformNestedObject(field, nested)
	}
	return nil, false, false
}

func conformString(raw any) (any, bool, bool) {
	switch typed := raw.(type) {
	case string:
		return typed, false, true
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true, true
	case bool:
		if typed {
			return "true", true, true
		}
		return "false", true, true
	}
	return nil, false, false
}

func conformNumber(raw any) (any, bool, bool) {
	switch typed := raw.(type) {
	case float64:
		return typed, false, true
	case string:
		if parsed, ok := parseLooseNumber(typed); ok {
			return parsed, true, true
		}
	}
	return nil, false, false
}

func conformBoolean(raw any) (any, bool, bool) {
	switch typed := raw.(type) {
	case bool:
		return typed, false, true
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "true", "yes":
			return true, true, true
		case "false", "no":
			return false, true, true
		}
	}
	return nil, false, false
}

func conformNestedObject(field schema.Field, nested map[string]any) (any, bool, bool) {
	out := make(map[string]any, len(field.Fields))
	changed := false
	for _, member := range field.Fields {
		raw, present := nested[member.Name]
		if !present {
			out[member.Name] = member.Default()
			changed = true
			continue
		}
		converted, memberChanged, ok := conformValue(member, raw)
		if !ok {
			out[member.Name] = member.Default()
			changed = true
			continue
		}
		if memberChanged {
			changed = true
		}
		out[member.Name] = converted
	}
	return out, changed, true
}
