package schema_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/KhangChau12/scholarship-advisor/internal/schema"
)

func TestNewRejectsInvalidDeclarations(t *testing.T) {
	testCases := []struct {
		name   string
		fields []schema.Field
	}{
		{name: "empty descriptor", fields: nil},
		{name: "blank field name", fields: []schema.Field{{Name: "  ", Kind: schema.KindString}}},
		{name: "unknown kind", fields: []schema.Field{{Name: "score", Kind: schema.Kind("integer")}}},
		{name: "duplicate names", fields: []schema.Field{
			{Name: "score", Kind: schema.KindNumber},
			{Name: "score", Kind: schema.KindString},
		}},
		{name: "nested fields on non-object", fields: []schema.Field{
			{Name: "score", Kind: schema.KindNumber, Fields: []schema.Field{{Name: "min", Kind: schema.KindNumber}}},
		}},
		{name: "element on non-list", fields: []schema.Field{
			{Name: "score", Kind: schema.KindNumber, Elem: &schema.Field{Name: "item", Kind: schema.KindString}},
		}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if _, err := schema.New(testCase.fields...); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestNewAcceptsAnonymousListElements(t *testing.T) {
	descriptor, err := schema.New(
		schema.Field{Name: "questions", Kind: schema.KindList, Elem: &schema.Field{Kind: schema.KindString}},
		schema.Field{Name: "awards", Kind: schema.KindList, Elem: &schema.Field{
			Kind: schema.KindObject,
			Fields: []schema.Field{
				{Name: "name", Kind: schema.KindString},
				{Name: "value", Kind: schema.KindString},
			},
		}},
	)
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if descriptor.Len() != 2 {
		t.Fatalf("unexpected field count: %d", descriptor.Len())
	}
}

func TestNewRejectsInvalidListElements(t *testing.T) {
	testCases := []struct {
		name   string
		fields []schema.Field
	}{
		{name: "unknown element kind", fields: []schema.Field{
			{Name: "items", Kind: schema.KindList, Elem: &schema.Field{Kind: schema.Kind("integer")}},
		}},
		{name: "element members on non-object", fields: []schema.Field{
			{Name: "items", Kind: schema.KindList, Elem: &schema.Field{
				Kind:   schema.KindNumber,
				Fields: []schema.Field{{Name: "min", Kind: schema.KindNumber}},
			}},
		}},
		{name: "blank member name inside element", fields: []schema.Field{
			{Name: "items", Kind: schema.KindList, Elem: &schema.Field{
				Kind:   schema.KindObject,
				Fields: []schema.Field{{Name: " ", Kind: schema.KindString}},
			}},
		}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if _, err := schema.New(testCase.fields...); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestDefaultIsDeterministicPerKind(t *testing.T) {
	descriptor := schema.MustNew(
		schema.Field{Name: "notes", Kind: schema.KindString},
		schema.Field{Name: "score", Kind: schema.KindNumber},
		schema.Field{Name: "eligible", Kind: schema.KindBoolean},
		schema.Field{Name: "items", Kind: schema.KindList},
		schema.Field{Name: "costs", Kind: schema.KindObject, Fields: []schema.Field{
			{Name: "min", Kind: schema.KindNumber},
			{Name: "currency", Kind: schema.KindString},
		}},
	)

	expected := map[string]any{
		"notes":    "",
		"score":    float64(0),
		"eligible": false,
		"items":    []any{},
		"costs":    map[string]any{"min": float64(0), "currency": ""},
	}
	if got := descriptor.Default(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("unexpected defaults: %#v", got)
	}
}

func TestPromptSkeletonCarriesHints(t *testing.T) {
	descriptor := schema.MustNew(
		schema.Field{Name: "score", Kind: schema.KindNumber, Hint: "0-100"},
		schema.Field{Name: "notes", Kind: schema.KindList},
	)
	skeleton := descriptor.PromptSkeleton()
	if !strings.Contains(skeleton, `"score": "number (0-100)"`) {
		t.Fatalf("skeleton missing hinted number field: %s", skeleton)
	}
	if !strings.Contains(skeleton, `"notes": ["string"]`) {
		t.Fatalf("skeleton missing list field: %s", skeleton)
	}
}

func TestCanonicalIsStableAcrossCalls(t *testing.T) {
	descriptor := schema.MustNew(
		schema.Field{Name: "score", Kind: schema.KindNumber},
		schema.Field{Name: "costs", Kind: schema.KindObject, Fields: []schema.Field{
			{Name: "min", Kind: schema.KindNumber},
		}},
	)
	first := descriptor.Canonical()
	second := descriptor.Canonical()
	if first != second {
		t.Fatalf("canonical form changed between calls: %s vs %s", first, second)
	}
	if first != "{score:number,costs:object{min:number}}" {
		t.Fatalf("unexpected canonical form: %s", first)
	}
}
