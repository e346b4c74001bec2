package schema

import (
	"fmt"
	"strings"
)

const (
	unknownKindErrorFormat        = "field %s: unknown kind %q"
	blankFieldNameErrorMessage    = "field name is blank"
	duplicateFieldNameErrorFormat = "duplicate field name %s"
	nestedFieldsKindErrorFormat   = "field %s: nested fields require kind object"
	elementFieldKindErrorFormat   = "field %s: element descriptors require kind list"
	emptyDescriptorErrorMessage   = "descriptor has no fields"
)

// Kind is the closed enumeration of field kinds a descriptor may declare.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindList    Kind = "list"
	KindObject  Kind = "object"
)

func (k Kind) Valid() bool {
	switch k {
	case KindString, KindNumber, KindBoolean, KindList, KindObject:
		return true
	}
	return false
}

// Default returns the deterministic zero value for the kind.
func (k Kind) Default() any {
	switch k {
	case KindNumber:
		return float64(0)
	case KindBoolean:
		return false
	case KindList:
		return []any{}
	case KindObject:
		return map[string]any{}
	default:
		return ""
	}
}

// Field declares one named slot in a structured response. Hint is free text
// shown to the completion service when prompting; it never participates in
// validation or defaulting. Fields nests object members; Elem describes list
// elements for prompting only.
type Field struct {
	Name   string
	Kind   Kind
	Hint   string
	Fields []Field
	Elem   *Field
}

// Default returns the kind-appropriate zero value, expanding nested object
// members so downstream readers always see a fully shaped mapping.
func (f Field) Default() any {
	if f.Kind == KindObject && len(f.Fields) > 0 {
		nested := make(map[string]any, len(f.Fields))
		for _, member := range f.Fields {
			nested[member.Name] = member.Default()
		}
		return nested
	}
	return f.Kind.Default()
}

// Descriptor is an ordered set of field declarations. It is validated at
// construction and immutable afterwards.
type Descriptor struct {
	fields []Field
}

// New validates the declared fields and builds a descriptor.
func New(fields ...Field) (Descriptor, error) {
	if len(fields) == 0 {
		return Descriptor{}, fmt.Errorf(emptyDescriptorErrorMessage)
	}
	if err := validateFields(fields); err != nil {
		return Descriptor{}, err
	}
	owned := make([]Field, len(fields))
	copy(owned, fields)
	return Descriptor{fields: owned}, nil
}

// MustNew panics on an invalid declaration. Stage descriptors are declared
// statically, so an invalid one is a programming error.
func MustNew(fields ...Field) Descriptor {
	descriptor, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return descriptor
}

func validateFields(fields []Field) error {
	seen := map[string]struct{}{}
	for _, field := range fields {
		trimmedName := strings.TrimSpace(field.Name)
		if trimmedName == "" {
			return fmt.Errorf(blankFieldNameErrorMessage)
		}
		if _, duplicate := seen[trimmedName]; duplicate {
			return fmt.Errorf(duplicateFieldNameErrorFormat, trimmedName)
		}
		seen[trimmedName] = struct{}{}
		if !field.Kind.Valid() {
			return fmt.Errorf(unknownKindErrorFormat, trimmedName, string(field.Kind))
		}
		if len(field.Fields) > 0 {
			if field.Kind != KindObject {
				return fmt.Errorf(nestedFieldsKindErrorFormat, trimmedName)
			}
			if err := validateFields(field.Fields); err != nil {
				return err
			}
		}
		if field.Elem != nil {
			if field.Kind != KindList {
				return fmt.Errorf(elementFieldKindErrorFormat, trimmedName)
			}
			if err := validateElement(trimmedName, *field.Elem); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateElement checks a list element declaration. Elements are anonymous
// by convention, so only the kind and any nested members are validated.
func validateElement(ownerName string, element Field) error {
	if !element.Kind.Valid() {
		return fmt.Errorf(unknownKindErrorFormat, ownerName, string(element.Kind))
	}
	if len(element.Fields) > 0 {
		if element.Kind != KindObject {
			return fmt.Errorf(nestedFieldsKindErrorFormat, ownerName)
		}
		if err := validateFields(element.Fields); err != nil {
			return err
		}
	}
	if element.Elem != nil {
		if element.Kind != KindList {
			return fmt.Errorf(elementFieldKindErrorFormat, ownerName)
		}
		return validateElement(ownerName, *element.Elem)
	}
	return nil
}

// Fields returns the declared fields in declaration order.
func (d Descriptor) Fields() []Field {
	out := make([]Field, len(d.fields))
	copy(out, d.fields)
	return out
}

func (d Descriptor) Len() int { return len(d.fields) }

// Names returns the declared field names in declaration order.
func (d Descriptor) Names() []string {
	names := make([]string, 0, len(d.fields))
	for _, field := range d.fields {
		names = append(names, field.Name)
	}
	return names
}

// Lookup finds a top-level field by name.
func (d Descriptor) Lookup(name string) (Field, bool) {
	for _, field := range d.fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// Default builds a mapping with every declared field at its kind default.
func (d Descriptor) Default() map[string]any {
	out := make(map[string]any, len(d.fields))
	for _, field := range d.fields {
		out[field.Name] = field.Default()
	}
	return out
}

// PromptSkeleton renders the descriptor as a JSON-shaped skeleton where each
// value position names the expected kind plus the optional human hint. The
// skeleton is appended to system prompts so the completion service knows the
// shape; it is never parsed back.
func (d Descriptor) PromptSkeleton() string {
	var builder strings.Builder
	writeObjectSkeleton(&builder, d.fields)
	return builder.String()
}

func writeObjectSkeleton(builder *strings.Builder, fields []Field) {
	builder.WriteString("{")
	for index, field := range fields {
		if index > 0 {
			builder.WriteString(", ")
		}
		fmt.Fprintf(builder, "%q: ", field.Name)
		writeFieldSkeleton(builder, field)
	}
	builder.WriteString("}")
}

func writeFieldSkeleton(builder *strings.Builder, field Field) {
	switch field.Kind {
	case KindObject:
		if len(field.Fields) > 0 {
			writeObjectSkeleton(builder, field.Fields)
			return
		}
		fmt.Fprintf(builder, "%q", kindLabel(KindObject, field.Hint))
	case KindList:
		builder.WriteString("[")
		if field.Elem != nil {
			writeFieldSkeleton(builder, *field.Elem)
		} else {
			fmt.Fprintf(builder, "%q", kindLabel(KindString, field.Hint))
		}
		builder.WriteString("]")
	default:
		fmt.Fprintf(builder, "%q", kindLabel(field.Kind, field.Hint))
	}
}

func kindLabel(kind Kind, hint string) string {
	trimmedHint := strings.TrimSpace(hint)
	if trimmedHint == "" {
		return string(kind)
	}
	return string(kind) + " (" + trimmedHint + ")"
}

// Canonical renders a stable textual form of the descriptor used for
// content-addressed cache keys. Declaration order is part of the identity.
func (d Descriptor) Canonical() string {
	var builder strings.Builder
	writeCanonicalFields(&builder, d.fields)
	return builder.String()
}

func writeCanonicalFields(builder *strings.Builder, fields []Field) {
	builder.WriteString("{")
	for index, field := range fields {
		if index > 0 {
			builder.WriteString(",")
		}
		builder.WriteString(field.Name)
		builder.WriteString(":")
		builder.WriteString(string(field.Kind))
		if len(field.Fields) > 0 {
			writeCanonicalFields(builder, field.Fields)
		}
		if field.Elem != nil {
			builder.WriteString("[")
			writeCanonicalFields(builder, []Field{*field.Elem})
			builder.WriteString("]")
		}
	}
	builder.WriteString("}")
}
