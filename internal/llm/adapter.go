package llm

import (
	"context"

	"github.com/KhangChau12/scholarship-advisor/internal/coerce"
)

// Structured adapts the raw-text transport into typed values: it completes
// the request and runs the text through the schema coercer. Transport errors
// still surface; coercion itself never fails.
type Structured struct {
	Completer Completer
}

// Complete returns the coerced result for the request's schema.
func (s Structured) Complete(ctx context.Context, request Request) (coerce.Result, error) {
	text, err := s.Completer.Complete(ctx, request)
	if err != nil {
		return coerce.Result{}, err
	}
	return coerce.Coerce(text, request.Schema), nil
}
