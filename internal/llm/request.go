package llm

import (
	"strconv"

	"github.com/KhangChau12/scholarship-advisor/internal/cache"
	"github.com/KhangChau12/scholarship-advisor/internal/schema"
)

// Request describes one completion call: an ordered message history, an
// optional system instruction, the expected response shape, and generation
// parameters. Treated as immutable once constructed.
type Request struct {
	System      string
	Messages    []Message
	Schema      schema.Descriptor
	Model       string
	Temperature float64
	MaxTokens   int
}

// UserRequest builds the common single-turn request.
func UserRequest(system string, user string, descriptor schema.Descriptor) Request {
	return Request{
		System:   system,
		Messages: []Message{{Role: "user", Content: user}},
		Schema:   descriptor,
	}
}

// Key derives the deterministic content-addressed cache key for the request.
// The system instruction, every message turn, the schema, and the model all
// participate; generation parameters that change the text do too.
func (r Request) Key() string {
	parts := make([]string, 0, len(r.Messages)*2+5)
	parts = append(parts, r.System)
	for _, message := range r.Messages {
		parts = append(parts, message.Role, message.Content)
	}
	parts = append(parts,
		r.Schema.Canonical(),
		r.Model,
		strconv.FormatFloat(r.Temperature, 'f', -1, 64),
		strconv.Itoa(r.MaxTokens),
	)
	return cache.Key(parts...)
}
