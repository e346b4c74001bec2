package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Message is one role-tagged turn of a completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client speaks the chat-completions HTTP protocol and classifies failures
// into the transport error taxonomy. It holds no request state.
type Client struct {
	HTTPBaseURL string
	APIKey      string
	HTTPClient  *http.Client
}

type chatCompletionRequest struct {
	Model               string    `json:"model"`
	Messages            []Message `json:"messages"`
	MaxCompletionTokens int       `json:"max_completion_tokens,omitempty"`
	Temperature         *float64  `json:"temperature,omitempty"`
}

type chatMessageResponse struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	Refusal json.RawMessage `json:"refusal,omitempty"`
}

type chatCompletionChoice struct {
	Message      chatMessageResponse `json:"message"`
	FinishReason string              `json:"finish_reason"`
}

type chatCompletionResponse struct {
	Choices []chatCompletionChoice `json:"choices"`
}

func (c Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// CreateChatCompletion posts the payload and returns the assistant text.
// Failures come back as one of the typed transport errors.
func (c Client) CreateChatCompletion(ctx context.Context, payload chatCompletionRequest) (string, error) {
	requestBytes, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return "", &BadRequestError{Detail: marshalErr.Error()}
	}
	httpRequest, buildErr := http.NewRequestWithContext(ctx, http.MethodPost, c.HTTPBaseURL+"/chat/completions", bytes.NewReader(requestBytes))
	if buildErr != nil {
		return "", &BadRequestError{Detail: buildErr.Error()}
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Authorization", "Bearer "+c.APIKey)

	httpResponse, httpErr := c.httpClient().Do(httpRequest)
	if httpErr != nil {
		return "", &TransientError{Err: httpErr}
	}
	defer func(closer io.ReadCloser) { _ = closer.Close() }(httpResponse.Body)

	bodyBytes, readErr := io.ReadAll(httpResponse.Body)
	if readErr != nil {
		return "", &TransientError{Err: readErr}
	}
	bodyPreview := truncateForLog(string(bodyBytes), 512)

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 {
		return "", classifyStatus(httpResponse.StatusCode, bodyPreview, parseRetryAfter(httpResponse.Header.Get("Retry-After")))
	}

	var completion chatCompletionResponse
	if decodeErr := json.Unmarshal(bodyBytes, &completion); decodeErr != nil {
		return "", &TransientError{Status: httpResponse.StatusCode, Detail: "decode chat completion: " + bodyPreview}
	}
	if len(completion.Choices) == 0 {
		return "", &EmptyResponseError{Detail: "no choices in " + bodyPreview}
	}

	choice := completion.Choices[0]
	content := extractMessageContent(choice.Message)
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", &EmptyResponseError{FinishReason: strings.TrimSpace(choice.FinishReason), Detail: bodyPreview}
	}
	return trimmed, nil
}

func parseRetryAfter(headerValue string) time.Duration {
	trimmed := strings.TrimSpace(headerValue)
	if trimmed == "" {
		return 0
	}
	seconds, err := strconv.Atoi(trimmed)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// extractMessageContent handles both plain string content and the structured
// rich-content arrays some providers return.
func extractMessageContent(message chatMessageResponse) string {
	if len(message.Content) == 0 || string(message.Content) == "null" {
		return decodeRefusal(message.Refusal)
	}

	var asString string
	if err := json.Unmarshal(message.Content, &asString); err == nil {
		return asString
	}

	fragments := gatherTextFragments(message.Content)
	if len(fragments) > 0 {
		return strings.TrimSpace(strings.Join(fragments, "\n"))
	}
	return decodeRefusal(message.Refusal)
}

func gatherTextFragments(raw json.RawMessage) []string {
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}
	return flattenText(data)
}

func flattenText(value any) []string {
	switch typed := value.(type) {
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	case []any:
		var collected []string
		for _, item := range typed {
			collected = append(collected, flattenText(item)...)
		}
		return collected
	case map[string]any:
		if text, ok := typed["text"]; ok {
			return flattenText(text)
		}
		if content, ok := typed["content"]; ok {
			return flattenText(content)
		}
		var collected []string
		for _, nested := range typed {
			collected = append(collected, flattenText(nested)...)
		}
		return collected
	default:
		return nil
	}
}

func decodeRefusal(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var refusalString string
	if err := json.Unmarshal(raw, &refusalString); err == nil {
		return strings.TrimSpace(refusalString)
	}
	fragments := gatherTextFragments(raw)
	if len(fragments) > 0 {
		return strings.TrimSpace(strings.Join(fragments, "\n"))
	}
	return strings.TrimSpace(truncateForLog(string(raw), 200))
}

func truncateForLog(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}
