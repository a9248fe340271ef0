// Package api holds the wire-level records exchanged with the bulk-inference
// service and consumed by external result packagers.
package api

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type RequestBody struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// RequestLine is one grading request, serialized as a single compact JSON
// line of the batch input file.
type RequestLine struct {
	CustomID string      `json:"custom_id"`
	Method   string      `json:"method"`
	URL      string      `json:"url"`
	Body     RequestBody `json:"body"`
}

type Choice struct {
	Message Message `json:"message"`
}

type ResponseBody struct {
	Choices []Choice `json:"choices"`
}

type ResponseEnvelope struct {
	StatusCode int          `json:"status_code"`
	Body       ResponseBody `json:"body"`
}

// ResponseLine is one graded result from the batch output file, correlated
// back to its submission through CustomID.
type ResponseLine struct {
	CustomID string           `json:"custom_id"`
	Response ResponseEnvelope `json:"response"`
	Error    *ResponseError   `json:"error,omitempty"`
}

type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
