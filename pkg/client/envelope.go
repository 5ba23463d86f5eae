package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// responseShape tags how a successful response body was wrapped.
type responseShape int

const (
	// shapeRaw is a payload returned as-is.
	shapeRaw responseShape = iota

	// shapeEnvelope is a payload wrapped in {success, data|error}.
	shapeEnvelope
)

// envelopeKeys are the only top-level keys a success:true envelope may carry.
// An object with other keys is a raw payload even if it has "success": true.
// A "success": false object is always a failed envelope.
var envelopeKeys = map[string]bool{
	"success": true,
	"data":    true,
	"error":   true,
	"message": true,
	"meta":    true,
}

// envelope is the {success, data?, error?} wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *envelopeError  `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// envelopeError is the error member of an envelope. Upstream sends either an
// object {code?, message?} or a bare string.
type envelopeError struct {
	Code    string
	Message string
}

// UnmarshalJSON accepts both error forms; numeric codes are kept as text.
func (e *envelopeError) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &e.Message)
	}

	var aux struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(trimmed, &aux); err != nil {
		return err
	}
	e.Message = aux.Message
	e.Code = rawText(aux.Code)
	return nil
}

// decodedResponse is a response body decoded at the HTTP boundary.
type decodedResponse struct {
	shape    responseShape
	payload  json.RawMessage
	envelope *envelope
}

// decodeResponse detects whether body is an envelope or a raw payload.
func decodeResponse(body []byte) (decodedResponse, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return decodedResponse{shape: shapeRaw, payload: trimmed}, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return decodedResponse{}, fmt.Errorf("decode response body: %w", err)
	}
	if !isEnvelope(probe) {
		return decodedResponse{shape: shapeRaw, payload: trimmed}, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return decodedResponse{}, fmt.Errorf("decode response envelope: %w", err)
	}
	return decodedResponse{shape: shapeEnvelope, envelope: &env}, nil
}

// result returns the payload, or the application error of a failed envelope.
func (d decodedResponse) result() (json.RawMessage, error) {
	if d.shape == shapeRaw {
		return d.payload, nil
	}
	if d.envelope.Success {
		return d.envelope.Data, nil
	}
	return nil, errorFromEnvelope(d.envelope)
}

func isEnvelope(probe map[string]json.RawMessage) bool {
	success, ok := probe["success"]
	if !ok {
		return false
	}
	switch string(bytes.TrimSpace(success)) {
	case "false":
		return true
	case "true":
	default:
		return false
	}
	for key := range probe {
		if !envelopeKeys[key] {
			return false
		}
	}
	return true
}

// errorFromEnvelope converts a success:false envelope into an APIError.
func errorFromEnvelope(env *envelope) *APIError {
	message := env.Message
	code := ""
	if env.Error != nil {
		code = env.Error.Code
		if env.Error.Message != "" {
			message = env.Error.Message
		}
	}
	if message == "" {
		message = defaultErrorMessage
	}
	return &APIError{
		Class:             classifyEnvelopeCode(code),
		Message:           message,
		Code:              code,
		RetryAfterSeconds: retryAfterForCode(code),
	}
}

func retryAfterForCode(code string) int {
	if classifyEnvelopeCode(code) == ClassRateLimited {
		return DefaultRetryAfterSeconds
	}
	return 0
}

// extractErrorDetails pulls a message and code out of an error response body.
// Recognized forms: an envelope, {"error": {...}|"..."}, {"message": "..."}, {"detail": "..."}.
func extractErrorDetails(body []byte) (message, code string) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return strings.TrimSpace(string(truncate(trimmed, 200))), ""
	}

	var aux struct {
		Error   *envelopeError  `json:"error"`
		Message string          `json:"message"`
		Detail  json.RawMessage `json:"detail"`
		Code    json.RawMessage `json:"code"`
	}
	if err := json.Unmarshal(trimmed, &aux); err != nil {
		return "", ""
	}

	code = rawText(aux.Code)
	switch {
	case aux.Error != nil && aux.Error.Message != "":
		message = aux.Error.Message
	case aux.Message != "":
		message = aux.Message
	case len(aux.Detail) > 0:
		message = rawText(aux.Detail)
	}
	if aux.Error != nil && aux.Error.Code != "" {
		code = aux.Error.Code
	}
	return message, code
}

// rawText renders a JSON scalar as text: strings are unquoted, other values kept verbatim.
func rawText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	return string(trimmed)
}

// truncate cuts b to at most n bytes without splitting a UTF-8 sequence.
func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	for n > 0 && !utf8.RuneStart(b[n]) {
		n--
	}
	return b[:n]
}
