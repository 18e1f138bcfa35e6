// Package types holds the JSON envelopes shared by every HTTP response.
package types

// SuccessEnvelope wraps API payloads as {"data": ...}.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error body. Code is a pkg/errors code string.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// WebhookAck is returned to billing providers for every delivery the
// service accepted, including duplicates and ignored event types.
type WebhookAck struct {
	Received bool `json:"received"`
}
