package main

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// NetworkError is a transport failure before a response was received.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %v", e.Err) }

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response. Message is the server's error.message
// when the body carried one, otherwise the raw body.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http error %d", e.Status)
	}
	return fmt.Sprintf("http error %d: %s", e.Status, e.Message)
}

func newHTTPError(status int, body []byte) *HTTPError {
	msg := strings.TrimSpace(string(body))
	if gjson.ValidBytes(body) {
		if m := gjson.GetBytes(body, "error.message"); m.Type == gjson.String && m.Str != "" {
			msg = m.Str
		}
	}
	return &HTTPError{Status: status, Message: msg}
}

// ParseError reports one frame that could not be decoded. Decoding continues.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string { return "parse error: " + e.Message }

// StreamError is a transport failure while reading the response body.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string { return fmt.Sprintf("stream error: %v", e.Err) }

func (e *StreamError) Unwrap() error { return e.Err }

// APIError is an error event sent by the server inside the stream.
type APIError struct {
	Message string
}

func (e *APIError) Error() string { return "api error: " + e.Message }
