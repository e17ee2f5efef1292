package main

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&NetworkError{Err: errors.New("dial tcp: refused")}, "network error: dial tcp: refused"},
		{&HTTPError{Status: 500}, "http error 500"},
		{&HTTPError{Status: 429, Message: "rate limited"}, "http error 429: rate limited"},
		{&ParseError{Message: "invalid json: {"}, "parse error: invalid json: {"},
		{&StreamError{Err: io.ErrUnexpectedEOF}, "stream error: unexpected EOF"},
		{&APIError{Message: "Overloaded"}, "api error: Overloaded"},
	}
	for _, tc := range cases {
		assert.EqualError(t, tc.err, tc.want)
	}

	assert.ErrorIs(t, &StreamError{Err: io.ErrUnexpectedEOF}, io.ErrUnexpectedEOF)
}

func TestNewHTTPError(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"anthropic error body", `{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens: too large"}}`, "max_tokens: too large"},
		{"json without message", `{"detail":"nope"}`, `{"detail":"nope"}`},
		{"plain text", "  Bad Gateway\n", "Bad Gateway"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newHTTPError(400, []byte(tc.body))
			assert.Equal(t, 400, e.Status)
			assert.Equal(t, tc.want, e.Message)
		})
	}
}
