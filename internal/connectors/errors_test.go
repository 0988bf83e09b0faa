package connectors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	refused := &url.Error{Op: "Get", URL: "http://x", Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}
	timedOut := &url.Error{Op: "Get", URL: "http://x", Err: timeoutErr{}}

	tests := []struct {
		name string
		in   error
		kind string
	}{
		{"nil", nil, "none"},
		{"deadline", fmt.Errorf("wrap: %w", context.DeadlineExceeded), "timeout"},
		{"client timeout", timedOut, "timeout"},
		{"refused", refused, "connect"},
		{"dns", &net.DNSError{Err: "no such host", Name: "x"}, "connect"},
		{"auth passthrough", &AuthError{StatusCode: 401}, "auth"},
		{"api passthrough", &APIError{StatusCode: 502}, "api"},
		{"parse passthrough", &ParseError{Cause: errors.New("eof")}, "parse"},
		{"plain", errors.New("boom"), "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, Kind(Classify(tt.in)))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "Login failed: HTTP 403", (&AuthError{StatusCode: 403}).Error())
	assert.Equal(t, "API error: HTTP 500", (&APIError{StatusCode: 500}).Error())
	assert.Equal(t, "Connection timeout", (&TimeoutError{}).Error())
	assert.Equal(t, "Connection failed", (&ConnectError{}).Error())
	assert.Equal(t, "Invalid response: eof", (&ParseError{Cause: errors.New("eof")}).Error())
}
