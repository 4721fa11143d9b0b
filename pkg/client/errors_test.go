package client

import (
	"errors"
	"strings"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   ErrorClass
	}{
		{name: "429 is rate limit", status: 429, want: ErrorClassRateLimit},
		{name: "401 is auth", status: 401, want: ErrorClassAuth},
		{name: "404 is client", status: 404, want: ErrorClassClient},
		{name: "400 is client", status: 400, want: ErrorClassClient},
		{name: "500 is server", status: 500, want: ErrorClassServer},
		{name: "503 is server", status: 503, want: ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyStatus(tt.status); got != tt.want {
				t.Errorf("classifyStatus(%d) = %s, want %s", tt.status, got, tt.want)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	err := &APIError{StatusCode: 503, Class: ErrorClassServer, Message: "Service Unavailable"}
	if !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "server") {
		t.Errorf("Error() = %q, want status and class in message", err.Error())
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &APIError{StatusCode: 500, Class: ErrorClassServer, Message: "x", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("Error() = %q, want wrapped error in message", err.Error())
	}
}
