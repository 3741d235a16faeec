package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestNewCollapsesForeignCodes(t *testing.T) {
	err := WebSocket(CodeUnauthorized, "nope")
	if err.Code != CodeUnknown {
		t.Fatalf("code = %s, want %s", err.Code, CodeUnknown)
	}
	if local := Local(CodeNoData, "empty"); local.Code != CodeNoData {
		t.Fatalf("code = %s, want %s", local.Code, CodeNoData)
	}
}

func TestIsMatchesKindAndCode(t *testing.T) {
	err := fmt.Errorf("dial: %w", HTTP(CodeNoInternet, "offline"))
	if !stderrors.Is(err, HTTP(CodeNoInternet, "")) {
		t.Fatal("expected wrapped error to match by kind and code")
	}
	if stderrors.Is(err, WebSocket(CodeUnknown, "")) {
		t.Fatal("expected kind mismatch to fail")
	}
}

func TestTerminal(t *testing.T) {
	tests := []struct {
		err  *Error
		want bool
	}{
		{HTTP(CodeUnauthorized, ""), true},
		{HTTP(CodeUnknown, ""), true},
		{WebSocket(CodeSerialization, ""), false},
		{Local(CodeNoData, ""), false},
	}
	for _, tt := range tests {
		if got := tt.err.Terminal(); got != tt.want {
			t.Fatalf("%s terminal = %v, want %v", tt.err.MessageKey(), got, tt.want)
		}
	}
}

func TestAsNormalizesForeignErrors(t *testing.T) {
	cause := stderrors.New("boom")
	got := As(cause)
	if got.Kind != KindWebSocket || got.Code != CodeUnknown {
		t.Fatalf("got %s, want WEBSOCKET_UNKNOWN", got.MessageKey())
	}
	if !stderrors.Is(got, cause) {
		t.Fatal("expected cause to be preserved")
	}
	if As(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestWrapUnwraps(t *testing.T) {
	cause := stderrors.New("eof")
	err := Wrap(KindHTTP, CodeServerError, "server failed", cause)
	if stderrors.Unwrap(err) != cause {
		t.Fatal("expected unwrap to return cause")
	}
	if err.Error() != "server failed" {
		t.Fatalf("message = %q", err.Error())
	}
	if HTTP(CodeForbidden, "").Error() != "HTTP FORBIDDEN" {
		t.Fatalf("unexpected default message")
	}
}
