package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestAppErrorMessage(t *testing.T) {
	err := New(ErrorTypeInvalid, "bad writer")
	if err.Error() != "bad writer" {
		t.Errorf("Error() = %q", err.Error())
	}

	wrapped := WrapWithType(stderrors.New("boom"), ErrorTypeInternal, "build failed")
	if wrapped.Error() != "build failed: boom" {
		t.Errorf("Error() = %q", wrapped.Error())
	}

	if New(ErrorTypeConflict, "").Error() != "conflict" {
		t.Error("empty message should fall back to the type")
	}
}

func TestIsMatchesByType(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NewNotFound("logger", "app"))

	if !IsNotFound(err) {
		t.Error("IsNotFound should see through fmt.Errorf wrapping")
	}
	if IsType(err, ErrorTypeInvalid) {
		t.Error("not-found error must not match invalid")
	}
	if IsNotFound(stderrors.New("plain")) {
		t.Error("plain errors are never not-found")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil) != nil {
		t.Error("FromError(nil) should be nil")
	}

	app := NewInvalid("name", "", "required")
	if FromError(fmt.Errorf("x: %w", app)) != app {
		t.Error("FromError should unwrap to the original AppError")
	}

	plain := stderrors.New("plain")
	got := FromError(plain)
	if got.Type != ErrorTypeUnknown || got.InnerError != plain {
		t.Errorf("unexpected conversion: %+v", got)
	}
}

func TestWrapKeepsType(t *testing.T) {
	err := Wrap(NewNotFound("service", "db"), "resolve db")
	if err.Type != ErrorTypeNotFound {
		t.Errorf("Type = %s, want not_found", err.Type)
	}
	if Wrap(nil, "x") != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestDetails(t *testing.T) {
	err := NewNotFound("logger", "app")
	if err.Details["resource"] != "logger" || err.Details["id"] != "app" {
		t.Errorf("unexpected details: %v", err.Details)
	}
}
