package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindSurvivesWrapping(t *testing.T) {
	base := Conflict("time slot already booked")
	wrapped := fmt.Errorf("create appointment: %w", base)

	if KindOf(wrapped) != KindConflict {
		t.Fatalf("expected conflict, got %s", KindOf(wrapped))
	}
	if HTTPStatus(wrapped) != http.StatusConflict {
		t.Fatalf("expected 409, got %d", HTTPStatus(wrapped))
	}
	if Message(wrapped) != "time slot already booked" {
		t.Fatalf("unexpected message %q", Message(wrapped))
	}
}

func TestTransientKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Transient("store unavailable", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable through Unwrap")
	}
	if HTTPStatus(err) != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", HTTPStatus(err))
	}
}

func TestPlainErrorsAreInternal(t *testing.T) {
	err := errors.New("boom")
	if HTTPStatus(err) != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", HTTPStatus(err))
	}
	if Message(err) != "internal error" {
		t.Fatalf("internal details leaked: %q", Message(err))
	}
	if Is(nil, KindInternal) {
		t.Fatal("nil error must not match any kind")
	}
}
