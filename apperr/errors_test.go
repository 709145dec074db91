package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestSanitizeAuthMessage(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Firebase: Error (auth/invalid-credential).", "Error (invalid-credential)."},
		{"auth/email-already-in-use", "email-already-in-use"},
		{"invalid credentials", "invalid credentials"},
	}
	for _, tt := range tests {
		if got := SanitizeAuthMessage(tt.in); got != tt.want {
			t.Errorf("SanitizeAuthMessage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAsFindsWrappedError(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("update issue: %w", Mutation("Failed to update issue", cause))

	ae, ok := As(err)
	if !ok {
		t.Fatal("expected As to find the wrapped *Error")
	}
	if ae.Kind != KindMutation || ae.Status != http.StatusInternalServerError {
		t.Errorf("got kind %q status %d", ae.Kind, ae.Status)
	}
	if !errors.Is(err, cause) {
		t.Error("expected the cause to stay reachable through Unwrap")
	}
}

func TestAuthUsesSanitizedMessage(t *testing.T) {
	ae := Auth(errors.New("Firebase: auth/wrong-password"))
	if ae.Message != "wrong-password" {
		t.Errorf("Message = %q", ae.Message)
	}
	if ae.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d", ae.Status)
	}
}

func TestUploadDefaultsMessage(t *testing.T) {
	if got := Upload("", nil).Message; got != "Upload failed" {
		t.Errorf("Message = %q", got)
	}
}
