package corpus

import (
	"errors"
	"strings"
	"testing"
)

func TestLookupErrorWrapsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := NewLookupError("apa itu air", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is(%v, cause) = false, want true", err)
	}

	var lookupErr *LookupError
	if !errors.As(err, &lookupErr) {
		t.Fatal("expected *LookupError")
	}
	if lookupErr.Query != "apa itu air" {
		t.Fatalf("query = %q, want %q", lookupErr.Query, "apa itu air")
	}
	if !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("error = %q, want cause text", err.Error())
	}
}

func TestLookupErrorWithoutCause(t *testing.T) {
	t.Parallel()

	err := &LookupError{Query: "x"}
	if got := err.Error(); got != `corpus lookup "x" failed` {
		t.Fatalf("Error() = %q", got)
	}
	if err.Unwrap() != nil {
		t.Fatal("expected nil cause")
	}
}
