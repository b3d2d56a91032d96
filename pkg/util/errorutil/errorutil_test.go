package errorutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestToDomainErrorMapsNoRows(t *testing.T) {
	err := ToDomainError(fmt.Errorf("load: %w", pgx.ErrNoRows))
	if err.Code != CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %s", err.Code)
	}
}

func TestToDomainErrorKeepsDomainErrors(t *testing.T) {
	original := NewPreconditionFailed("already done", map[string]any{"status": "DONE"})
	wrapped := fmt.Errorf("accept: %w", original)
	got := ToDomainError(wrapped)
	if got.Code != CodePreconditionFailed || got.Details["status"] != "DONE" {
		t.Fatalf("unexpected conversion %+v", got)
	}
	if !HasCode(wrapped, CodePreconditionFailed) {
		t.Fatalf("HasCode should see through wrapping")
	}
}

func TestInternalErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewInternalError(cause)
	if !errors.Is(err, cause) {
		t.Fatalf("internal error should unwrap to its cause")
	}
	if ToDomainError(nil) != nil {
		t.Fatalf("nil error should stay nil")
	}
}
