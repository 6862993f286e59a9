package errors

import (
	"fmt"
	"testing"
)

func TestRejectSetsHintFromCode(t *testing.T) {
	tests := []struct {
		code Code
		want RetryHint
	}{
		{code: CodeConcurrency, want: RetryAsIs},
		{code: CodeStateConflict, want: RetryAfterRefetch},
		{code: CodeForbidden, want: RetryNever},
		{code: CodeValidation, want: RetryNever},
	}
	for _, tt := range tests {
		err := Reject(tt.code, ReasonInsufficientStock, "nope")
		rej, ok := err.Details().(Rejection)
		if !ok {
			t.Fatalf("code %s: expected Rejection details, got %T", tt.code, err.Details())
		}
		if rej.Retry != tt.want {
			t.Fatalf("code %s: expected hint %s got %s", tt.code, tt.want, rej.Retry)
		}
		if rej.Applied {
			t.Fatalf("code %s: rejection must report nothing applied", tt.code)
		}
	}
}

func TestReasonOfUnwrapsChain(t *testing.T) {
	base := Reject(CodeStateConflict, ReasonInsufficientRemainingQuantity, "over receipt",
		ItemConflict{ItemID: "li-1", Reason: ReasonInsufficientRemainingQuantity, Requested: 5, Available: 1})
	wrapped := fmt.Errorf("receive: %w", base)

	if got := ReasonOf(wrapped); got != ReasonInsufficientRemainingQuantity {
		t.Fatalf("unexpected reason %q", got)
	}
	if got := ReasonOf(New(CodeInternal, "plain")); got != "" {
		t.Fatalf("expected empty reason for plain error, got %q", got)
	}
	if got := ReasonOf(nil); got != "" {
		t.Fatalf("expected empty reason for nil, got %q", got)
	}
}

func TestInvalidCarriesValidationRejection(t *testing.T) {
	err := InvalidWrap(fmt.Errorf("bad uuid"), "invalid poId", map[string]any{"field": "poId"})
	if err.Code() != CodeValidation {
		t.Fatalf("unexpected code %s", err.Code())
	}
	rej, ok := err.Details().(Rejection)
	if !ok {
		t.Fatalf("expected Rejection details, got %T", err.Details())
	}
	if rej.Reason != ReasonValidation || rej.Applied || rej.Retry != RetryNever {
		t.Fatalf("unexpected rejection %+v", rej)
	}
	if fields, _ := rej.Fields.(map[string]any); fields["field"] != "poId" {
		t.Fatalf("expected field details to survive, got %+v", rej.Fields)
	}
	if got := ReasonOf(Invalid("body required", nil)); got != ReasonValidation {
		t.Fatalf("unexpected reason %q", got)
	}
}
