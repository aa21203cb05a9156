package protocol

import (
	"errors"
	"fmt"
	"testing"

	"whiteout.ai/internal/sim/interact"
	"whiteout.ai/internal/sim/ledger"
)

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrSessionBusy,
		ErrBadRequest,
		ErrNoPermission,
		ErrNoResource,
		ErrOutOfRange,
		ErrInvalidTarget,
		ErrRateLimit,
		ErrGameOver,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestIsKnownCode_CoversDeniedReasons(t *testing.T) {
	errs := []error{
		ledger.ErrInsufficientResources,
		interact.ErrOutOfRange,
		interact.ErrOutOfBounds,
		interact.ErrPlayerDown,
		interact.ErrUnknownBuilding,
		interact.ErrUnknownEntity,
		interact.ErrNoTransaction,
		interact.ErrNotConstructible,
		interact.ErrCapacity,
		interact.ErrFullHealth,
		fmt.Errorf("wrapped: %w", interact.ErrCapacity),
		errors.New("something else"),
	}
	for _, err := range errs {
		if code := interact.Reason(err); !IsKnownCode(code) {
			t.Fatalf("reason %q for %v is not a wire code", code, err)
		}
	}
}
