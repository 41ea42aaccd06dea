package vm

import (
	"errors"
	"fmt"
	"testing"
)

// TestErrorFormatting tests the error string layout
func TestErrorFormatting(t *testing.T) {
	err := ErrBadSlot("ReadIn", SlotID(7))
	want := "ReadIn: invalid swap slot 7"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}

	wrapped := ErrSwapWriteIO("WriteOut", SlotID(3), fmt.Errorf("disk on fire"))
	if wrapped.Error() != "WriteOut: swap write on slot 3 failed: disk on fire" {
		t.Errorf("Unexpected wrapped format: %q", wrapped.Error())
	}
}

// TestSwapIOErrorCodes tests that read and write failures carry their
// own codes
func TestSwapIOErrorCodes(t *testing.T) {
	cause := fmt.Errorf("io error")

	if got := GetErrorCode(ErrSwapReadIO("ReadIn", SlotID(1), cause)); got != ErrCodeSwapReadFailed {
		t.Errorf("Read failure should carry the read code, got %d", got)
	}
	if got := GetErrorCode(ErrSwapWriteIO("WriteOut", SlotID(1), cause)); got != ErrCodeSwapWriteFailed {
		t.Errorf("Write failure should carry the write code, got %d", got)
	}
}

// TestErrorCodes tests code matching through IsErrorCode and errors.Is
func TestErrorCodes(t *testing.T) {
	err := ErrSwapFull("WriteOut")

	if !IsErrorCode(err, ErrCodeSwapFull) {
		t.Error("IsErrorCode should match the swap-full code")
	}
	if IsErrorCode(err, ErrCodeBadSlot) {
		t.Error("IsErrorCode should not match a different code")
	}
	if GetErrorCode(err) != ErrCodeSwapFull {
		t.Error("GetErrorCode should return the swap-full code")
	}
	if GetErrorCode(fmt.Errorf("plain")) != ErrCodeUnknown {
		t.Error("Non-VM errors should map to the unknown code")
	}

	if !errors.Is(err, &VMError{Code: ErrCodeSwapFull}) {
		t.Error("errors.Is should match by code")
	}
}

// TestErrorUnwrap tests cause propagation
func TestErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("short read")
	err := ErrPopulateFailed("populate", 0x1000, cause)

	if !errors.Is(err, cause) {
		t.Error("Wrapped cause should be reachable through errors.Is")
	}
}
