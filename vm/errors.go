package vm

import (
	"fmt"
)

// ErrorCode represents different types of paging errors
type ErrorCode int

const (
	// Generic errors
	ErrCodeUnknown ErrorCode = iota
	ErrCodeInternal

	// Frame errors
	ErrCodeNoPhysicalMemory
	ErrCodeFrameBusy
	ErrCodeFramePinned

	// Descriptor errors
	ErrCodeNoDescriptor
	ErrCodeDescriptorExists
	ErrCodeAlreadyResident

	// Swap errors
	ErrCodeSwapFull
	ErrCodeBadSlot
	ErrCodeSwapReadFailed
	ErrCodeSwapWriteFailed
	ErrCodeSlotCorrupted

	// Fault errors
	ErrCodeBadAccess
	ErrCodePopulateFailed
)

// VMError represents a paging-core error with context
type VMError struct {
	Code ErrorCode
	Message string
	Op string // Operation that failed
	Err error // Underlying error (if any)
}

// Error implements the error interface
func (e *VMError) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *VMError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches a specific error code
func (e *VMError) Is(target error) bool {
	if t, ok := target.(*VMError); ok {
		return e.Code == t.Code
	}
	return false
}

// NewVMError creates a new paging error
func NewVMError(code ErrorCode, op, message string, err error) *VMError {
	return &VMError{
		Code: code,
		Message: message,
		Op: op,
		Err: err,
	}
}

// Helper functions for common errors

func ErrNoPhysicalMemory(op string) *VMError {
	return NewVMError(
		ErrCodeNoPhysicalMemory,
		op,
		"physical memory pool exhausted",
		nil,
	)
}

func ErrNoDescriptor(op string, vaddr uintptr) *VMError {
	return NewVMError(
		ErrCodeNoDescriptor,
		op,
		fmt.Sprintf("no descriptor for virtual address %#x", vaddr),
		nil,
	)
}

func ErrDescriptorExists(op string, vaddr uintptr) *VMError {
	return NewVMError(
		ErrCodeDescriptorExists,
		op,
		fmt.Sprintf("descriptor for virtual address %#x already exists", vaddr),
		nil,
	)
}

func ErrSwapFull(op string) *VMError {
	return NewVMError(
		ErrCodeSwapFull,
		op,
		"no free swap slots",
		nil,
	)
}

func ErrBadSlot(op string, slot SlotID) *VMError {
	return NewVMError(
		ErrCodeBadSlot,
		op,
		fmt.Sprintf("invalid swap slot %d", slot),
		nil,
	)
}

func ErrSlotCorrupted(op string, slot SlotID) *VMError {
	return NewVMError(
		ErrCodeSlotCorrupted,
		op,
		fmt.Sprintf("checksum mismatch reading swap slot %d", slot),
		nil,
	)
}

func ErrSwapReadIO(op string, slot SlotID, err error) *VMError {
	return NewVMError(
		ErrCodeSwapReadFailed,
		op,
		fmt.Sprintf("swap read on slot %d failed", slot),
		err,
	)
}

func ErrSwapWriteIO(op string, slot SlotID, err error) *VMError {
	return NewVMError(
		ErrCodeSwapWriteFailed,
		op,
		fmt.Sprintf("swap write on slot %d failed", slot),
		err,
	)
}

func ErrPopulateFailed(op string, vaddr uintptr, err error) *VMError {
	return NewVMError(
		ErrCodePopulateFailed,
		op,
		fmt.Sprintf("failed to populate page %#x", vaddr),
		err,
	)
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	if ve, ok := err.(*VMError); ok {
		return ve.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrCodeUnknown
func GetErrorCode(err error) ErrorCode {
	if ve, ok := err.(*VMError); ok {
		return ve.Code
	}
	return ErrCodeUnknown
}
