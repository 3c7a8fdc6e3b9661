package cells

import (
	"errors"
	"fmt"
)

// ProtocolError reports a render-unit contract breach: the set or order
// of cell primitive calls changed between invocations without a remount,
// a body re-scheduled itself past the re-render bound, or a primitive was
// used outside a render body.
//
// Protocol errors are fatal to the evaluation that raised them and are
// surfaced to its caller; they are never silently recovered, because they
// indicate a bug in the render unit, not in the engine.
type ProtocolError struct {
	// Code identifies the violation category.
	Code ProtocolErrorCode

	// Message is a human-readable description.
	Message string

	// Unit names the render unit whose evaluation failed.
	Unit string
}

// ProtocolErrorCode categorizes protocol violations.
type ProtocolErrorCode string

const (
	// ErrCodeFewerCells indicates the body visited fewer cells than the
	// committed list holds.
	ErrCodeFewerCells ProtocolErrorCode = "FEWER_CELLS_THAN_EXPECTED"

	// ErrCodeMoreCells indicates the body visited more cells than the
	// committed list holds.
	ErrCodeMoreCells ProtocolErrorCode = "MORE_CELLS_THAN_EXPECTED"

	// ErrCodeCellKindMismatch indicates a primitive call found a cell of
	// a different primitive kind at its position.
	ErrCodeCellKindMismatch ProtocolErrorCode = "CELL_KIND_MISMATCH"

	// ErrCodeTooManyRerenders indicates the body kept issuing
	// render-phase updates past the re-render bound.
	ErrCodeTooManyRerenders ProtocolErrorCode = "TOO_MANY_RERENDERS"

	// ErrCodeCellOutsideRender indicates a cell primitive was called
	// while no render body was being evaluated.
	ErrCodeCellOutsideRender ProtocolErrorCode = "CELL_OUTSIDE_RENDER"

	// ErrCodeUninitializedLog indicates a drain was attempted on a cell
	// with no update log.
	ErrCodeUninitializedLog ProtocolErrorCode = "UNINITIALIZED_LOG"
)

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Unit != "" {
		return fmt.Sprintf("%s: %s (unit=%s)", e.Code, e.Message, e.Unit)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsProtocolError reports whether err is (or wraps) a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// ProtocolCode extracts the violation code from err, or "" when err is
// not a protocol error.
func ProtocolCode(err error) ProtocolErrorCode {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

func protocolErr(code ProtocolErrorCode, unit, format string, args ...any) *ProtocolError {
	return &ProtocolError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Unit:    unit,
	}
}
