package modules

import (
	"errors"
	"net/http"

	"mpachain/core"
	"mpachain/core/state"
	nativecommon "mpachain/native/common"
	"mpachain/native/mpa"
)

const (
	CodeInvalidParams = -32602
	CodeServerError   = -32000
	CodeNotFound      = -32022
	CodeForbidden     = -32023
	CodeConflict      = -32024
)

type ModuleError struct {
	HTTPStatus int
	Code       int
	Message    string
	Data       interface{}
}

func (e *ModuleError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidParams(message string, data interface{}) *ModuleError {
	return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: CodeInvalidParams, Message: message, Data: data}
}

// ErrorFrom maps a node or engine error onto its RPC error code. Causes are
// checked before the generic revert wrapper so a reverted unauthorised call
// still reports as forbidden.
func ErrorFrom(err error, data interface{}) *ModuleError {
	if err == nil {
		return nil
	}
	if data == nil {
		data = err.Error()
	}
	switch {
	case core.IsNotFound(err), errors.Is(err, core.ErrUnknownAccount):
		return &ModuleError{HTTPStatus: http.StatusNotFound, Code: CodeNotFound, Message: "not_found", Data: data}
	case errors.Is(err, mpa.ErrUnauthorized):
		return &ModuleError{HTTPStatus: http.StatusForbidden, Code: CodeForbidden, Message: "forbidden", Data: data}
	case errors.Is(err, mpa.ErrInvalidBeneficiaries),
		errors.Is(err, mpa.ErrInvalidShares),
		errors.Is(err, mpa.ErrInvalidName),
		errors.Is(err, mpa.ErrInvalidDescription),
		errors.Is(err, mpa.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidTransaction),
		errors.Is(err, core.ErrInvalidChainID):
		return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: CodeInvalidParams, Message: "invalid_params", Data: data}
	case errors.Is(err, mpa.ErrFrozen),
		errors.Is(err, mpa.ErrLocked),
		errors.Is(err, mpa.ErrFactoryExists),
		errors.Is(err, mpa.ErrInsufficientBalance),
		errors.Is(err, state.ErrInsufficientBalance),
		errors.Is(err, nativecommon.ErrModulePaused),
		errors.Is(err, nativecommon.ErrQuotaRequestsExceeded),
		errors.Is(err, core.ErrInvalidNonce),
		errors.Is(err, core.ErrExecutionReverted):
		return &ModuleError{HTTPStatus: http.StatusConflict, Code: CodeConflict, Message: "conflict", Data: data}
	default:
		return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: CodeServerError, Message: "internal_error", Data: data}
	}
}
