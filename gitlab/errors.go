package gitlab

import (
	"errors"
	"fmt"
)

// Code classifies the outcome of an identity lookup. Codes cross the RPC
// boundary verbatim; the NSS shim switches on them to pick an nss_status.
type Code string

const (
	CodeOK                  Code = "ok"
	CodeNotFound            Code = "not_found"
	CodeAuthenticationError Code = "authentication_error"
	CodeGenericError        Code = "generic_error"
	CodeServerError         Code = "server_error"
	CodeResponseFormatError Code = "response_format_error"
)

// Error is a classified upstream failure.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

// NewError builds a classified error.
func NewError(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the classification from err. A nil err is CodeOK; errors
// that carry no classification (transport failures and the like) map to
// CodeGenericError.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeGenericError
}
