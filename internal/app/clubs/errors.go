package clubs

import "net/http"

// Error is an application-layer error that can be mapped to an HTTP response.
//
// Errors compare equal under errors.Is when their Codes match, so callers can test
// against the exported values below even when Details differ.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t == nil || e == nil {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrClubDoesNotExist  = &Error{Status: http.StatusNotFound, Code: "CLUB_DOES_NOT_EXIST", Message: "club does not exist"}
	ErrNotOwner          = &Error{Status: http.StatusForbidden, Code: "NOT_OWNER", Message: "caller is not the club owner"}
	ErrTooManyTokens     = &Error{Status: http.StatusUnprocessableEntity, Code: "TOO_MANY_TOKENS", Message: "payment exceeds the maximum prepayment"}
	ErrInsufficientFunds = &Error{Status: http.StatusConflict, Code: "INSUFFICIENT_FUNDS", Message: "insufficient funds"}
	ErrUnauthorized      = &Error{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: "caller identity required"}
	ErrInvalidAmount     = &Error{Status: http.StatusUnprocessableEntity, Code: "VALIDATION_ERROR", Message: "invalid amount"}
)

// errPrivilege is ErrUnauthorized for a caller that is identified but lacks the required privilege.
var errPrivilege = &Error{Status: http.StatusForbidden, Code: ErrUnauthorized.Code, Message: "administrative privilege required"}

func withDetails(base *Error, details map[string]any) *Error {
	out := *base
	out.Details = details
	return &out
}
