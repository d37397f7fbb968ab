package app

import "fmt"

// DomainError is the one error shape the HTTP layer knows how to
// render: Status picks the response code, Code is the stable machine
// string clients switch on ("INVALID_PREFERENCE", "NOT_LINKED",
// "UPSTREAM_AUTH"), and Details optionally carries field-level
// specifics for validation failures.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
