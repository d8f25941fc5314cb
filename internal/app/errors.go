package app

import "fmt"

// DomainError is the error type the service layer returns for expected
// failures: validation problems, missing rounds or comments, and workflow
// transitions attempted from the wrong state. Status is the HTTP status the
// handler layer should write; Details carries optional structured context
// such as the id of a conflicting active round.
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
