package authority

import (
	"errors"
	"fmt"
)

var ErrInvalidJSON = errors.New("invalid JSON format")

// RequestError means the authority could not be reached or answered with something
// other than a usable response.
type RequestError struct {
	Op         string
	StatusCode int
	Detail     string
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Detail)
	default:
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
}

func (e *RequestError) Unwrap() error { return e.Err }

// RejectionError is the authority refusing a booking. Detail is empty when the
// response carried no readable reason.
type RejectionError struct {
	StatusCode int
	Detail     string
}

func (e *RejectionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("booking rejected (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("booking rejected (status %d): %s", e.StatusCode, e.Detail)
}
