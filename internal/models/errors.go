package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies session failures
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindDevice      ErrorKind = "device"
	KindPersistence ErrorKind = "persistence"
	KindNetwork     ErrorKind = "network"
	KindParse       ErrorKind = "parse"
)

// ErrBusy is returned when a top-level operation is attempted while another one is pending
var ErrBusy = errors.New("another operation is in progress")

// ValidationError is returned when a submission has neither prompt text nor images
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Kind() ErrorKind { return KindValidation }

// DeviceError covers camera acquisition and snapshot failures
type DeviceError struct {
	Message string
	Err     error
}

func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DeviceError) Unwrap() error   { return e.Err }
func (e *DeviceError) Kind() ErrorKind { return KindDevice }

// PersistenceError is logged and never surfaced to the user
type PersistenceError struct {
	Op  string
	ID  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("persistence %s failed for %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error   { return e.Err }
func (e *PersistenceError) Kind() ErrorKind { return KindPersistence }

// NetworkError covers transport failures and non-2xx responses from the analysis service.
// StatusCode is zero when no response was received.
type NetworkError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("analysis service returned status %d", e.StatusCode)
}

func (e *NetworkError) Unwrap() error   { return e.Err }
func (e *NetworkError) Kind() ErrorKind { return KindNetwork }

// ParseError is returned when a response body is not valid JSON
type ParseError struct {
	Excerpt string
	Err     error
}

func (e *ParseError) Error() string {
	return "Server returned invalid JSON: " + e.Excerpt
}

func (e *ParseError) Unwrap() error   { return e.Err }
func (e *ParseError) Kind() ErrorKind { return KindParse }

// KindOf reports the classification of err, or "" for unclassified errors
func KindOf(err error) ErrorKind {
	var k interface{ Kind() ErrorKind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return ""
}
