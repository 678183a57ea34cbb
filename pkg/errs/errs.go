// Package errs implements the wire-visible error taxonomy of spec §7: a
// small closed set of status codes that cross the RPC boundary, separate
// from the richer Go errors backends and the registry return internally.
package errs

import (
	"errors"
	"fmt"
)

// Status is a wire-visible status code. Zero (Success) means the
// operation completed normally; all other values are negative, matching
// the "positive = success = 0, negatives listed" convention of spec §7.
type Status int32

const (
	Success Status = 0

	Allocation       Status = -1
	InvalidArg       Status = -2
	Fabric           Status = -3
	DbCreate         Status = -4
	DbName           Status = -5
	UnknownDb        Status = -6
	UnknownProvider  Status = -7
	Put              Status = -8
	UnknownKey       Status = -9
	Size             Status = -10
	Erase            Status = -11
	Migration        Status = -12
	OpNotImpl        Status = -13
	CompFunc         Status = -14
	FileMove         Status = -15
	Task             Status = -16
	KeyExists        Status = -17
)

// messages holds the exact wire-visible error strings of spec §7.
var messages = map[Status]string{
	Success:         "",
	Allocation:      "Allocation error",
	InvalidArg:      "Invalid argument",
	Fabric:          "Fabric error",
	DbCreate:        "Could not create database",
	DbName:          "Invalid database name",
	UnknownDb:       "Invalid database id",
	UnknownProvider: "Invalid provider id",
	Put:             "Error writing in the database",
	UnknownKey:      "Unknown key",
	Size:            "Provided buffer size too small",
	Erase:           "Error erasing from the database",
	Migration:       "Migration error",
	OpNotImpl:       "Function not implemented",
	CompFunc:        "Invalid comparison function",
	FileMove:        "File-move error",
	Task:            "Task error",
	KeyExists:       "Key exists",
}

// String returns the wire-visible message for the status, or a generic
// fallback for an unrecognized value.
func (s Status) String() string {
	if m, ok := messages[s]; ok {
		return m
	}
	return fmt.Sprintf("unknown status %d", int32(s))
}

// OK reports whether the status represents successful completion.
func (s Status) OK() bool {
	return s == Success
}

// Error is a Go error carrying a wire Status plus the underlying cause
// (never sent over the wire itself, just logged server-side).
type Error struct {
	Status Status
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Status, e.Cause)
	}
	return e.Status.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// New wraps a Status with no further context.
func New(s Status) *Error {
	return &Error{Status: s}
}

// Wrap attaches a Status to an underlying Go error.
func Wrap(s Status, cause error) *Error {
	if cause == nil {
		return New(s)
	}
	return &Error{Status: s, Cause: cause}
}

// StatusOf extracts the wire Status from an error, defaulting to Fabric
// for any error that did not originate from this package (the engine
// should never let a raw Go error escape to the wire uncategorized, but a
// safe default avoids leaking plain Go errors to clients).
func StatusOf(err error) Status {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return Fabric
}
