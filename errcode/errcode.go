package errcode

import "errors"

// Code is a stable, caller-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	Busy          Code = "busy"
	InvalidParams Code = "invalid_params"

	Timeout     Code = "timeout"
	NAKReceived Code = "nak_received"
	Collision   Code = "collision"
	RxOverflow  Code = "rx_overflow"
	BusFault    Code = "bus_fault"

	UnknownBus   Code = "unknown_bus"
	BusInUse     Code = "bus_in_use"
	QueueFull    Code = "queue_full"
	QueueClosed  Code = "queue_closed"
	Aborted      Code = "aborted"
	OutOfRange   Code = "out_of_range"
	WriteTimeout Code = "write_timeout"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, walking wrap chains, defaulting to
// Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	var x interface{ Code() Code }
	if errors.As(err, &x) {
		return x.Code()
	}
	return Error
}
