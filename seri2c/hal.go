// Package seri2c implements a non-blocking I2C master transaction engine.
//
// The engine owns one protocol state machine per managed bus and touches
// hardware only through the HAL hooks injected at construction. A task is
// started with one of the Begin calls and then driven to completion by
// repeated Service calls from the caller's scheduler; Service never blocks
// and performs at most one unit of protocol progress per invocation.
package seri2c

// HAL is the set of hardware hooks the engine drives a bus through. All of
// them are mandatory; the per-category error checks are optional and are
// declared separately (see NAKDetector and friends).
//
// Hooks are called from the same context that calls Begin/Service and must
// not block.
type HAL interface {
	// Readiness.
	TxReady() bool
	RxReady() bool

	// Byte I/O.
	WriteTx(b byte)
	ReadRx() byte

	// Condition control, each paired with its completion check.
	SendStart()
	StartDone() bool
	SendRestart()
	RestartDone() bool
	SendStop()
	StopDone() bool

	// Acknowledgement. SendACK is paired with ACKSent; SendNAK has no
	// completion check because a NAK always precedes the stop condition.
	// ACKReceived reports the slave's answer to the last transmitted byte.
	SendACK()
	ACKSent() bool
	SendNAK()
	ACKReceived() bool

	// Lifecycle.
	ClearErrors()
	EnableRx(lastByte bool)
	NewTaskReset()
}

// Optional per-category error checks. A HAL that implements one of these
// gets it polled on every Service call; a HAL that does not is assumed to
// never raise that error class.

// NAKDetector reports a hardware-latched NAK condition.
type NAKDetector interface {
	NAKError() bool
}

// CollisionDetector reports bus-level arbitration loss.
type CollisionDetector interface {
	CollisionError() bool
}

// OverflowDetector reports a receive buffer overrun.
type OverflowDetector interface {
	OverflowError() bool
}

// FaultDetector reports any additional hardware error condition.
type FaultDetector interface {
	FaultError() bool
}

func noError() bool { return false }

// resolveDetectors picks up the optional checks a HAL implements and
// substitutes "no error" for the rest.
func resolveDetectors(hal HAL) (nak, collision, overflow, fault func() bool) {
	nak, collision, overflow, fault = noError, noError, noError, noError
	if d, ok := hal.(NAKDetector); ok {
		nak = d.NAKError
	}
	if d, ok := hal.(CollisionDetector); ok {
		collision = d.CollisionError
	}
	if d, ok := hal.(OverflowDetector); ok {
		overflow = d.OverflowError
	}
	if d, ok := hal.(FaultDetector); ok {
		fault = d.FaultError
	}
	return nak, collision, overflow, fault
}
