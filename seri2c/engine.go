package seri2c

import "drivercode-go/utimer"

// DefaultTimeoutUS is the watchdog applied to new tasks until
// SetTransactionTimeout changes it. 0 disables the watchdog.
const DefaultTimeoutUS = 100_000

// state is the protocol cursor. Condition states come in issue/complete
// pairs and byte writes ping-pong with their ACK-wait states so that every
// Service call performs at most one hardware action.
type state uint8

const (
	stateIdle state = iota
	stateStart        // start issued at Begin, waiting for completion
	stateAddress      // ready to write the next address byte
	stateAddressACK   // address byte in flight, waiting for ACK
	stateRegister     // ready to write the next register byte
	stateRegisterACK  // register byte in flight
	stateDataWrite    // ready to write the next payload byte
	stateDataWriteACK // payload byte in flight
	stateRestartIssue // write phase done, restart not yet issued
	stateRestart      // restart issued, waiting for completion
	stateAddrRead     // restart done, ready to write the read-address byte
	stateAddrReadACK  // read-address byte in flight
	stateDataRead     // receive phase, sub-stepped by rxStep
	stateStopIssue    // transfer done, stop not yet issued
	stateStop         // stop issued, waiting for completion
)

// Receive sub-steps within stateDataRead.
const (
	rxStepEnable  = iota // enable reception of the next byte
	rxStepData           // wait for the byte, read it
	rxStepAnswer         // answer with ACK (or NAK on the last byte)
	rxStepACKDone        // wait for the ACK to go out
)

// Engine drives one I2C bus as master. It is not re-entrant: Begin, Service
// and Abort must all be called from one execution context.
type Engine struct {
	hal                   HAL
	nakErr, collisionErr  func() bool
	overflowErr, faultErr func() bool

	timers    *utimer.Service
	watchdog  utimer.Ticket
	timeoutUS uint32

	st            state
	busy          bool
	repeatedStart bool

	addr      uint16
	tenBit    bool
	addrBuf   [2]byte // initial address phase, write intent unless readPhase
	addrLen   uint8
	addrSent  uint8
	readPhase bool // initial address phase already carries the read bit

	regBuf  [4]byte // register bytes, most significant first
	regLen  uint8
	regSent uint8

	tx     []byte
	txDone int
	rx     []byte
	rxDone int
	rxStep uint8

	flags Flags
}

// New builds an engine for one bus. Both arguments are mandatory; passing
// nil is a construction-time programming error.
func New(hal HAL, timers *utimer.Service) *Engine {
	if hal == nil {
		panic("seri2c: nil HAL")
	}
	if timers == nil {
		panic("seri2c: nil timer service")
	}
	e := &Engine{
		hal:       hal,
		timers:    timers,
		timeoutUS: DefaultTimeoutUS,
	}
	e.nakErr, e.collisionErr, e.overflowErr, e.faultErr = resolveDetectors(hal)
	return e
}

// IsBusy reports whether a task is in flight.
func (e *Engine) IsBusy() bool { return e.busy }

// Flags returns the error set of the current or most recent task.
func (e *Engine) Flags() Flags { return e.flags }

// Err returns the most recent task's outcome as an error, nil on success.
func (e *Engine) Err() error { return e.flags.Err() }

// Transferred reports the byte progress of the current or most recent task.
func (e *Engine) Transferred() (txDone, rxDone int) { return e.txDone, e.rxDone }

// SetTransactionTimeout changes the watchdog duration armed for subsequent
// tasks, in microseconds. 0 disables the watchdog.
func (e *Engine) SetTransactionTimeout(us uint32) { e.timeoutUS = us }

// BeginWrite starts a plain write task. Returns false while busy.
func (e *Engine) BeginWrite(addr uint16, tx []byte) bool {
	return e.begin(addr, 0, 0, tx, nil)
}

// BeginRead starts a plain read task. Returns false while busy or when rx
// is empty (the protocol has no zero-length read).
func (e *Engine) BeginRead(addr uint16, rx []byte) bool {
	if len(rx) == 0 {
		return false
	}
	return e.begin(addr, 0, 0, nil, rx)
}

// BeginWriteRead starts a combined write-then-read task with a repeated
// start between the phases.
func (e *Engine) BeginWriteRead(addr uint16, tx, rx []byte) bool {
	if len(rx) == 0 {
		return false
	}
	return e.begin(addr, 0, 0, tx, rx)
}

// BeginRegisterWrite starts a write task preceded by regLen register
// address bytes (1..4, most significant first).
func (e *Engine) BeginRegisterWrite(addr uint16, reg uint32, regLen int, tx []byte) bool {
	if regLen < 1 || regLen > 4 {
		return false
	}
	return e.begin(addr, reg, regLen, tx, nil)
}

// BeginRegisterRead starts a register-addressed read: regLen register bytes
// are written, then a repeated start switches the bus to the read phase.
func (e *Engine) BeginRegisterRead(addr uint16, reg uint32, regLen int, rx []byte) bool {
	if regLen < 1 || regLen > 4 {
		return false
	}
	if len(rx) == 0 {
		return false
	}
	return e.begin(addr, reg, regLen, nil, rx)
}

func (e *Engine) begin(addr uint16, reg uint32, regLen int, tx, rx []byte) bool {
	if e.busy {
		return false
	}

	e.tenBit = addr > 0x7F
	if e.tenBit {
		e.addr = addr & 0x3FF
	} else {
		e.addr = addr & 0x7F
	}

	e.flags = 0
	e.repeatedStart = false
	e.tx = tx
	e.txDone = 0
	e.rx = rx
	e.rxDone = 0
	e.rxStep = rxStepEnable
	e.regLen = uint8(regLen)
	e.regSent = 0
	for i := 0; i < regLen; i++ {
		e.regBuf[i] = byte(reg >> (8 * uint(regLen-1-i)))
	}

	// A 7-bit task with neither write payload nor register phase addresses
	// the slave with the read bit straight away; every other shape starts
	// with write intent.
	e.readPhase = !e.tenBit && regLen == 0 && len(tx) == 0 && len(rx) > 0
	e.buildAddressPhase()

	e.watchdog = e.timers.NewTicket(e.timeoutUS)
	e.hal.ClearErrors()
	e.hal.NewTaskReset()
	e.hal.SendStart()
	e.st = stateStart
	e.busy = true
	return true
}

// buildAddressPhase fills addrBuf for the initial address phase.
func (e *Engine) buildAddressPhase() {
	if e.tenBit {
		e.addrBuf[0] = tenBitHigh(e.addr, false)
		e.addrBuf[1] = byte(e.addr)
		e.addrLen = 2
	} else {
		b := byte(e.addr) << 1
		if e.readPhase {
			b |= 1
		}
		e.addrBuf[0] = b
		e.addrLen = 1
	}
	e.addrSent = 0
}

// readAddressByte is the single address byte re-sent after the restart.
func (e *Engine) readAddressByte() byte {
	if e.tenBit {
		return tenBitHigh(e.addr, true)
	}
	return byte(e.addr)<<1 | 1
}

// tenBitHigh builds the reserved 11110xx pattern carrying the top two
// address bits and the direction bit.
func tenBitHigh(addr uint16, read bool) byte {
	b := 0xF0 | byte(addr>>8)<<1
	if read {
		b |= 1
	}
	return b
}

// Abort forces the current task to the aborted clean-up path regardless of
// state. It is effective immediately; the HAL must tolerate the stop
// attempt whatever the wire is doing.
func (e *Engine) Abort() {
	if !e.busy {
		return
	}
	e.abortTask()
}

// abortTask runs the ABORTED clean-up and returns the engine to IDLE.
func (e *Engine) abortTask() {
	e.hal.SendStop()
	e.hal.NewTaskReset()
	e.busy = false
	e.st = stateIdle
}

// Service drives the state machine by at most one non-blocking unit of
// protocol progress. It must be called repeatedly while the engine is busy
// and returns true exactly once per task, on the call that returns the
// engine to IDLE (completion or abort).
func (e *Engine) Service() bool {
	if !e.busy {
		return false
	}

	// The watchdog outranks all other work: stuck hardware must never be
	// able to park the engine in a running state.
	if e.timeoutUS != 0 && e.timers.HasExpired(e.watchdog) {
		e.flags |= FlagTimeout
		e.abortTask()
		return true
	}

	if e.sweepErrors() {
		e.abortTask()
		return true
	}

	switch e.st {
	case stateStart:
		if !e.hal.StartDone() {
			return false
		}
		e.st = stateAddress

	case stateAddress:
		if !e.hal.TxReady() {
			return false
		}
		e.hal.WriteTx(e.addrBuf[e.addrSent])
		e.addrSent++
		e.st = stateAddressACK

	case stateAddressACK:
		if !e.hal.TxReady() {
			return false
		}
		if !e.hal.ACKReceived() {
			e.flags |= FlagNAK
			e.abortTask()
			return true
		}
		if e.addrSent < e.addrLen {
			e.st = stateAddress
			break
		}
		e.enterTransferPhase()

	case stateRegister:
		if !e.hal.TxReady() {
			return false
		}
		e.hal.WriteTx(e.regBuf[e.regSent])
		e.regSent++
		e.st = stateRegisterACK

	case stateRegisterACK:
		if !e.hal.TxReady() {
			return false
		}
		if !e.hal.ACKReceived() {
			e.flags |= FlagNAK
			e.abortTask()
			return true
		}
		if e.regSent < e.regLen {
			e.st = stateRegister
		} else if len(e.tx) > 0 {
			e.st = stateDataWrite
		} else {
			e.endWritePhase()
		}

	case stateDataWrite:
		if !e.hal.TxReady() {
			return false
		}
		e.hal.WriteTx(e.tx[e.txDone])
		e.txDone++
		e.st = stateDataWriteACK

	case stateDataWriteACK:
		if !e.hal.TxReady() {
			return false
		}
		if !e.hal.ACKReceived() {
			e.flags |= FlagNAK
			e.abortTask()
			return true
		}
		if e.txDone < len(e.tx) {
			e.st = stateDataWrite
		} else {
			e.endWritePhase()
		}

	case stateRestartIssue:
		e.hal.SendRestart()
		e.repeatedStart = true
		e.st = stateRestart

	case stateRestart:
		if !e.hal.RestartDone() {
			return false
		}
		e.st = stateAddrRead

	case stateAddrRead:
		if !e.hal.TxReady() {
			return false
		}
		e.hal.WriteTx(e.readAddressByte())
		e.st = stateAddrReadACK

	case stateAddrReadACK:
		if !e.hal.TxReady() {
			return false
		}
		if !e.hal.ACKReceived() {
			e.flags |= FlagNAK
			e.abortTask()
			return true
		}
		e.rxStep = rxStepEnable
		e.st = stateDataRead

	case stateDataRead:
		e.serviceRead()

	case stateStopIssue:
		e.hal.SendStop()
		e.st = stateStop

	case stateStop:
		if !e.hal.StopDone() {
			return false
		}
		e.busy = false
		e.st = stateIdle
		return true
	}

	return false
}

// enterTransferPhase picks the state after the initial address phase ACKed.
func (e *Engine) enterTransferPhase() {
	switch {
	case e.readPhase:
		e.rxStep = rxStepEnable
		e.st = stateDataRead
	case e.regSent < e.regLen:
		e.st = stateRegister
	case len(e.tx) > 0:
		e.st = stateDataWrite
	default:
		e.endWritePhase()
	}
}

// endWritePhase routes to the read phase via a repeated start, or to the
// stop condition when the task has nothing to read.
func (e *Engine) endWritePhase() {
	if e.rxDone < len(e.rx) {
		e.st = stateRestartIssue
	} else {
		e.st = stateStopIssue
	}
}

// serviceRead advances the receive phase by one sub-step.
func (e *Engine) serviceRead() {
	switch e.rxStep {
	case rxStepEnable:
		e.hal.EnableRx(e.rxDone == len(e.rx)-1)
		e.rxStep = rxStepData

	case rxStepData:
		if !e.hal.RxReady() {
			return
		}
		e.rx[e.rxDone] = e.hal.ReadRx()
		e.rxDone++
		e.rxStep = rxStepAnswer

	case rxStepAnswer:
		if e.rxDone == len(e.rx) {
			// Last byte: the master answers NAK and releases the bus.
			e.hal.SendNAK()
			e.st = stateStopIssue
			return
		}
		e.hal.SendACK()
		e.rxStep = rxStepACKDone

	case rxStepACKDone:
		if !e.hal.ACKSent() {
			return
		}
		e.rxStep = rxStepEnable
	}
}

// sweepErrors polls the optional HAL error checks and accumulates flags.
// Reports true when any error class fired.
func (e *Engine) sweepErrors() bool {
	fired := false
	if e.nakErr() {
		e.flags |= FlagNAK
		fired = true
	}
	if e.collisionErr() {
		e.flags |= FlagCollision
		fired = true
	}
	if e.overflowErr() {
		e.flags |= FlagRxOverflow
		fired = true
	}
	if e.faultErr() {
		e.flags |= FlagFault
		fired = true
	}
	return fired
}
