package seri2c

import (
	"runtime"

	"tinygo.org/x/drivers"

	"drivercode-go/errcode"
)

// Blocking adapts an Engine to the tinygo drivers bus interface by
// spin-driving Service until the task settles. The engine itself never
// blocks; this is the layering the caller opts into when a device driver
// wants plain call-and-return semantics.
type Blocking struct {
	eng *Engine
}

var _ drivers.I2C = (*Blocking)(nil)

// NewBlocking wraps eng. The wrapper shares the engine's single-context
// rule: do not mix Blocking calls with direct Begin/Service calls from
// elsewhere while a transaction is in flight.
func NewBlocking(eng *Engine) *Blocking {
	return &Blocking{eng: eng}
}

// Tx performs a write and/or read transaction at addr and blocks until the
// engine reaches IDLE. A combined w+r transaction uses a repeated start
// between the phases.
func (b *Blocking) Tx(addr uint16, w, r []byte) error {
	var ok bool
	switch {
	case len(w) > 0 && len(r) > 0:
		ok = b.eng.BeginWriteRead(addr, w, r)
	case len(r) > 0:
		ok = b.eng.BeginRead(addr, r)
	default:
		ok = b.eng.BeginWrite(addr, w)
	}
	if !ok {
		return errcode.Busy
	}
	for !b.eng.Service() {
		runtime.Gosched()
	}
	return b.eng.Err()
}

// TxRegister performs a register-addressed transfer (regLen 1..4 register
// bytes, most significant first), write when w is set, read when r is set.
func (b *Blocking) TxRegister(addr uint16, reg uint32, regLen int, w, r []byte) error {
	var ok bool
	switch {
	case len(r) > 0:
		ok = b.eng.BeginRegisterRead(addr, reg, regLen, r)
	default:
		ok = b.eng.BeginRegisterWrite(addr, reg, regLen, w)
	}
	if !ok {
		if b.eng.IsBusy() {
			return errcode.Busy
		}
		return errcode.InvalidParams
	}
	for !b.eng.Service() {
		runtime.Gosched()
	}
	return b.eng.Err()
}
