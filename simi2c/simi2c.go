// Package simi2c models an I2C slave with an EEPROM-style register file,
// wired up as a seri2c HAL. It exists so the transaction engine, the bus
// adapters and the device drivers above them can be exercised end to end
// without hardware: the engine drives it exactly like a real peripheral,
// byte by byte, condition by condition.
package simi2c

import "drivercode-go/seri2c"

// Slave is a 7-bit addressed slave. The first PointerBytes payload bytes of
// every fresh write transaction set the memory pointer (most significant
// first); the rest are stored at the pointer, which auto-increments and
// wraps at the end of the array. Reads return memory from the pointer on.
type Slave struct {
	mem          []byte
	addr         uint16
	pointerBytes int

	// ReadyEvery gates every readiness/completion check: the check passes
	// only on every Nth poll. 0 or 1 keeps the slave fully cooperative;
	// larger values force the engine to come back on later Service calls.
	ReadyEvery int

	// NAKWrites makes the slave decline every data byte after the pointer
	// phase, like a busy EEPROM in its internal write cycle.
	NAKWrites bool

	phase      phase
	acked      bool
	ptr        int
	ptrAcc     int // pointer value being accumulated byte by byte
	ptrPending int // pointer bytes still expected in this transaction
	rdByte     byte
	rdValid    bool
	polls      int
}

type phase uint8

const (
	phaseIdle phase = iota
	phaseAddress
	phasePointer
	phaseWrite
	phaseRead
)

var _ seri2c.HAL = (*Slave)(nil)

// New builds a slave at addr with size bytes of memory and pointerBytes
// (1 or 2) of register addressing.
func New(addr uint16, size, pointerBytes int) *Slave {
	if pointerBytes < 1 || pointerBytes > 2 {
		pointerBytes = 1
	}
	return &Slave{
		mem:          make([]byte, size),
		addr:         addr & 0x7F,
		pointerBytes: pointerBytes,
	}
}

// Mem exposes the register file for test setup and assertions.
func (s *Slave) Mem() []byte { return s.mem }

// Pointer reports the current memory pointer.
func (s *Slave) Pointer() int { return s.ptr }

// ready implements the ReadyEvery poll gate.
func (s *Slave) ready() bool {
	if s.ReadyEvery <= 1 {
		return true
	}
	s.polls++
	return s.polls%s.ReadyEvery == 0
}

func (s *Slave) TxReady() bool { return s.ready() }
func (s *Slave) RxReady() bool { return s.rdValid && s.ready() }

func (s *Slave) WriteTx(b byte) {
	switch s.phase {
	case phaseAddress:
		match := b>>1 == byte(s.addr)
		s.acked = match
		if !match {
			s.phase = phaseIdle
			return
		}
		if b&1 == 1 {
			s.phase = phaseRead
		} else if s.ptrPending > 0 {
			s.phase = phasePointer
		} else {
			s.phase = phaseWrite
		}
	case phasePointer:
		s.ptrAcc = s.ptrAcc<<8 | int(b)
		s.ptrPending--
		s.acked = true
		if s.ptrPending == 0 {
			s.ptr = s.ptrAcc % len(s.mem)
			s.phase = phaseWrite
		}
	case phaseWrite:
		if s.NAKWrites {
			s.acked = false
			return
		}
		s.mem[s.ptr] = b
		s.ptr = (s.ptr + 1) % len(s.mem)
		s.acked = true
	default:
		s.acked = false
	}
}

func (s *Slave) ReadRx() byte {
	s.rdValid = false
	return s.rdByte
}

func (s *Slave) SendStart() {
	s.phase = phaseAddress
	// A fresh start opens a new transaction: a write phase begins with the
	// pointer bytes, while the memory pointer itself survives stops so a
	// current-address read keeps working.
	s.ptrPending = s.pointerBytes
	s.ptrAcc = 0
	s.rdValid = false
}

func (s *Slave) StartDone() bool { return s.ready() }

func (s *Slave) SendRestart() {
	// Direction change keeps the pointer where the write phase left it.
	s.phase = phaseAddress
	s.ptrPending = 0
	s.rdValid = false
}

func (s *Slave) RestartDone() bool { return s.ready() }

func (s *Slave) SendStop() {
	s.phase = phaseIdle
	s.rdValid = false
}

func (s *Slave) StopDone() bool { return s.ready() }

func (s *Slave) SendACK()      {}
func (s *Slave) ACKSent() bool { return s.ready() }
func (s *Slave) SendNAK()      {}

func (s *Slave) ACKReceived() bool { return s.acked }

func (s *Slave) ClearErrors() {}

func (s *Slave) EnableRx(lastByte bool) {
	if s.phase != phaseRead {
		s.rdValid = false
		return
	}
	s.rdByte = s.mem[s.ptr]
	s.ptr = (s.ptr + 1) % len(s.mem)
	s.rdValid = true
}

func (s *Slave) NewTaskReset() {
	s.polls = 0
}
