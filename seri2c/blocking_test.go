package seri2c_test

import (
	"bytes"
	"testing"

	"drivercode-go/errcode"
	"drivercode-go/seri2c"
	"drivercode-go/simi2c"
	"drivercode-go/utimer"
)

func newStack(t *testing.T, slave *simi2c.Slave) *seri2c.Blocking {
	t.Helper()
	counter := uint32(0)
	timers := utimer.New(1, 1<<20, func() uint32 { return counter })
	return seri2c.NewBlocking(seri2c.New(slave, timers))
}

func TestBlockingRegisterRoundTrip(t *testing.T) {
	slave := simi2c.New(0x50, 64, 1)
	bus := newStack(t, slave)

	if err := bus.TxRegister(0x50, 0x10, 1, []byte{0xAA, 0xBB}, nil); err != nil {
		t.Fatalf("register write: %v", err)
	}
	if slave.Mem()[0x10] != 0xAA || slave.Mem()[0x11] != 0xBB {
		t.Fatalf("slave memory = %#v at 0x10", slave.Mem()[0x10:0x12])
	}

	got := make([]byte, 2)
	if err := bus.TxRegister(0x50, 0x10, 1, nil, got); err != nil {
		t.Fatalf("register read: %v", err)
	}
	if !bytes.Equal(got, []byte{0xAA, 0xBB}) {
		t.Fatalf("read back %#v, want [0xaa 0xbb]", got)
	}
}

func TestBlockingTxCombined(t *testing.T) {
	slave := simi2c.New(0x3A, 32, 1)
	copy(slave.Mem()[4:], []byte{1, 2, 3})
	bus := newStack(t, slave)

	// Pointer byte in the write phase, repeated start, then the read.
	got := make([]byte, 3)
	if err := bus.Tx(0x3A, []byte{4}, got); err != nil {
		t.Fatalf("combined tx: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Fatalf("read %#v, want [1 2 3]", got)
	}
}

func TestBlockingSlowSlave(t *testing.T) {
	slave := simi2c.New(0x50, 64, 1)
	slave.ReadyEvery = 5 // every readiness check passes on the 5th poll only
	bus := newStack(t, slave)

	if err := bus.TxRegister(0x50, 0x00, 1, []byte{0x42}, nil); err != nil {
		t.Fatalf("write against slow slave: %v", err)
	}
	if slave.Mem()[0] != 0x42 {
		t.Fatalf("mem[0] = %#02x, want 0x42", slave.Mem()[0])
	}
}

func TestBlockingWrongAddressNAK(t *testing.T) {
	slave := simi2c.New(0x50, 64, 1)
	bus := newStack(t, slave)

	err := bus.Tx(0x51, []byte{1}, nil)
	if err != errcode.NAKReceived {
		t.Fatalf("err = %v, want %v", err, errcode.NAKReceived)
	}
}

func TestBlockingInvalidRegisterLength(t *testing.T) {
	slave := simi2c.New(0x50, 64, 1)
	bus := newStack(t, slave)

	if err := bus.TxRegister(0x50, 0, 0, []byte{1}, nil); err != errcode.InvalidParams {
		t.Fatalf("err = %v, want %v", err, errcode.InvalidParams)
	}
}
