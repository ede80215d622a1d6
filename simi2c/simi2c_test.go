package simi2c

import "testing"

// Drives the slave hooks directly, the way the engine would.
func writeTransaction(s *Slave, addr byte, payload ...byte) bool {
	s.SendStart()
	s.WriteTx(addr << 1)
	if !s.ACKReceived() {
		s.SendStop()
		return false
	}
	for _, b := range payload {
		s.WriteTx(b)
		if !s.ACKReceived() {
			s.SendStop()
			return false
		}
	}
	s.SendStop()
	return true
}

func TestPointerThenData(t *testing.T) {
	s := New(0x50, 32, 1)

	if !writeTransaction(s, 0x50, 0x04, 0xAA, 0xBB) {
		t.Fatal("write transaction NAKed")
	}
	if s.Mem()[4] != 0xAA || s.Mem()[5] != 0xBB {
		t.Fatalf("mem = %#v", s.Mem()[4:6])
	}
	if s.Pointer() != 6 {
		t.Fatalf("pointer = %d, want 6", s.Pointer())
	}
}

func TestWrongAddressNAKs(t *testing.T) {
	s := New(0x50, 32, 1)
	if writeTransaction(s, 0x51, 0x00) {
		t.Fatal("wrong address was ACKed")
	}
}

func TestReadAfterRestartKeepsPointer(t *testing.T) {
	s := New(0x50, 32, 1)
	copy(s.Mem()[8:], []byte{1, 2, 3})

	s.SendStart()
	s.WriteTx(0x50 << 1)
	s.WriteTx(0x08) // pointer only, then direction change
	s.SendRestart()
	s.WriteTx(0x50<<1 | 1)
	if !s.ACKReceived() {
		t.Fatal("read address NAKed")
	}
	for i, want := range []byte{1, 2, 3} {
		s.EnableRx(i == 2)
		if !s.RxReady() {
			t.Fatal("no byte after EnableRx")
		}
		if got := s.ReadRx(); got != want {
			t.Fatalf("byte %d = %#02x, want %#02x", i, got, want)
		}
	}
	s.SendStop()
}

func TestNAKWritesKnob(t *testing.T) {
	s := New(0x50, 32, 1)
	s.NAKWrites = true
	if writeTransaction(s, 0x50, 0x00, 0xFF) {
		t.Fatal("data byte ACKed with NAKWrites set")
	}
	if s.Mem()[0] != 0 {
		t.Fatal("NAKed byte was stored")
	}
}
