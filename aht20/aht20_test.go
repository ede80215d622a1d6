package aht20

import (
	"testing"

	"drivercode-go/busmutex"
	"drivercode-go/errcode"
)

// fakeSensor speaks just enough of the AHT20 protocol to exercise the
// driver: it tracks calibration, counts conversion polls and serves one
// canned raw sample.
type fakeSensor struct {
	calibrated bool
	converting int // Collect calls that still report busy
	raw        [5]byte

	inits    int
	triggers int
	resets   int
}

func (f *fakeSensor) Tx(addr uint16, w, r []byte) error {
	if addr != DefaultAddress {
		return errcode.NAKReceived
	}
	if len(w) > 0 {
		switch w[0] {
		case cmdInit:
			f.inits++
			f.calibrated = true
		case cmdTrigger:
			f.triggers++
		case cmdSoftReset:
			f.resets++
		case cmdStatus:
			if len(r) > 0 {
				r[0] = f.status()
			}
		}
		return nil
	}
	// Plain read: status byte plus the packed sample.
	if len(r) > 0 {
		r[0] = f.status()
		copy(r[1:], f.raw[:])
	}
	if f.converting > 0 {
		f.converting--
	}
	return nil
}

func (f *fakeSensor) status() byte {
	var st byte
	if f.calibrated {
		st |= statusCalibrated
	}
	if f.converting > 0 {
		st |= statusBusy
	}
	return st
}

// packRaw encodes 20-bit humidity and temperature the way the part lays
// them out across bytes 1..5.
func packRaw(hum, temp uint32) [5]byte {
	return [5]byte{
		byte(hum >> 12),
		byte(hum >> 4),
		byte(hum<<4) | byte(temp>>16),
		byte(temp >> 8),
		byte(temp),
	}
}

func TestInitOnlyWhenUncalibrated(t *testing.T) {
	f := &fakeSensor{}
	d := New(f, nil, 0, Config{})

	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if f.inits != 1 {
		t.Fatalf("inits = %d, want 1", f.inits)
	}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if f.inits != 1 {
		t.Fatalf("calibrated part re-initialized, inits = %d", f.inits)
	}
}

func TestMeasurePollsUntilReady(t *testing.T) {
	f := &fakeSensor{calibrated: true, raw: packRaw(0x80000, 0x80000)}
	d := New(f, nil, 0, Config{PollInterval: 1, MeasureTimeout: 1_000_000_000})
	f.converting = 3

	var s Sample
	if err := d.Measure(&s); err != nil {
		t.Fatal(err)
	}
	if f.triggers != 1 {
		t.Fatalf("triggers = %d, want 1", f.triggers)
	}
	// 0x80000 of 0x100000 is mid-scale: 50.0 %RH and 50.0 °C.
	if got := s.DeciRelHumidity(); got != 500 {
		t.Fatalf("DeciRelHumidity() = %d, want 500", got)
	}
	if got := s.DeciCelsius(); got != 500 {
		t.Fatalf("DeciCelsius() = %d, want 500", got)
	}
	if d.Last() != s {
		t.Fatal("Last() does not match returned sample")
	}
}

func TestCollectBusy(t *testing.T) {
	f := &fakeSensor{calibrated: true, converting: 1}
	d := New(f, nil, 0, Config{})

	if err := d.Collect(nil); err != errcode.Busy {
		t.Fatalf("Collect during conversion = %v, want Busy", err)
	}
	if err := d.Collect(nil); err != nil {
		t.Fatalf("Collect after conversion = %v", err)
	}
}

func TestCollectUncalibratedFaults(t *testing.T) {
	f := &fakeSensor{}
	d := New(f, nil, 0, Config{})
	if err := d.Collect(nil); err != errcode.BusFault {
		t.Fatalf("Collect uncalibrated = %v, want BusFault", err)
	}
}

func TestBusErrorWrapped(t *testing.T) {
	f := &fakeSensor{calibrated: true}
	d := New(f, nil, 0, Config{Address: 0x39}) // nobody home
	err := d.Trigger()
	if err == nil {
		t.Fatal("expected bus error")
	}
	if errcode.Of(err) != errcode.NAKReceived {
		t.Fatalf("code = %v, want NAKReceived", errcode.Of(err))
	}
}

func TestBusMutexReleased(t *testing.T) {
	f := &fakeSensor{calibrated: true, raw: packRaw(1, 1)}
	mu := busmutex.New(1)
	d := New(f, mu, 0, Config{PollInterval: 1})

	if err := d.Measure(nil); err != nil {
		t.Fatal(err)
	}
	if !mu.IsAvailable(0) {
		t.Fatal("bus mutex still held after Measure")
	}
}
