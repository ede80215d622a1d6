// Package aht20 drives the AHT20 temperature and humidity sensor over any
// I2C implementation, including the blocking adapter in seri2c.
//
// Measurement is two-phase so callers can stay non-blocking:
//
//	d.Trigger()             // start a conversion, returns immediately
//	err := d.Collect(&s)    // errcode.Busy until the conversion lands
//
// Measure wraps both with bounded polling for callers that can afford to
// wait. Collect issues a plain read; the combined probe in Status relies on
// the bus keeping the repeated start between write and read.
//
// Conversions stay in fixed point, tenths of a unit.
package aht20

import (
	"runtime"
	"time"

	"github.com/pkg/errors"
	"tinygo.org/x/drivers"

	"drivercode-go/busmutex"
	"drivercode-go/errcode"
)

// DefaultAddress is the only address the part responds on.
const DefaultAddress = 0x38

const (
	cmdTrigger   = 0xAC
	cmdInit      = 0xBE
	cmdSoftReset = 0xBA
	cmdStatus    = 0x71

	statusBusy       = 0x80
	statusCalibrated = 0x08
)

// Config tunes polling behaviour. Zero values pick the defaults.
type Config struct {
	Address uint16

	// PollInterval paces Collect retries inside Measure. Default 15 ms.
	PollInterval time.Duration

	// MeasureTimeout bounds one Measure call. Default 250 ms.
	MeasureTimeout time.Duration
}

// Sample is one raw conversion result.
type Sample struct {
	RawHumidity uint32
	RawTemp     uint32
}

// DeciRelHumidity returns tenths of a percent relative humidity.
func (s Sample) DeciRelHumidity() int32 {
	return (int32(s.RawHumidity) * 1000) / 0x100000
}

// DeciCelsius returns tenths of a degree Celsius.
func (s Sample) DeciCelsius() int32 {
	return ((int32(s.RawTemp) * 2000) / 0x100000) - 500
}

// Device is an AHT20 behind an I2C bus, optionally arbitrated through a bus
// mutex shared with other drivers on the same wires.
type Device struct {
	bus   drivers.I2C
	mu    *busmutex.Table
	busID int
	addr  uint16
	cfg   Config

	buf  [7]byte
	last Sample
}

// New builds a device. mu may be nil when the caller owns the bus outright.
func New(bus drivers.I2C, mu *busmutex.Table, busID int, cfg Config) *Device {
	if cfg.Address == 0 {
		cfg.Address = DefaultAddress
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Millisecond
	}
	if cfg.MeasureTimeout <= 0 {
		cfg.MeasureTimeout = 250 * time.Millisecond
	}
	return &Device{bus: bus, mu: mu, busID: busID, addr: cfg.Address, cfg: cfg}
}

func (d *Device) claim() {
	if d.mu == nil {
		return
	}
	for !d.mu.Request(d.busID) {
		runtime.Gosched()
	}
}

func (d *Device) release() {
	if d.mu != nil {
		d.mu.Release(d.busID)
	}
}

func (d *Device) tx(w, r []byte) error {
	d.claim()
	defer d.release()
	return d.bus.Tx(d.addr, w, r)
}

// Init checks the calibration bit and sends the initialize command when it
// is clear. Parts fresh out of power-on need this once; afterwards it is a
// cheap no-op. The part wants a pause after initialize before the first
// trigger.
func (d *Device) Init() error {
	st, err := d.Status()
	if err != nil {
		return err
	}
	if st&statusCalibrated != 0 {
		return nil
	}
	if err := d.tx([]byte{cmdInit, 0x08, 0x00}, nil); err != nil {
		return errors.Wrap(err, "aht20 init")
	}
	time.Sleep(10 * time.Millisecond)
	return nil
}

// Reset issues a soft reset. Allow the part ~20 ms before the next command.
func (d *Device) Reset() error {
	return errors.Wrap(d.tx([]byte{cmdSoftReset}, nil), "aht20 reset")
}

// Status reads the status byte.
func (d *Device) Status() (byte, error) {
	var st [1]byte
	if err := d.tx([]byte{cmdStatus}, st[:]); err != nil {
		return 0, errors.Wrap(err, "aht20 status")
	}
	return st[0], nil
}

// Trigger starts a conversion and returns without waiting for it.
func (d *Device) Trigger() error {
	return errors.Wrap(d.tx([]byte{cmdTrigger, 0x33, 0x00}, nil), "aht20 trigger")
}

// Collect fetches the pending conversion. While the part is still
// converting it returns errcode.Busy; call again later. Bus errors pass
// through wrapped.
func (d *Device) Collect(out *Sample) error {
	if err := d.tx(nil, d.buf[:]); err != nil {
		return errors.Wrap(err, "aht20 collect")
	}
	st := d.buf[0]
	if st&statusBusy != 0 {
		return errcode.Busy
	}
	if st&statusCalibrated == 0 {
		return errcode.BusFault
	}
	d.last = Sample{
		RawHumidity: uint32(d.buf[1])<<12 | uint32(d.buf[2])<<4 | uint32(d.buf[3])>>4,
		RawTemp:     uint32(d.buf[3]&0x0F)<<16 | uint32(d.buf[4])<<8 | uint32(d.buf[5]),
	}
	if out != nil {
		*out = d.last
	}
	return nil
}

// Last returns the most recent successful sample.
func (d *Device) Last() Sample { return d.last }

// Measure runs a full cycle: trigger, then poll Collect until it lands or
// MeasureTimeout passes.
func (d *Device) Measure(out *Sample) error {
	if err := d.Trigger(); err != nil {
		return err
	}
	deadline := time.Now().Add(d.cfg.MeasureTimeout)
	for {
		err := d.Collect(out)
		if err != errcode.Busy {
			return err
		}
		if time.Now().After(deadline) {
			return errcode.Timeout
		}
		time.Sleep(d.cfg.PollInterval)
	}
}
