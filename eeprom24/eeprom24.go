// Package eeprom24 drives 24-series I2C EEPROMs over any drivers.I2C bus,
// typically a seri2c engine behind its blocking adapter. The device is
// exposed as a seekable byte stream; writes are chunked to the part's page
// size and followed by ACK polling for the internal write cycle.
package eeprom24

import (
	"io"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"tinygo.org/x/drivers"

	"drivercode-go/busmutex"
	"drivercode-go/errcode"
)

// Config describes one EEPROM part.
type Config struct {
	Size       uint32 // array size in bytes
	PageSize   uint32 // write page size, power of two
	AddrBytes  int    // pointer bytes per transaction, 1 or 2
	WriteDelay time.Duration
}

// Canned part configurations.
var (
	Conf24C02  = Config{Size: 256, PageSize: 8, AddrBytes: 1, WriteDelay: 5 * time.Millisecond}
	Conf24C32  = Config{Size: 4096, PageSize: 32, AddrBytes: 2, WriteDelay: 5 * time.Millisecond}
	Conf24C256 = Config{Size: 32768, PageSize: 64, AddrBytes: 2, WriteDelay: 5 * time.Millisecond}
)

// Device is an open EEPROM with a file-style position.
type Device struct {
	cfg   Config
	bus   drivers.I2C
	mu    *busmutex.Table
	busID int
	addr  uint16
	pos   uint32
	w     []byte // scratch: pointer bytes + one page
}

var (
	_ io.Reader = (*Device)(nil)
	_ io.Writer = (*Device)(nil)
	_ io.Seeker = (*Device)(nil)
)

// New opens the EEPROM at addr on bus. mu may be nil when the bus is not
// shared; otherwise the device claims slot busID around every transaction.
func New(bus drivers.I2C, mu *busmutex.Table, busID int, addr uint16, cfg Config) (*Device, error) {
	if cfg.Size == 0 || cfg.PageSize == 0 || cfg.PageSize&(cfg.PageSize-1) != 0 {
		return nil, errors.Wrapf(errcode.InvalidParams,
			"eeprom24: size %d / page %d", cfg.Size, cfg.PageSize)
	}
	if cfg.AddrBytes < 1 || cfg.AddrBytes > 2 {
		return nil, errors.Wrapf(errcode.InvalidParams,
			"eeprom24: %d pointer bytes", cfg.AddrBytes)
	}
	if addr > 0x7F {
		return nil, errors.Wrap(errcode.InvalidParams,
			"eeprom24: only 7-bit device addresses")
	}
	return &Device{
		cfg:   cfg,
		bus:   bus,
		mu:    mu,
		busID: busID,
		addr:  addr,
		w:     make([]byte, cfg.AddrBytes+int(cfg.PageSize)),
	}, nil
}

// claim spins for the bus mutex; release gives it back.
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

// devAddr folds the high pointer bits into the device address for parts
// that bank-switch via address pins (1 pointer byte, >256 byte arrays).
func (d *Device) devAddr(pos uint32) uint16 {
	if d.cfg.AddrBytes == 1 {
		return d.addr + uint16(pos>>8)
	}
	return d.addr
}

// pointer fills the scratch prefix with the pointer bytes for pos.
func (d *Device) pointer(pos uint32) []byte {
	if d.cfg.AddrBytes == 2 {
		d.w[0] = byte(pos >> 8)
		d.w[1] = byte(pos)
	} else {
		d.w[0] = byte(pos)
	}
	return d.w[:d.cfg.AddrBytes]
}

func (d *Device) Read(b []byte) (int, error) {
	if d.pos >= d.cfg.Size {
		return 0, io.EOF
	}
	n := uint32(len(b))
	if rest := d.cfg.Size - d.pos; n > rest {
		n = rest
	}
	if n == 0 {
		return 0, nil
	}

	d.claim()
	err := d.bus.Tx(d.devAddr(d.pos), d.pointer(d.pos), b[:n])
	d.release()
	if err != nil {
		return 0, errors.Wrap(err, "eeprom24: read")
	}
	d.pos += n
	return int(n), nil
}

func (d *Device) Write(b []byte) (int, error) {
	written := 0
	for len(b) > 0 && d.pos < d.cfg.Size {
		// Clip the chunk to the current page and the end of the array.
		inPage := d.cfg.PageSize - d.pos&(d.cfg.PageSize-1)
		n := uint32(len(b))
		if n > inPage {
			n = inPage
		}
		if rest := d.cfg.Size - d.pos; n > rest {
			n = rest
		}

		ptr := d.pointer(d.pos)
		payload := append(ptr, b[:n]...) // scratch-backed, no allocation
		d.claim()
		err := d.bus.Tx(d.devAddr(d.pos), payload, nil)
		if err == nil {
			err = d.waitWriteCycle(d.devAddr(d.pos))
		}
		d.release()
		if err != nil {
			return written, errors.Wrap(err, "eeprom24: write")
		}

		d.pos += n
		written += int(n)
		b = b[n:]
	}

	if len(b) > 0 {
		return written, io.EOF
	}
	return written, nil
}

// waitWriteCycle ACK-polls the device until its internal write finishes.
func (d *Device) waitWriteCycle(addr uint16) error {
	if d.cfg.WriteDelay == 0 {
		return nil
	}
	deadline := time.Now().Add(4 * d.cfg.WriteDelay)
	for {
		if err := d.bus.Tx(addr, nil, nil); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return errcode.WriteTimeout
		}
		time.Sleep(d.cfg.WriteDelay / 8)
	}
}

func (d *Device) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(d.pos) + offset
	case io.SeekEnd:
		next = int64(d.cfg.Size) + offset
	default:
		return int64(d.pos), errors.Wrap(errcode.InvalidParams, "eeprom24: whence")
	}
	if next < 0 || next > int64(d.cfg.Size) {
		return int64(d.pos), errors.Wrapf(errcode.OutOfRange, "eeprom24: seek %d", next)
	}
	d.pos = uint32(next)
	return next, nil
}
