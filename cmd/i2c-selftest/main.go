// cmd/i2c-selftest/main.go
//
// Host-side self test that wires the whole driver stack together against a
// simulated slave: timer service, transaction engine, bus mutex, request
// queue, blocking adapter and the EEPROM driver on top. Exits non-zero when
// any phase fails, so it can gate CI.
package main

import (
	"bytes"
	"os"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"drivercode-go/busmutex"
	"drivercode-go/busqueue"
	"drivercode-go/eeprom24"
	"drivercode-go/errcode"
	"drivercode-go/seri2c"
	"drivercode-go/simi2c"
	"drivercode-go/utimer"
)

// ---------- Configuration ----------

const (
	slaveAddr    = 0x50
	slaveMemSize = 256

	// One simulated counter tick per microsecond, 1 ms periods.
	simTicksPerUS     = 1
	simTicksPerPeriod = 1000

	// Every engine Service call costs this many simulated ticks.
	ticksPerStep = 10

	// Give up on a transaction after this many Service calls.
	maxSteps = 100_000
)

// ---------- Simulated clock ----------

// simClock stands in for a free-running hardware counter with a period
// rollover interrupt.
type simClock struct {
	ticks  atomic.Uint32
	timers *utimer.Service
}

func newSimClock() *simClock {
	c := &simClock{}
	c.timers = utimer.New(simTicksPerUS, simTicksPerPeriod, func() uint32 {
		return c.ticks.Load()
	})
	return c
}

func (c *simClock) advance(n uint32) {
	for i := uint32(0); i < n; i++ {
		if c.ticks.Add(1) >= simTicksPerPeriod {
			c.ticks.Store(0)
			c.timers.PeriodISRHandler()
		}
	}
}

// ---------- Phases ----------

type phaseFn func(log zerolog.Logger) error

// drive pumps the engine until the transaction settles, advancing the
// simulated clock between calls.
func drive(clk *simClock, eng *seri2c.Engine) error {
	for i := 0; i < maxSteps; i++ {
		if eng.Service() {
			return eng.Err()
		}
		clk.advance(ticksPerStep)
	}
	return eng.Err()
}

func phaseEngine(log zerolog.Logger) error {
	clk := newSimClock()
	slave := simi2c.New(slaveAddr, slaveMemSize, 1)
	eng := seri2c.New(slave, clk.timers)

	// Register write, then read back through the same engine.
	if !eng.BeginRegisterWrite(slaveAddr, 0x10, 1, []byte{0xDE, 0xAD}) {
		return errFailed("engine refused register write")
	}
	if err := drive(clk, eng); err != nil {
		return err
	}

	rx := make([]byte, 2)
	if !eng.BeginRegisterRead(slaveAddr, 0x10, 1, rx) {
		return errFailed("engine refused register read")
	}
	if err := drive(clk, eng); err != nil {
		return err
	}
	if !bytes.Equal(rx, []byte{0xDE, 0xAD}) {
		return errFailed("register read back mismatch")
	}
	log.Debug().Hex("data", rx).Msg("register round trip")

	// A sluggish peripheral must only cost extra Service calls.
	slave.ReadyEvery = 4
	if !eng.BeginWriteRead(slaveAddr, []byte{0x20}, rx) {
		return errFailed("engine refused combined transaction")
	}
	return drive(clk, eng)
}

func phaseErrors(log zerolog.Logger) error {
	clk := newSimClock()
	slave := simi2c.New(slaveAddr, slaveMemSize, 1)
	eng := seri2c.New(slave, clk.timers)

	// Nobody is listening at this address.
	if !eng.BeginWrite(0x31, []byte{0x00}) {
		return errFailed("engine refused write")
	}
	if err := drive(clk, eng); err != errcode.NAKReceived {
		return errFailed("absent slave: got " + errString(err))
	}
	log.Debug().Str("flags", eng.Flags().String()).Msg("absent slave NAKed")

	// A slave that declines data bytes mid-write.
	slave.NAKWrites = true
	if !eng.BeginRegisterWrite(slaveAddr, 0x00, 1, []byte{0x55}) {
		return errFailed("engine refused register write")
	}
	if err := drive(clk, eng); err != errcode.NAKReceived {
		return errFailed("busy slave: got " + errString(err))
	}
	return nil
}

func phaseQueue(log zerolog.Logger) error {
	clk := newSimClock()
	slave := simi2c.New(slaveAddr, slaveMemSize, 1)
	eng := seri2c.New(slave, clk.timers)
	q := busqueue.New(busqueue.Engine(eng), 8)

	var order []int
	var failed bool
	for i := 0; i < 3; i++ {
		i := i
		ok := q.Submit(busqueue.Request{
			Addr:   slaveAddr,
			Reg:    uint32(0x40 + i),
			RegLen: 1,
			TX:     []byte{byte(i)},
			Done: func(f seri2c.Flags) {
				order = append(order, i)
				failed = failed || f != 0
			},
		})
		if !ok {
			return errFailed("queue refused submit")
		}
	}

	for i := 0; i < maxSteps && (q.Active() || q.Len() > 0); i++ {
		q.Service()
		clk.advance(ticksPerStep)
	}
	if failed {
		return errFailed("queued transaction reported flags")
	}
	for i, got := range order {
		if got != i {
			return errFailed("queue completed out of order")
		}
	}
	if got := slave.Mem()[0x41]; got != 1 {
		return errFailed("queued write missing from slave memory")
	}
	log.Debug().Int("completed", len(order)).Msg("queue drained in order")
	return nil
}

func phaseEEPROM(log zerolog.Logger) error {
	clk := newSimClock()
	slave := simi2c.New(slaveAddr, slaveMemSize, 2)
	eng := seri2c.New(slave, clk.timers)

	// The blocking adapter spins on Service from this goroutine while the
	// clock runs freely in another, so the watchdog would fire at the mercy
	// of scheduling. Disable it; the error phases cover timeouts.
	eng.SetTransactionTimeout(0)

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				clk.advance(1)
			}
		}
	}()

	mu := busmutex.New(1)
	cfg := eeprom24.Config{Size: slaveMemSize, PageSize: 16, AddrBytes: 2}
	dev, err := eeprom24.New(seri2c.NewBlocking(eng), mu, 0, slaveAddr, cfg)
	if err != nil {
		return err
	}

	// Pattern crossing two page boundaries.
	pattern := make([]byte, 40)
	for i := range pattern {
		pattern[i] = byte(i*7 + 3)
	}
	if _, err := dev.Seek(12, 0); err != nil {
		return err
	}
	if _, err := dev.Write(pattern); err != nil {
		return err
	}
	if _, err := dev.Seek(12, 0); err != nil {
		return err
	}
	got := make([]byte, len(pattern))
	if _, err := dev.Read(got); err != nil {
		return err
	}
	if !bytes.Equal(got, pattern) {
		return errFailed("EEPROM read back mismatch")
	}
	if !mu.IsAvailable(0) {
		return errFailed("bus mutex still held after transfer")
	}
	log.Debug().Int("bytes", len(pattern)).Msg("EEPROM round trip across pages")
	return nil
}

// ---------- Helpers ----------

func errFailed(msg string) error { return errors.New(msg) }

func errString(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}

// ---------- Main ----------

func main() {
	var levelFlag string
	pflag.StringVarP(&levelFlag, "level", "l", "info", "Set log level")
	pflag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if level, err := zerolog.ParseLevel(levelFlag); err == nil {
		logger = logger.Level(level)
	}

	phases := []struct {
		name string
		run  phaseFn
	}{
		{"engine", phaseEngine},
		{"errors", phaseErrors},
		{"queue", phaseQueue},
		{"eeprom", phaseEEPROM},
	}

	failures := 0
	for _, p := range phases {
		log := logger.With().Str("phase", p.name).Logger()
		if err := p.run(log); err != nil {
			log.Error().Err(err).Msg("FAIL")
			failures++
			continue
		}
		log.Info().Msg("PASS")
	}

	if failures > 0 {
		logger.Error().Int("failed", failures).Msg("self test failed")
		os.Exit(1)
	}
	logger.Info().Msg("all phases passed")
}
