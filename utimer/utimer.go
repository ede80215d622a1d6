// Package utimer issues monotonic-time tickets against one externally
// driven hardware counter plus a period-overflow count.
//
// The service has no goroutines and never blocks: ticket creation and the
// expiry/elapsed checks are pure arithmetic over the injected counter. The
// one concession to interrupt context is the period count, which the
// integrator's timer-period ISR bumps through PeriodISRHandler and which is
// therefore kept atomic.
package utimer

import (
	"sync/atomic"

	"drivercode-go/x/timex"
)

// CounterReader returns the current value of the free-running hardware
// counter driving this service. It must be callable from poll context.
type CounterReader func() uint32

// Service converts between the (period, counter) pair of one hardware timer
// and microseconds. Construct one per hardware timer.
type Service struct {
	ticksPerUS     uint32
	ticksPerPeriod uint32
	readCounter    CounterReader

	// Written from the timer-period ISR, read from poll context.
	periods atomic.Uint32
}

// Ticket is an immutable expiry marker. Created once, polled many times,
// discarded by the caller when no longer needed.
type Ticket struct {
	startCounter uint32
	startPeriod  uint32
	endCounter   uint32
	endPeriod    uint32
	durationUS   uint32
}

// DurationUS reports the originally requested duration. Diagnostics only.
func (t Ticket) DurationUS() uint32 { return t.durationUS }

// New builds a Service for a counter that counts ticksPerPeriod ticks per
// hardware period at ticksPerUS ticks per microsecond. ticksPerUS must be
// >= 1 for microsecond-accurate tickets; 0 is coerced to 1. A nil read
// function is an integration error and is not guarded here.
func New(ticksPerUS, ticksPerPeriod uint32, read CounterReader) *Service {
	if ticksPerUS == 0 {
		ticksPerUS = 1
	}
	if ticksPerPeriod == 0 {
		ticksPerPeriod = 1
	}
	return &Service{
		ticksPerUS:     ticksPerUS,
		ticksPerPeriod: ticksPerPeriod,
		readCounter:    read,
	}
}

// PeriodISRHandler must be wired to the timer's period-overflow interrupt.
func (s *Service) PeriodISRHandler() {
	s.periods.Add(1)
}

// Periods reports the current period-overflow count.
func (s *Service) Periods() uint32 { return s.periods.Load() }

// NewTicket captures the current (period, counter) pair and pre-computes
// the pair at which durationUS microseconds will have elapsed.
//
// durationUS == 0 is legal and produces a stopwatch ticket: HasExpired
// never reports true for it, but ElapsedUS keeps counting.
func (s *Service) NewTicket(durationUS uint32) Ticket {
	p := s.periods.Load()
	c := s.readCounter()

	t := Ticket{
		startCounter: c,
		startPeriod:  p,
		durationUS:   durationUS,
	}

	ticks := timex.TicksFromUS(durationUS, s.ticksPerUS)
	t.endPeriod = p + uint32(ticks/uint64(s.ticksPerPeriod))
	end := c + uint32(ticks%uint64(s.ticksPerPeriod))
	if end >= s.ticksPerPeriod {
		end -= s.ticksPerPeriod
		t.endPeriod++
	}
	t.endCounter = end
	return t
}

// HasExpired reports whether the current time has reached or passed the
// ticket's expiry pair. Periods are compared first, then counters, so a
// counter wrap inside a single period cannot report a false expiry.
func (s *Service) HasExpired(t Ticket) bool {
	if t.durationUS == 0 {
		return false
	}
	p := s.periods.Load()
	if p != t.endPeriod {
		return p > t.endPeriod
	}
	return s.readCounter() >= t.endCounter
}

// ElapsedUS reports the microseconds elapsed since the ticket was created.
// A transiently negative delta (counter read racing the period ISR) clamps
// to zero.
func (s *Service) ElapsedUS(t Ticket) uint64 {
	p := s.periods.Load()
	c := s.readCounter()

	ticks := int64(p-t.startPeriod) * int64(s.ticksPerPeriod)
	ticks += int64(c) - int64(t.startCounter)
	if ticks < 0 {
		ticks = 0
	}
	return timex.USFromTicks(uint64(ticks), s.ticksPerUS)
}
