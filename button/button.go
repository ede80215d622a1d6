// Package button turns a raw input level into debounced press events and
// click/hold patterns. The detector follows the suite's polling model: no
// goroutines, no blocking, all progress inside Service driven by the
// caller's scheduler tick, with every time window measured through utimer
// tickets.
package button

import "drivercode-go/utimer"

// PinReader returns the raw electrical level of the input.
type PinReader func() bool

// Event is a detected input pattern.
type Event uint8

const (
	EventPressed Event = iota
	EventReleased
	EventClick
	EventDoubleClick
	EventHold
)

func (e Event) String() string {
	switch e {
	case EventPressed:
		return "pressed"
	case EventReleased:
		return "released"
	case EventClick:
		return "click"
	case EventDoubleClick:
		return "double_click"
	case EventHold:
		return "hold"
	}
	return "unknown"
}

// Config sets the detector's time windows. A zero window disables the
// feature: DebounceUS 0 adopts level changes immediately, HoldUS 0 never
// reports holds, ClickGapUS 0 reports every click on release without
// waiting for a pattern.
type Config struct {
	DebounceUS uint32
	HoldUS     uint32
	ClickGapUS uint32 // max pause between clicks of one pattern
	ActiveLow  bool
}

// DefaultConfig matches a typical panel push-button.
func DefaultConfig() Config {
	return Config{
		DebounceUS: 5_000,
		HoldUS:     800_000,
		ClickGapUS: 250_000,
	}
}

// Detector watches one input. Not re-entrant; call Service from a single
// context.
type Detector struct {
	timers *utimer.Service
	read   PinReader
	cfg    Config
	emit   func(Event)

	stable bool // debounced logical level, true = pressed

	raw      bool
	bouncing bool
	bounce   utimer.Ticket

	holdArmed bool
	hold      utimer.Ticket

	clicks  int
	gapOpen bool
	gap     utimer.Ticket
}

// New builds a detector. emit is invoked from inside Service, one event per
// pattern; it must not call back into the detector.
func New(timers *utimer.Service, read PinReader, cfg Config, emit func(Event)) *Detector {
	if timers == nil || read == nil || emit == nil {
		panic("button: nil dependency")
	}
	d := &Detector{
		timers: timers,
		read:   read,
		cfg:    cfg,
		emit:   emit,
	}
	d.raw = d.logical()
	d.stable = d.raw
	return d
}

// IsPressed reports the debounced level.
func (d *Detector) IsPressed() bool { return d.stable }

func (d *Detector) logical() bool {
	l := d.read()
	if d.cfg.ActiveLow {
		return !l
	}
	return l
}

// Service samples the input and advances the pattern windows by one poll.
func (d *Detector) Service() {
	raw := d.logical()
	if raw != d.raw {
		d.raw = raw
		if d.cfg.DebounceUS > 0 {
			d.bounce = d.timers.NewTicket(d.cfg.DebounceUS)
			d.bouncing = true
		}
	}

	if d.bouncing && d.timers.HasExpired(d.bounce) {
		d.bouncing = false
	}
	if !d.bouncing && d.raw != d.stable {
		if d.raw {
			d.onPress()
		} else {
			d.onRelease()
		}
	}

	if d.holdArmed && d.stable && d.timers.HasExpired(d.hold) {
		d.holdArmed = false
		d.clicks = 0
		d.gapOpen = false
		d.emit(EventHold)
	}

	if d.gapOpen && !d.stable && d.timers.HasExpired(d.gap) {
		d.closePattern()
	}
}

func (d *Detector) onPress() {
	d.stable = true
	d.emit(EventPressed)
	if d.cfg.HoldUS > 0 {
		d.hold = d.timers.NewTicket(d.cfg.HoldUS)
		d.holdArmed = true
	}
}

func (d *Detector) onRelease() {
	d.stable = false
	wasHold := d.cfg.HoldUS > 0 && !d.holdArmed
	d.holdArmed = false
	d.emit(EventReleased)
	if wasHold {
		// The hold already consumed this press.
		return
	}
	d.clicks++
	if d.cfg.ClickGapUS == 0 {
		d.closePattern()
		return
	}
	d.gap = d.timers.NewTicket(d.cfg.ClickGapUS)
	d.gapOpen = true
}

func (d *Detector) closePattern() {
	if d.clicks >= 2 {
		d.emit(EventDoubleClick)
	} else if d.clicks == 1 {
		d.emit(EventClick)
	}
	d.clicks = 0
	d.gapOpen = false
}
