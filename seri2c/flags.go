package seri2c

import "drivercode-go/errcode"

// Flags is the accumulated error set of one transaction. It is cleared when
// a task is accepted and only ever grows until the task reaches IDLE again;
// a fully successful task leaves it at zero.
type Flags uint8

const (
	FlagTimeout Flags = 1 << iota
	FlagNAK
	FlagCollision
	FlagRxOverflow
	FlagFault
)

// Has reports whether all bits of mask are set.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }

// Err maps the flag set to a stable error code, nil when no flag is set.
// Timeout wins over the bus-level conditions because it is the one the
// caller must react to (stuck hardware).
func (f Flags) Err() error {
	switch {
	case f == 0:
		return nil
	case f.Has(FlagTimeout):
		return errcode.Timeout
	case f.Has(FlagNAK):
		return errcode.NAKReceived
	case f.Has(FlagCollision):
		return errcode.Collision
	case f.Has(FlagRxOverflow):
		return errcode.RxOverflow
	default:
		return errcode.BusFault
	}
}

func (f Flags) String() string {
	if f == 0 {
		return "ok"
	}
	s := ""
	add := func(name string) {
		if s != "" {
			s += "|"
		}
		s += name
	}
	if f.Has(FlagTimeout) {
		add("timeout")
	}
	if f.Has(FlagNAK) {
		add("nak")
	}
	if f.Has(FlagCollision) {
		add("collision")
	}
	if f.Has(FlagRxOverflow) {
		add("rx_overflow")
	}
	if f.Has(FlagFault) {
		add("fault")
	}
	return s
}
