// Package timex converts between durations and hardware timer ticks.
package timex

// TicksFromUS converts a microsecond duration to hardware timer ticks.
// ticksPerUS==0 is coerced to 1 to avoid surprises with unconfigured timers.
func TicksFromUS(us uint32, ticksPerUS uint32) uint64 {
	if ticksPerUS == 0 {
		ticksPerUS = 1
	}
	return uint64(us) * uint64(ticksPerUS)
}

// USFromTicks converts hardware timer ticks to microseconds.
// ticksPerUS==0 is coerced to 1.
func USFromTicks(ticks uint64, ticksPerUS uint32) uint64 {
	if ticksPerUS == 0 {
		ticksPerUS = 1
	}
	return ticks / uint64(ticksPerUS)
}
