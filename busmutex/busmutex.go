// Package busmutex arbitrates physical buses shared by several logical
// engines. One boolean slot per bus id, claimed with an atomic
// compare-and-swap so request/release stay safe across polling contexts.
//
// The table never blocks: a caller that loses the race simply tries again
// on a later scheduler tick, matching the suite's cooperative model.
package busmutex

import "sync/atomic"

// Table holds one mutex slot per bus id, 0..n-1.
type Table struct {
	slots []uint32
}

// New builds a table for n buses.
func New(n int) *Table {
	return &Table{slots: make([]uint32, n)}
}

// IsAvailable reports whether the bus exists and is currently unclaimed.
func (t *Table) IsAvailable(bus int) bool {
	if bus < 0 || bus >= len(t.slots) {
		return false
	}
	return atomic.LoadUint32(&t.slots[bus]) == 0
}

// Request tries to claim the bus. Returns true when the caller now owns it.
func (t *Table) Request(bus int) bool {
	if bus < 0 || bus >= len(t.slots) {
		return false
	}
	return atomic.CompareAndSwapUint32(&t.slots[bus], 0, 1)
}

// Release returns the bus. Releasing an unclaimed or unknown bus is a no-op.
func (t *Table) Release(bus int) {
	if bus < 0 || bus >= len(t.slots) {
		return
	}
	atomic.StoreUint32(&t.slots[bus], 0)
}
