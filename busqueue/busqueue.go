// Package busqueue serializes transaction requests from several callers
// onto one seri2c engine. The engine itself rejects a Begin while busy and
// queues nothing; this package is the backlog layered in front of it.
//
// The queue is as cooperative as the engine: Submit only appends, and all
// pumping happens inside Service, called from the same scheduler tick that
// drives the engine.
package busqueue

import (
	"drivercode-go/seri2c"
)

// Request describes one transaction. RegLen 0 means no register phase;
// 1..4 selects register addressing with Reg transmitted most significant
// first. TX/RX follow the engine's task shapes: TX only is a write, RX only
// a read, both a combined write-then-read.
type Request struct {
	Addr   uint16
	Reg    uint32
	RegLen int
	TX     []byte
	RX     []byte

	// Done, when set, is invoked from Service on the tick the transaction
	// settles, with the engine's accumulated flags (0 on success).
	Done func(seri2c.Flags)
}

// Queue is a bounded FIFO in front of one engine.
type Queue struct {
	eng     *Queueable
	pending []Request
	limit   int
	active  bool
	cur     Request
	closed  bool
}

// Queueable is the engine surface the queue drives. *seri2c.Engine
// satisfies it; tests substitute fakes.
type Queueable struct {
	Begin   func(r Request) bool
	Service func() bool
	Flags   func() seri2c.Flags
	Abort   func()
}

// Engine adapts a seri2c engine for queueing.
func Engine(e *seri2c.Engine) *Queueable {
	return &Queueable{
		Begin: func(r Request) bool {
			switch {
			case r.RegLen > 0 && len(r.RX) > 0:
				return e.BeginRegisterRead(r.Addr, r.Reg, r.RegLen, r.RX)
			case r.RegLen > 0:
				return e.BeginRegisterWrite(r.Addr, r.Reg, r.RegLen, r.TX)
			case len(r.TX) > 0 && len(r.RX) > 0:
				return e.BeginWriteRead(r.Addr, r.TX, r.RX)
			case len(r.RX) > 0:
				return e.BeginRead(r.Addr, r.RX)
			default:
				return e.BeginWrite(r.Addr, r.TX)
			}
		},
		Service: e.Service,
		Flags:   e.Flags,
		Abort:   e.Abort,
	}
}

// New builds a queue holding at most limit pending requests (<=0 means a
// small default).
func New(eng *Queueable, limit int) *Queue {
	if limit <= 0 {
		limit = 8
	}
	return &Queue{eng: eng, limit: limit}
}

// Submit appends a request. Returns false when the queue is full or closed.
func (q *Queue) Submit(r Request) bool {
	if q.closed || len(q.pending) >= q.limit {
		return false
	}
	q.pending = append(q.pending, r)
	return true
}

// Len reports pending requests, not counting the active one.
func (q *Queue) Len() int { return len(q.pending) }

// Active reports whether a transaction is in flight.
func (q *Queue) Active() bool { return q.active }

// Service pumps the queue by one step: it completes the active transaction
// when the engine settles, and otherwise starts the next pending request.
// Call it on every scheduler tick.
func (q *Queue) Service() {
	if q.active {
		if !q.eng.Service() {
			return
		}
		q.finish(q.eng.Flags())
		return
	}
	if len(q.pending) == 0 {
		return
	}
	next := q.pending[0]
	if !q.eng.Begin(next) {
		// Engine is claimed by someone driving it directly; try again on
		// a later tick.
		return
	}
	q.pending = q.pending[1:]
	q.active = true
	q.cur = next
}

// Close aborts the active transaction (its Done fires with the engine's
// flags) and discards everything still pending. Further Submit calls are
// refused.
func (q *Queue) Close() {
	if q.closed {
		return
	}
	q.closed = true
	if q.active {
		q.eng.Abort()
		q.finish(q.eng.Flags())
	}
	q.pending = nil
}

func (q *Queue) finish(f seri2c.Flags) {
	q.active = false
	if q.cur.Done != nil {
		q.cur.Done(f)
	}
	q.cur = Request{}
}
