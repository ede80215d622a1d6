package busqueue

import (
	"testing"

	"drivercode-go/seri2c"
)

// fakeEngine settles each accepted transaction after a fixed number of
// service calls and records the order requests were started in.
type fakeEngine struct {
	started   []uint16
	busy      bool
	callsLeft int
	settleIn  int
	flags     seri2c.Flags
	rejectAll bool
}

func (f *fakeEngine) queueable() *Queueable {
	return &Queueable{
		Begin: func(r Request) bool {
			if f.busy || f.rejectAll {
				return false
			}
			f.busy = true
			f.callsLeft = f.settleIn
			f.started = append(f.started, r.Addr)
			return true
		},
		Service: func() bool {
			if !f.busy {
				return false
			}
			f.callsLeft--
			if f.callsLeft > 0 {
				return false
			}
			f.busy = false
			return true
		},
		Flags: func() seri2c.Flags { return f.flags },
		Abort: func() { f.busy = false },
	}
}

func TestFIFOOrderAndCallbacks(t *testing.T) {
	eng := &fakeEngine{settleIn: 3}
	q := New(eng.queueable(), 4)

	var done []uint16
	submit := func(addr uint16) {
		r := Request{Addr: addr, TX: []byte{1}}
		r.Done = func(f seri2c.Flags) {
			if f != 0 {
				t.Fatalf("flags = %v for addr %#02x", f, addr)
			}
			done = append(done, addr)
		}
		if !q.Submit(r) {
			t.Fatalf("submit %#02x failed", addr)
		}
	}
	submit(0x10)
	submit(0x11)
	submit(0x12)

	for i := 0; i < 64 && len(done) < 3; i++ {
		q.Service()
	}
	if len(done) != 3 {
		t.Fatalf("%d callbacks fired, want 3", len(done))
	}
	for i, addr := range []uint16{0x10, 0x11, 0x12} {
		if eng.started[i] != addr || done[i] != addr {
			t.Fatalf("order: started=%v done=%v", eng.started, done)
		}
	}
}

func TestBoundedSubmit(t *testing.T) {
	eng := &fakeEngine{settleIn: 1}
	q := New(eng.queueable(), 2)

	if !q.Submit(Request{Addr: 1}) || !q.Submit(Request{Addr: 2}) {
		t.Fatal("submits under the limit failed")
	}
	if q.Submit(Request{Addr: 3}) {
		t.Fatal("submit beyond the limit succeeded")
	}
	if q.Len() != 2 {
		t.Fatalf("Len = %d, want 2", q.Len())
	}
}

func TestEngineClaimedElsewhere(t *testing.T) {
	eng := &fakeEngine{settleIn: 1, rejectAll: true}
	q := New(eng.queueable(), 2)

	q.Submit(Request{Addr: 1})
	q.Service()
	if q.Active() {
		t.Fatal("queue went active on a refused begin")
	}
	if q.Len() != 1 {
		t.Fatal("refused request dropped from the queue")
	}

	eng.rejectAll = false
	q.Service()
	if !q.Active() {
		t.Fatal("queue did not start once the engine freed up")
	}
}

func TestFailureFlagsReachCallback(t *testing.T) {
	eng := &fakeEngine{settleIn: 1, flags: seri2c.FlagNAK}
	q := New(eng.queueable(), 2)

	var got seri2c.Flags
	q.Submit(Request{Addr: 1, Done: func(f seri2c.Flags) { got = f }})
	for i := 0; i < 8; i++ {
		q.Service()
	}
	if !got.Has(seri2c.FlagNAK) {
		t.Fatalf("callback flags = %v, want nak", got)
	}
}

func TestCloseAbortsAndRefuses(t *testing.T) {
	eng := &fakeEngine{settleIn: 100}
	q := New(eng.queueable(), 4)

	fired := false
	q.Submit(Request{Addr: 1, Done: func(seri2c.Flags) { fired = true }})
	q.Submit(Request{Addr: 2})
	q.Service() // starts addr 1
	if !q.Active() {
		t.Fatal("queue not active")
	}

	q.Close()
	if !fired {
		t.Fatal("active request's callback did not fire on Close")
	}
	if q.Active() || q.Len() != 0 {
		t.Fatal("Close left work behind")
	}
	if q.Submit(Request{Addr: 3}) {
		t.Fatal("submit accepted after Close")
	}
}
