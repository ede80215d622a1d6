//go:build rp2040

// cmd/pico-buttons/main.go
//
// Pico firmware that watches a couple of push buttons and prints one trace
// line per detected event on UART0, in the "<source> <kind>" form that
// cmd/busmon parses on the host.
package main

import (
	"machine"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"drivercode-go/button"
	"drivercode-go/utimer"
	"drivercode-go/x/conv"
)

// ---------- Configuration ----------

const (
	uartBaud = 115200

	// Scheduler tick. Everything below is polled at this rate.
	tickPeriod = 500 * time.Microsecond
	tickUS     = uint32(tickPeriod / time.Microsecond)

	// Software counter layout: one tick per microsecond, 1 ms periods.
	ticksPerUS     = 1
	ticksPerPeriod = 1000

	// Heartbeat line interval, so busmon can tell a quiet board from a
	// dead one.
	heartbeatUS = 10_000_000
)

var buttonPins = []machine.Pin{machine.GP2, machine.GP3}

// ---------- Software counter ----------

// clock is a software stand-in for a free-running timer: the main loop
// advances it once per tick instead of a counter ISR.
type clock struct {
	ticks  uint32
	timers *utimer.Service
}

func newClock() *clock {
	c := &clock{}
	c.timers = utimer.New(ticksPerUS, ticksPerPeriod, func() uint32 {
		return c.ticks
	})
	return c
}

func (c *clock) advance(us uint32) {
	for ; us > 0; us-- {
		c.ticks++
		if c.ticks >= ticksPerPeriod {
			c.ticks = 0
			c.timers.PeriodISRHandler()
		}
	}
}

// ---------- Trace output ----------

type tracer struct{ u *uartx.UART }

func (t *tracer) event(source string, ev button.Event) {
	t.line(source + " " + ev.String())
}

func (t *tracer) line(s string) {
	_, _ = t.u.Write([]byte(s + "\r\n"))
}

// alive emits "sys alive <seconds>" without going through fmt.
func (t *tracer) alive(uptimeSec uint64) {
	buf := make([]byte, 0, 32)
	buf = append(buf, "sys alive "...)
	buf = conv.AppendUint(buf, uptimeSec)
	buf = append(buf, '\r', '\n')
	_, _ = t.u.Write(buf)
}

// ---------- Main ----------

func main() {
	// Give USB serial a moment before the first trace line.
	time.Sleep(1500 * time.Millisecond)

	u := uartx.UART0
	_ = u.Configure(uartx.UARTConfig{
		BaudRate: uartBaud,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})
	out := &tracer{u: u}
	out.line("pico-buttons boot")

	clk := newClock()

	names := []string{"btn0", "btn1"}
	detectors := make([]*button.Detector, len(buttonPins))
	for i, pin := range buttonPins {
		pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
		pin := pin
		name := names[i]
		cfg := button.DefaultConfig()
		cfg.ActiveLow = true
		detectors[i] = button.New(clk.timers, pin.Get, cfg, func(ev button.Event) {
			out.event(name, ev)
		})
	}

	heartbeat := clk.timers.NewTicket(heartbeatUS)
	var uptime uint64
	for {
		time.Sleep(tickPeriod)
		clk.advance(tickUS)
		for _, d := range detectors {
			d.Service()
		}
		if clk.timers.HasExpired(heartbeat) {
			uptime += heartbeatUS / 1_000_000
			out.alive(uptime)
			heartbeat = clk.timers.NewTicket(heartbeatUS)
		}
	}
}
