// cmd/busmon/main.go
//
// Host-side monitor for the trace stream a board prints over its debug
// UART. Firmware like cmd/pico-buttons emits one event per line
// ("btn0 click", "i2c0 err nak|timeout", free-form otherwise); busmon tails
// the port, turns known lines into structured log records and keeps
// per-source counters it prints on exit.
package main

import (
	"bufio"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/tarm/serial"
)

// ---------- Configuration ----------

const (
	defaultBaud    = 115200
	maxLineLength  = 512
	counterDumpMin = 1
)

// ---------- Line parsing ----------

// event is one parsed trace line. Source is the first whitespace field
// ("btn0", "i2c1"); Kind the second; Detail everything after.
type event struct {
	Source string
	Kind   string
	Detail string
}

// parseLine splits a trace line into source, kind and detail. Lines with
// fewer than two fields are not events.
func parseLine(line string) (event, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return event{}, false
	}
	ev := event{Source: fields[0], Kind: fields[1]}
	if len(fields) > 2 {
		ev.Detail = strings.Join(fields[2:], " ")
	}
	return ev, true
}

func (ev event) isError() bool {
	return ev.Kind == "err" || ev.Kind == "fault"
}

// ---------- Monitor ----------

type monitor struct {
	log    zerolog.Logger
	counts map[string]int
	errs   int
}

func newMonitor(log zerolog.Logger) *monitor {
	return &monitor{log: log, counts: make(map[string]int)}
}

func (m *monitor) handle(line string) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return
	}
	ev, ok := parseLine(line)
	if !ok {
		m.log.Debug().Str("line", line).Msg("unparsed")
		return
	}
	m.counts[ev.Source+" "+ev.Kind]++
	var rec *zerolog.Event
	if ev.isError() {
		m.errs++
		rec = m.log.Warn()
	} else {
		rec = m.log.Info()
	}
	rec.Str("source", ev.Source).Str("kind", ev.Kind).Str("detail", ev.Detail).Msg("event")
}

func (m *monitor) dump() {
	keys := make([]string, 0, len(m.counts))
	for k, n := range m.counts {
		if n >= counterDumpMin {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		m.log.Info().Str("event", k).Int("count", m.counts[k]).Msg("total")
	}
	m.log.Info().Int("errors", m.errs).Msg("monitor done")
}

// tail reads lines from the port until EOF or stop closes.
func (m *monitor) tail(r io.Reader, stop <-chan os.Signal) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, maxLineLength), maxLineLength)
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		for sc.Scan() {
			lines <- sc.Text()
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-stop:
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := <-errc; err != nil {
					return errors.Wrap(err, "serial read")
				}
				return nil
			}
			m.handle(line)
		}
	}
}

// ---------- Main ----------

func main() {
	var device string
	var baud int
	var levelFlag string

	pflag.StringVarP(&device, "port", "p", "/dev/ttyACM0", "Serial device to monitor")
	pflag.IntVarP(&baud, "baud", "b", defaultBaud, "Baud rate")
	pflag.StringVarP(&levelFlag, "level", "l", "info", "Set log level")
	pflag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if level, err := zerolog.ParseLevel(levelFlag); err == nil {
		logger = logger.Level(level)
	}

	// Blocking reads: the scanner goroutine sits in Read until bytes
	// arrive, and a SIGINT exits through the select in tail.
	port, err := serial.OpenPort(&serial.Config{
		Name: device,
		Baud: baud,
	})
	if err != nil {
		logger.Fatal().Err(errors.Wrapf(err, "open %s", device)).Msg("cannot open serial port")
	}
	defer port.Close()
	logger.Info().Str("port", device).Int("baud", baud).Msg("monitoring")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	m := newMonitor(logger)
	if err := m.tail(port, stop); err != nil {
		logger.Error().Err(err).Msg("monitor stopped")
	}
	m.dump()
}
