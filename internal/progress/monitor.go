package progress

import (
	"fmt"
	"io"
)

const clearScreen = "\x1b[2J\x1b[1;1H"

// Monitor aggregates the last known status of every worker and redraws an
// overview each time a record arrives.
type Monitor struct {
	out   io.Writer
	clear bool

	order []string
	table map[string]Status
}

// NewMonitor prepares a monitor for the named workers. Records from names not
// listed here are tracked as well, in order of first appearance. When clear
// is set, each redraw starts by clearing the terminal.
func NewMonitor(names []string, out io.Writer, clear bool) *Monitor {
	m := &Monitor{out: out, clear: clear, table: make(map[string]Status, len(names))}
	for _, n := range names {
		m.track(Status{Name: n, Message: "<starting>"})
	}
	return m
}

func (m *Monitor) track(s Status) {
	if _, ok := m.table[s.Name]; !ok {
		m.order = append(m.order, s.Name)
	}
	m.table[s.Name] = s
}

// Run consumes ch until every known worker has reported Done, then returns
// the final status table in tracking order. It also returns if ch is closed.
func (m *Monitor) Run(ch <-chan Status) []Status {
	if m.allDone() {
		return m.Statuses()
	}
	for s := range ch {
		m.track(s)
		m.draw()
		if m.allDone() {
			break
		}
	}
	return m.Statuses()
}

func (m *Monitor) allDone() bool {
	for _, s := range m.table {
		if !s.Done {
			return false
		}
	}
	return true
}

// Statuses returns a copy of the current table in tracking order.
func (m *Monitor) Statuses() []Status {
	out := make([]Status, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.table[name])
	}
	return out
}

func (m *Monitor) draw() {
	if m.out == nil {
		return
	}
	if m.clear {
		fmt.Fprint(m.out, clearScreen)
	}
	done := 0
	for _, name := range m.order {
		s := m.table[name]
		if s.Done {
			done++
		}
		fmt.Fprintf(m.out, "[%s]: %s\r\n", name, s.Message)
	}
	fmt.Fprintf(m.out, "%d/%d done\r\n", done, len(m.order))
}
