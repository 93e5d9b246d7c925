// Package progress carries worker status to the live monitor.
//
// Workers never share state with the monitor: each one owns a Reporter bound
// to its name and a send-only end of a single buffered channel, and the
// monitor is that channel's only consumer.
package progress

import "fmt"

// Status is an immutable progress record sent by a worker.
type Status struct {
	Name    string
	Message string
	Done    bool
	// Err is set on the final status of a worker that failed.
	Err error
}

// Reporter builds and sends Status records for one worker. The zero value
// discards everything, which is convenient for tests and one-off runs.
type Reporter struct {
	name string
	ch   chan<- Status
}

// NewReporter binds a worker name to the shared status channel.
func NewReporter(name string, ch chan<- Status) Reporter {
	return Reporter{name: name, ch: ch}
}

// Name returns the worker name used on every record.
func (r Reporter) Name() string { return r.name }

// Send publishes an intermediate status line.
func (r Reporter) Send(msg string) {
	r.emit(Status{Name: r.name, Message: msg})
}

// Sendf formats and publishes an intermediate status line.
func (r Reporter) Sendf(format string, args ...any) {
	r.Send(fmt.Sprintf(format, args...))
}

// Done publishes the final status of a successful worker.
func (r Reporter) Done(msg string) {
	r.emit(Status{Name: r.name, Message: msg, Done: true})
}

// Fail publishes the final status of a failed worker.
func (r Reporter) Fail(err error) {
	r.emit(Status{Name: r.name, Message: "failed: " + err.Error(), Done: true, Err: err})
}

func (r Reporter) emit(s Status) {
	if r.ch == nil {
		return
	}
	r.ch <- s
}
