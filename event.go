package compute

import (
	"github.com/gogpu/compute/driver"
)

// Event is the completion token of one asynchronous device command.
// Events are returned by every submission (transfers, fills, kernel
// invocations) and are the only ordering primitive: passing an Event as
// a dependency to a later submission defers that submission until the
// command behind the Event has completed.
//
// A nil *Event, or an Event whose underlying command is nil, is always
// considered already complete: Wait returns immediately and the Event
// contributes nothing to a dependency list. Events may be shared freely;
// the underlying command is kept alive as long as any Event references it.
type Event struct {
	q   driver.Queue
	cmd driver.Command
}

// newEvent wraps a driver command. A nil cmd yields an already-complete
// Event.
func newEvent(q driver.Queue, cmd driver.Command) *Event {
	return &Event{q: q, cmd: cmd}
}

// Done reports whether the Event carries no pending command.
func (e *Event) Done() bool {
	return e == nil || e.cmd == nil
}

// Wait blocks the calling goroutine until the underlying command has
// finished. Waiting on an already-complete Event is a no-op. A wait
// failure is fatal to the command and surfaced as a *SubmitError; it is
// never retried, since a failed wait generally indicates a broken
// device or queue state.
func (e *Event) Wait() error {
	if e == nil || e.cmd == nil {
		return nil
	}
	if err := e.cmd.Wait(); err != nil {
		return submitErr("Wait", err)
	}
	return nil
}

// WaitAll blocks until every listed Event has completed. Already-complete
// Events are filtered out and the remainder is waited on with one
// combined driver call, which is far cheaper than waiting on each Event
// individually.
func WaitAll(events ...*Event) error {
	var (
		q    driver.Queue
		cmds []driver.Command
	)
	for _, e := range events {
		if e == nil || e.cmd == nil {
			continue
		}
		if q == nil {
			q = e.q
		}
		cmds = append(cmds, e.cmd)
	}
	if len(cmds) == 0 {
		return nil
	}
	if err := q.WaitAll(cmds); err != nil {
		return submitErr("WaitAll", err)
	}
	return nil
}

// gatherDeps appends the pending driver commands of events to scratch
// and returns it. scratch is truncated first: stale entries from a
// previous submission must never ride along into a new one.
func gatherDeps(scratch []driver.Command, events []*Event) []driver.Command {
	scratch = scratch[:0]
	for _, e := range events {
		if e == nil || e.cmd == nil {
			continue
		}
		scratch = append(scratch, e.cmd)
	}
	return scratch
}
