package compute

import (
	"errors"
	"testing"

	"github.com/gogpu/compute/driver"
)

// fakeCmd is a driver.Command with a canned result.
type fakeCmd struct {
	err   error
	waits int
}

func (c *fakeCmd) Wait() error {
	c.waits++
	return c.err
}

func TestEventNilIsComplete(t *testing.T) {
	var e *Event
	if !e.Done() {
		t.Error("nil Event should report Done")
	}
	if err := e.Wait(); err != nil {
		t.Errorf("nil Event Wait() = %v, want nil", err)
	}
}

func TestEventEmptyCommandIsComplete(t *testing.T) {
	e := newEvent(&stubQueue{}, nil)
	if !e.Done() {
		t.Error("Event with nil command should report Done")
	}
	if err := e.Wait(); err != nil {
		t.Errorf("Wait() = %v, want nil", err)
	}
}

func TestEventWait(t *testing.T) {
	cmd := &fakeCmd{}
	e := newEvent(&stubQueue{}, cmd)
	if e.Done() {
		t.Error("pending Event should not report Done")
	}
	if err := e.Wait(); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	if cmd.waits != 1 {
		t.Errorf("command waited %d times, want 1", cmd.waits)
	}
}

func TestEventWaitError(t *testing.T) {
	cmd := &fakeCmd{err: errors.New("device lost")}
	e := newEvent(&stubQueue{}, cmd)

	err := e.Wait()
	if err == nil {
		t.Fatal("Wait() = nil, want error")
	}
	var se *SubmitError
	if !errors.As(err, &se) {
		t.Fatalf("Wait() = %T, want *SubmitError", err)
	}
	if se.Op != "Wait" {
		t.Errorf("SubmitError.Op = %q, want %q", se.Op, "Wait")
	}
	if !errors.Is(err, cmd.err) {
		t.Error("SubmitError does not wrap the driver error")
	}
}

func TestWaitAllFiltersComplete(t *testing.T) {
	q := &stubQueue{}
	pending := newEvent(q, &fakeCmd{})

	// Nil events and complete events contribute nothing.
	if err := WaitAll(nil, newEvent(q, nil), pending); err != nil {
		t.Fatalf("WaitAll() = %v", err)
	}
	if q.waitAlls != 1 {
		t.Errorf("driver WaitAll called %d times, want 1", q.waitAlls)
	}
}

func TestWaitAllAllComplete(t *testing.T) {
	q := &stubQueue{}
	if err := WaitAll(nil, newEvent(q, nil)); err != nil {
		t.Fatalf("WaitAll() = %v", err)
	}
	if q.waitAlls != 0 {
		t.Error("WaitAll issued a driver call with no pending events")
	}
}

func TestGatherDepsResetsScratch(t *testing.T) {
	q := &stubQueue{}
	stale := []driver.Command{&fakeCmd{}, &fakeCmd{}, &fakeCmd{}}

	got := gatherDeps(stale, []*Event{newEvent(q, &fakeCmd{})})
	if len(got) != 1 {
		t.Fatalf("gatherDeps kept %d entries, want 1", len(got))
	}

	got = gatherDeps(got, nil)
	if len(got) != 0 {
		t.Errorf("gatherDeps with no events kept %d entries, want 0", len(got))
	}
}
