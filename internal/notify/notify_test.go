package notify

import (
	"context"
	"errors"
	"testing"
)

type recordingNotifier struct {
	events  []Event
	sendErr error
	closed  bool
}

func (r *recordingNotifier) Send(_ context.Context, ev Event) error {
	if r.sendErr != nil {
		return r.sendErr
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingNotifier) Close() error {
	r.closed = true
	return nil
}

func TestFanout_DeliversToAll(t *testing.T) {
	a := &recordingNotifier{}
	b := &recordingNotifier{}
	f := Fanout{a, b}

	ev := Event{Title: "SLA breached: Jane Doe", Severity: SeverityError}
	if err := f.Send(context.Background(), ev); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("deliveries = %d/%d, want 1/1", len(a.events), len(b.events))
	}
	if a.events[0].Title != ev.Title {
		t.Errorf("Title = %q, want %q", a.events[0].Title, ev.Title)
	}
}

func TestFanout_FailureDoesNotStopDelivery(t *testing.T) {
	boom := errors.New("slack down")
	a := &recordingNotifier{sendErr: boom}
	b := &recordingNotifier{}
	f := Fanout{a, b}

	err := f.Send(context.Background(), Event{Title: "x"})
	if !errors.Is(err, boom) {
		t.Errorf("Send() error = %v, want wrapped %v", err, boom)
	}
	if len(b.events) != 1 {
		t.Errorf("second notifier got %d events, want 1", len(b.events))
	}
}

func TestFanout_CloseAll(t *testing.T) {
	a := &recordingNotifier{}
	b := &recordingNotifier{}
	f := Fanout{a, b}

	if err := f.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if !a.closed || !b.closed {
		t.Error("not all notifiers closed")
	}
}

func TestFanout_Empty(t *testing.T) {
	var f Fanout
	if err := f.Send(context.Background(), Event{Title: "x"}); err != nil {
		t.Errorf("empty fanout Send() error: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Errorf("empty fanout Close() error: %v", err)
	}
}
