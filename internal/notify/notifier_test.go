package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSender struct {
	name string
	sent []string
	err  error
}

func (f *fakeSender) Send(ctx context.Context, title, message string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, title+": "+message)
	return nil
}

func (f *fakeSender) Name() string { return f.name }

func TestNotifyDispatchesToAllSenders(t *testing.T) {
	a := &fakeSender{name: "a"}
	b := &fakeSender{name: "b"}
	n := NewNotifier([]Sender{a, b}, nil, testLogger())

	if err := n.Notify(context.Background(), "cycle_detected", "t", "m"); err != nil {
		t.Fatalf("Notify returned error: %v", err)
	}
	if len(a.sent) != 1 || len(b.sent) != 1 {
		t.Fatalf("expected both senders to receive the notification, got a=%v b=%v", a.sent, b.sent)
	}
}

func TestNotifyFiltersUnknownEventType(t *testing.T) {
	a := &fakeSender{name: "a"}
	n := NewNotifier([]Sender{a}, []string{"cycle_detected"}, testLogger())

	if err := n.Notify(context.Background(), "heartbeat", "t", "m"); err != nil {
		t.Fatalf("Notify returned error: %v", err)
	}
	if len(a.sent) != 0 {
		t.Fatalf("expected the filtered event to not reach the sender, got %v", a.sent)
	}
}

func TestNotifyAllBypassesFilter(t *testing.T) {
	a := &fakeSender{name: "a"}
	n := NewNotifier([]Sender{a}, []string{"cycle_detected"}, testLogger())

	if err := n.NotifyAll(context.Background(), "t", "m"); err != nil {
		t.Fatalf("NotifyAll returned error: %v", err)
	}
	if len(a.sent) != 1 {
		t.Fatalf("expected NotifyAll to reach the sender regardless of the event filter, got %v", a.sent)
	}
}

func TestNotifyOneSenderFailureDoesNotBlockOthers(t *testing.T) {
	failing := &fakeSender{name: "failing", err: errors.New("network error")}
	ok := &fakeSender{name: "ok"}
	n := NewNotifier([]Sender{failing, ok}, nil, testLogger())

	err := n.Notify(context.Background(), "cycle_detected", "t", "m")
	if err == nil {
		t.Fatalf("expected a combined error when one sender fails")
	}
	if len(ok.sent) != 1 {
		t.Fatalf("expected the working sender to still receive the notification, got %v", ok.sent)
	}
}

func TestNotifyWithNoSendersIsANoOp(t *testing.T) {
	n := NewNotifier(nil, nil, testLogger())
	if err := n.Notify(context.Background(), "cycle_detected", "t", "m"); err != nil {
		t.Fatalf("Notify with no senders returned error: %v", err)
	}
}
