package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hikevindiaz/voicebridge/pkg/jsontime"
)

func newTestOutbox(t *testing.T) *Outbox {
	t.Helper()
	o, err := NewOutbox(OutboxOptions{InMemory: true})
	if err != nil {
		t.Fatalf("NewOutbox: %v", err)
	}
	t.Cleanup(func() { o.Close() })
	return o
}

func testTurn(callID, text string, sp Speaker) TranscriptTurn {
	now := jsontime.Milli(time.Now())
	return TranscriptTurn{CallID: callID, Speaker: sp, Text: text, StartedAt: now, EndedAt: now}
}

func TestOutboxEmitAndPending(t *testing.T) {
	o := newTestOutbox(t)
	ctx := context.Background()

	turns := []TranscriptTurn{
		testTurn("CA1", "hello", SpeakerCaller),
		testTurn("CA1", "hi there", SpeakerAssistant),
		testTurn("CA2", "other call", SpeakerCaller),
	}
	for _, turn := range turns {
		if err := o.Emit(ctx, turn); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}

	pending, err := o.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("got %d pending, want 3", len(pending))
	}

	// Entries for the same call keep emit order.
	var ca1 []string
	for _, e := range pending {
		if e.Turn.CallID == "CA1" {
			ca1 = append(ca1, e.Turn.Text)
		}
	}
	if len(ca1) != 2 || ca1[0] != "hello" || ca1[1] != "hi there" {
		t.Errorf("CA1 turns out of order: %v", ca1)
	}
}

func TestOutboxDrain(t *testing.T) {
	o := newTestOutbox(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := o.Emit(ctx, testTurn("CA1", "turn", SpeakerCaller)); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}

	sink := NewMemoryEmitter()
	n, err := o.Drain(ctx, sink)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if n != 5 {
		t.Errorf("drained %d, want 5", n)
	}
	if got := len(sink.Turns()); got != 5 {
		t.Errorf("sink has %d turns, want 5", got)
	}

	pending, err := o.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("still %d pending after drain", len(pending))
	}
}

type failingEmitter struct {
	allow int
	seen  int
}

func (f *failingEmitter) Emit(context.Context, TranscriptTurn) error {
	if f.seen >= f.allow {
		return errors.New("sink down")
	}
	f.seen++
	return nil
}

func TestOutboxDrainStopsOnSinkError(t *testing.T) {
	o := newTestOutbox(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := o.Emit(ctx, testTurn("CA1", "turn", SpeakerCaller)); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}

	sink := &failingEmitter{allow: 2}
	n, err := o.Drain(ctx, sink)
	if err == nil {
		t.Fatal("want sink error")
	}
	if n != 2 {
		t.Errorf("delivered %d before failure, want 2", n)
	}

	pending, _ := o.Pending(ctx)
	if len(pending) != 2 {
		t.Errorf("%d pending after partial drain, want 2", len(pending))
	}
}
