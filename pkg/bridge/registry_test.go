package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hikevindiaz/voicebridge/pkg/realtime"
)

func newIdleSession(callID string) (*Session, *fakeConn, *fakeLink) {
	conn := newFakeConn(callID)
	link := newFakeLink()
	s := NewSession(SessionParams{Conn: conn, Link: link, Config: SessionConfig{}})
	return s, conn, link
}

func TestRegistryRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	s1, _, _ := newIdleSession("CA1")
	if err := r.Register(s1); err != nil {
		t.Fatalf("Register: %v", err)
	}

	s2, _, _ := newIdleSession("CA1")
	if err := r.Register(s2); !errors.Is(err, ErrDuplicateCall) {
		t.Errorf("duplicate Register: got %v, want ErrDuplicateCall", err)
	}

	if got, ok := r.Lookup("CA1"); !ok || got != s1 {
		t.Errorf("Lookup returned %v, %v", got, ok)
	}
	if _, ok := r.Lookup("CAnope"); ok {
		t.Error("Lookup found unregistered call")
	}
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	s1, _, _ := newIdleSession("CA1")
	r.Register(s1)

	// Unregistering a different session under the same ID is a no-op.
	s2, _, _ := newIdleSession("CA1")
	r.Unregister(s2)
	if _, ok := r.Lookup("CA1"); !ok {
		t.Fatal("wrong session unregistered")
	}

	r.Unregister(s1)
	if _, ok := r.Lookup("CA1"); ok {
		t.Error("session still registered")
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d", r.Len())
	}
}

func TestRegistrySnapshotSorted(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"CAc", "CAa", "CAb"} {
		s, _, _ := newIdleSession(id)
		if err := r.Register(s); err != nil {
			t.Fatalf("Register %s: %v", id, err)
		}
	}
	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot len = %d", len(snap))
	}
	for i, want := range []string{"CAa", "CAb", "CAc"} {
		if snap[i].CallID != want {
			t.Errorf("snap[%d] = %q, want %q", i, snap[i].CallID, want)
		}
	}
}

func TestRegistryConcurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s, _, _ := newIdleSession(string(rune('A' + n)))
			r.Register(s)
			r.Lookup(s.CallID())
			r.Snapshot()
			r.Unregister(s)
		}(i)
	}
	wg.Wait()
	if r.Len() != 0 {
		t.Errorf("Len = %d after churn", r.Len())
	}
}

func TestRegistryTerminateAll(t *testing.T) {
	r := NewRegistry()
	var errChs []chan error
	for _, id := range []string{"CA1", "CA2"} {
		s, conn, link := newIdleSession(id)
		if err := r.Register(s); err != nil {
			t.Fatalf("Register: %v", err)
		}
		errCh := make(chan error, 1)
		go func() { errCh <- s.Run(context.Background()) }()
		errChs = append(errChs, errCh)
		link.events <- ModelEvent{Event: &realtime.ServerEvent{Type: realtime.EventSessionUpdated}}
		_ = conn
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.TerminateAll(ctx); err != nil {
		t.Fatalf("TerminateAll: %v", err)
	}
	for _, ch := range errChs {
		select {
		case <-ch:
		default:
			t.Error("session still running after TerminateAll")
		}
	}
}
