package mediastream

import (
	"testing"
	"time"
)

func TestRingFIFO(t *testing.T) {
	r := newRing[int](8)
	for i := 1; i <= 5; i++ {
		if evicted := r.Push(i); evicted {
			t.Fatalf("Push(%d) evicted from a non-full ring", i)
		}
	}

	cancel := make(chan struct{})
	for i := 1; i <= 5; i++ {
		got, err := r.Next(cancel)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if got != i {
			t.Errorf("Next = %d; want %d", got, i)
		}
	}
}

func TestRingDropsOldest(t *testing.T) {
	r := newRing[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}

	if got := r.Dropped(); got != 2 {
		t.Errorf("Dropped = %d; want 2", got)
	}

	cancel := make(chan struct{})
	want := []int{3, 4, 5}
	for _, w := range want {
		got, err := r.Next(cancel)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if got != w {
			t.Errorf("Next = %d; want %d", got, w)
		}
	}
}

func TestRingClear(t *testing.T) {
	r := newRing[int](8)
	for i := 0; i < 4; i++ {
		r.Push(i)
	}
	if n := r.Clear(); n != 4 {
		t.Errorf("Clear = %d; want 4", n)
	}
	if n := r.Len(); n != 0 {
		t.Errorf("Len after Clear = %d; want 0", n)
	}

	// The ring keeps working after a clear.
	r.Push(42)
	got, err := r.Next(make(chan struct{}))
	if err != nil {
		t.Fatalf("Next after Clear: %v", err)
	}
	if got != 42 {
		t.Errorf("Next = %d; want 42", got)
	}
}

func TestRingNextBlocksUntilPush(t *testing.T) {
	r := newRing[string](4)
	done := make(chan string, 1)

	go func() {
		v, err := r.Next(make(chan struct{}))
		if err != nil {
			done <- "error: " + err.Error()
			return
		}
		done <- v
	}()

	time.Sleep(10 * time.Millisecond)
	r.Push("hello")

	select {
	case got := <-done:
		if got != "hello" {
			t.Errorf("Next = %q; want %q", got, "hello")
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not return after Push")
	}
}

func TestRingClose(t *testing.T) {
	r := newRing[int](4)
	r.Push(1)
	r.Close()

	cancel := make(chan struct{})
	// Queued data drains first.
	if got, err := r.Next(cancel); err != nil || got != 1 {
		t.Fatalf("Next = %d, %v; want 1, nil", got, err)
	}
	if _, err := r.Next(cancel); err != ErrRingClosed {
		t.Errorf("Next on closed empty ring: err = %v; want ErrRingClosed", err)
	}
	if evicted := r.Push(2); evicted {
		t.Error("Push after Close reported eviction")
	}
}

func TestRingNextCancel(t *testing.T) {
	r := newRing[int](4)
	cancel := make(chan struct{})
	close(cancel)

	if _, err := r.Next(cancel); err != ErrRingClosed {
		t.Errorf("Next with fired cancel: err = %v; want ErrRingClosed", err)
	}
}
