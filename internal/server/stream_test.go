package server

import (
	"errors"
	"testing"
	"time"

	"github.com/raysh454/regress/internal/regression"
)

type recordingWriter struct {
	deadlines []time.Time
	written   int
	failAfter int
	deadlined bool
}

func (w *recordingWriter) SetWriteDeadline(t time.Time) error {
	w.deadlines = append(w.deadlines, t)
	w.deadlined = true
	return nil
}

func (w *recordingWriter) WriteJSON(v any) error {
	if !w.deadlined {
		return errors.New("write without a deadline")
	}
	w.deadlined = false
	if w.failAfter > 0 && w.written >= w.failAfter {
		return errors.New("i/o timeout")
	}
	w.written++
	return nil
}

func feed(n int) <-chan regression.BatchEvent {
	ch := make(chan regression.BatchEvent, n)
	for i := 0; i < n; i++ {
		ch <- regression.BatchEvent{Type: regression.BatchEventFinished}
	}
	close(ch)
	return ch
}

func TestStreamEvents_SetsDeadlineBeforeEachWrite(t *testing.T) {
	w := &recordingWriter{}
	cancelled := false
	before := time.Now()

	if err := streamEvents(w, feed(3), time.Second, func() { cancelled = true }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.written != 3 || len(w.deadlines) != 3 {
		t.Fatalf("expected 3 writes each with a deadline, got %d writes and %d deadlines", w.written, len(w.deadlines))
	}
	for _, d := range w.deadlines {
		if d.Before(before.Add(time.Second)) {
			t.Errorf("deadline %v is earlier than the timeout", d)
		}
	}
	if cancelled {
		t.Errorf("expected the run to continue")
	}
}

func TestStreamEvents_StalledClientCancelsAndDrains(t *testing.T) {
	w := &recordingWriter{failAfter: 1}
	cancelled := false
	events := feed(5)

	err := streamEvents(w, events, time.Millisecond, func() { cancelled = true })
	if err == nil {
		t.Fatalf("expected the write error")
	}
	if !cancelled {
		t.Errorf("expected the run to be cancelled")
	}
	if len(w.deadlines) != 2 {
		t.Errorf("expected no writes after the failure, got %d attempts", len(w.deadlines))
	}
	if _, ok := <-events; ok {
		t.Errorf("expected the channel to be drained")
	}
}
