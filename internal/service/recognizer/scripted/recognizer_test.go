package scripted

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingCallback struct {
	mu      sync.Mutex
	results []string
	finals  []string
	ended   int
}

func (c *recordingCallback) OnResult(text string, isFinal bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, text)
	if isFinal {
		c.finals = append(c.finals, text)
	}
}

func (c *recordingCallback) OnError(code string) {}

func (c *recordingCallback) OnEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ended++
}

func (c *recordingCallback) snapshot() ([]string, []string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.results...), append([]string(nil), c.finals...), c.ended
}

func TestPlayback_PartialsThenFinalPerUtterance(t *testing.T) {
	script := []Utterance{
		{Partials: []string{"hey", "hey med"}, Final: "hey med ai help"},
		{Final: "I feel fine now"},
	}
	r := New(script, time.Millisecond)
	cb := &recordingCallback{}

	if err := r.Start(context.Background(), cb); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, finals, _ := cb.snapshot()
		if len(finals) == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	results, finals, _ := cb.snapshot()
	if len(finals) != 2 {
		t.Fatalf("expected 2 finals, got %v", finals)
	}
	if finals[0] != "hey med ai help" || finals[1] != "I feel fine now" {
		t.Errorf("finals out of order: %v", finals)
	}
	if len(results) != 4 {
		t.Errorf("expected 4 results (2 partials + 2 finals), got %v", results)
	}
}

func TestStop_EmitsOnEndOnce(t *testing.T) {
	r := New(nil, 0)
	cb := &recordingCallback{}

	r.Start(context.Background(), cb)
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	_, _, ended := cb.snapshot()
	if ended != 1 {
		t.Errorf("expected exactly 1 OnEnd, got %d", ended)
	}
	if r.Running() {
		t.Error("expected not running after Stop")
	}
}

func TestEmit_DroppedWhenNotRunning(t *testing.T) {
	r := New(nil, 0)
	cb := &recordingCallback{}

	r.Start(context.Background(), cb)
	r.Stop()

	r.EmitResult("late result", true)
	results, _, _ := cb.snapshot()
	if len(results) != 0 {
		t.Errorf("expected no results after Stop, got %v", results)
	}
}
