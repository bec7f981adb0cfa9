package calibration

import (
	"sync"
	"testing"
)

func TestTrigger(t *testing.T) {
	tr := NewTrigger()

	if tr.Consume() {
		t.Error("new trigger should be empty")
	}

	tr.Request()
	tr.Request()
	if !tr.Pending() {
		t.Error("Pending() = false after Request()")
	}
	if !tr.Consume() {
		t.Error("Consume() = false after Request()")
	}
	if tr.Consume() {
		t.Error("repeated requests should collapse into one")
	}
	if tr.Pending() {
		t.Error("Pending() = true after Consume()")
	}
}

func TestTrigger_ConcurrentRequests(t *testing.T) {
	tr := NewTrigger()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Request()
		}()
	}
	wg.Wait()

	if !tr.Consume() {
		t.Fatal("expected a pending request")
	}
	if tr.Consume() {
		t.Error("expected a single pending request")
	}
}
