package domain

import (
	"encoding/json"
	"testing"
)

func testItems(n int) []WorkItem {
	items := make([]WorkItem, n)
	for i := range items {
		items[i] = WorkItem{URL: "https://example.com/post", Title: "Post"}
	}
	return items
}

func TestNewRunStateAssignsIndices(t *testing.T) {
	s := NewRunState("abc", "https://example.com", testItems(3))

	for i, item := range s.Items {
		if item.Index != i {
			t.Errorf("item %d has index %d", i, item.Index)
		}
	}
	if s.Status != RunStatusInProgress {
		t.Errorf("expected in_progress, got %s", s.Status)
	}
	if s.NextIndex != 0 {
		t.Errorf("expected next_index 0, got %d", s.NextIndex)
	}
}

func TestSetResultWriteOnce(t *testing.T) {
	s := NewRunState("abc", "https://example.com", testItems(2))

	if err := s.SetResult(Success(1, json.RawMessage(`{"a":1}`))); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := s.SetResult(Success(1, json.RawMessage(`{"a":2}`))); err == nil {
		t.Fatal("expected second write to index 1 to fail")
	}
	if string(s.Results[1].Value) != `{"a":1}` {
		t.Errorf("result was overwritten: %s", s.Results[1].Value)
	}
}

func TestSetResultOutOfRange(t *testing.T) {
	s := NewRunState("abc", "https://example.com", testItems(2))

	if err := s.SetResult(Success(2, nil)); err == nil {
		t.Error("expected out of range error for index 2")
	}
	if err := s.SetResult(Success(-1, nil)); err == nil {
		t.Error("expected out of range error for index -1")
	}
}

func TestRemaining(t *testing.T) {
	s := NewRunState("abc", "https://example.com", testItems(5))
	_ = s.SetResult(Success(0, nil))
	_ = s.SetResult(Success(1, nil))
	_ = s.SetResult(Success(2, nil))

	got := s.Remaining()
	if len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Errorf("expected [3 4], got %v", got)
	}
	if s.IsComplete() {
		t.Error("run should not be complete")
	}

	_ = s.SetResult(Success(3, nil))
	_ = s.SetResult(Success(4, nil))
	if !s.IsComplete() {
		t.Error("run should be complete")
	}
	if len(s.Remaining()) != 0 {
		t.Errorf("expected no remaining, got %v", s.Remaining())
	}
}

func TestAdvanceNextIndexMonotonic(t *testing.T) {
	s := NewRunState("abc", "https://example.com", testItems(5))

	s.AdvanceNextIndex(3)
	s.AdvanceNextIndex(1)
	if s.NextIndex != 3 {
		t.Errorf("next_index went backwards: %d", s.NextIndex)
	}
	s.AdvanceNextIndex(5)
	if s.NextIndex != 5 {
		t.Errorf("expected 5, got %d", s.NextIndex)
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := NewRunState("abc", "https://example.com", testItems(2))
	_ = s.SetResult(Failure(0, errSentinel))

	c := s.Clone()
	_ = s.SetResult(Success(1, nil))
	s.Items[0].Title = "mutated"

	if len(c.Results) != 1 {
		t.Errorf("clone saw later write: %d results", len(c.Results))
	}
	if c.Items[0].Title == "mutated" {
		t.Error("clone shares items slice")
	}
}

func TestResultSliceOrdering(t *testing.T) {
	s := NewRunState("abc", "https://example.com", testItems(3))
	_ = s.SetResult(Success(2, json.RawMessage(`"c"`)))
	_ = s.SetResult(Success(0, json.RawMessage(`"a"`)))

	out := s.ResultSlice()
	if len(out) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out))
	}
	if string(out[0].Value) != `"a"` || string(out[2].Value) != `"c"` {
		t.Errorf("results not index-aligned: %+v", out)
	}
	if out[1].OK {
		t.Error("missing slot should not be OK")
	}
}

func TestMarkCompletedStatuses(t *testing.T) {
	mixed := NewRunState("m1x", "https://example.com", testItems(2))
	_ = mixed.SetResult(Success(0, nil))
	_ = mixed.SetResult(Failure(1, errSentinel))
	mixed.MarkCompleted()
	if mixed.Status != RunStatusCompleted {
		t.Errorf("mixed run status %s, want completed", mixed.Status)
	}
	if mixed.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}

	allFailed := NewRunState("fa1l", "https://example.com", testItems(2))
	_ = allFailed.SetResult(Failure(0, errSentinel))
	_ = allFailed.SetResult(Failure(1, errSentinel))
	allFailed.MarkCompleted()
	if allFailed.Status != RunStatusFailed {
		t.Errorf("all-failed run status %s, want failed", allFailed.Status)
	}
}

var errSentinel = errString("boom")

type errString string

func (e errString) Error() string { return string(e) }
