package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// WorkItem is one unit of input to a batch run, addressed by its position
// in the original sequence. Items are captured once when the run starts
// and never change afterwards.
type WorkItem struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// RunStatus is the lifecycle state of a batch run.
type RunStatus string

const (
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// TaskResult is the recorded outcome for a single item. Exactly one of
// Value or Error is meaningful, selected by OK.
type TaskResult struct {
	Index int             `json:"index"`
	OK    bool            `json:"ok"`
	Value json.RawMessage `json:"value,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Success builds a successful TaskResult for an index.
func Success(index int, value json.RawMessage) TaskResult {
	return TaskResult{Index: index, OK: true, Value: value}
}

// Failure builds a failed TaskResult for an index.
func Failure(index int, err error) TaskResult {
	return TaskResult{Index: index, OK: false, Error: err.Error()}
}

// RunState is the checkpoint payload for one batch run. It is the unit of
// persistence: the scheduler mutates it in memory and the checkpoint store
// writes complete snapshots of it keyed by RunID.
type RunState struct {
	RunID       string             `json:"run_id"`
	SourceURL   string             `json:"source_url"`
	Strategy    string             `json:"strategy,omitempty"`
	Items       []WorkItem         `json:"items"`
	Results     map[int]TaskResult `json:"results"`
	NextIndex   int                `json:"next_index"`
	Status      RunStatus          `json:"status"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// NewRunState creates an in-progress run over the given items. Item
// indices are assigned from position, overriding whatever the caller set.
func NewRunState(runID, sourceURL string, items []WorkItem) *RunState {
	now := time.Now()
	owned := make([]WorkItem, len(items))
	copy(owned, items)
	for i := range owned {
		owned[i].Index = i
	}
	return &RunState{
		RunID:     runID,
		SourceURL: sourceURL,
		Items:     owned,
		Results:   make(map[int]TaskResult),
		Status:    RunStatusInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetResult records the outcome for one index. Results are write-once: a
// second write to the same index is rejected so a checkpoint can never
// observe an entry changing value.
func (s *RunState) SetResult(r TaskResult) error {
	if r.Index < 0 || r.Index >= len(s.Items) {
		return fmt.Errorf("result index %d out of range [0,%d)", r.Index, len(s.Items))
	}
	if _, exists := s.Results[r.Index]; exists {
		return fmt.Errorf("result for index %d already recorded", r.Index)
	}
	if s.Results == nil {
		s.Results = make(map[int]TaskResult)
	}
	s.Results[r.Index] = r
	return nil
}

// AdvanceNextIndex moves the intake cursor forward. The cursor is
// monotonic: attempts to move it backwards are ignored.
func (s *RunState) AdvanceNextIndex(next int) {
	if next > s.NextIndex {
		s.NextIndex = next
	}
}

// Remaining returns, in order, every index that has no recorded result.
// On resume these are exactly the indices to re-dispatch, including items
// that were in flight when the process died.
func (s *RunState) Remaining() []int {
	var missing []int
	for i := range s.Items {
		if _, ok := s.Results[i]; !ok {
			missing = append(missing, i)
		}
	}
	return missing
}

// IsComplete reports whether every item has a recorded result.
func (s *RunState) IsComplete() bool {
	return len(s.Results) == len(s.Items)
}

// MarkCompleted transitions the run to its terminal state. A run whose
// every item failed terminates as failed rather than completed.
func (s *RunState) MarkCompleted() {
	now := time.Now()
	if len(s.Items) > 0 && s.FailedCount() == len(s.Items) {
		s.Status = RunStatusFailed
	} else {
		s.Status = RunStatusCompleted
	}
	s.CompletedAt = &now
	s.UpdatedAt = now
}

// ResultSlice returns results ordered by item index, one entry per item.
// Indices without a recorded result get a zero TaskResult with OK=false;
// a completed run never has any.
func (s *RunState) ResultSlice() []TaskResult {
	out := make([]TaskResult, len(s.Items))
	for i := range s.Items {
		if r, ok := s.Results[i]; ok {
			out[i] = r
		} else {
			out[i] = TaskResult{Index: i, Error: "no result recorded"}
		}
	}
	return out
}

// FailedCount returns how many recorded results are failures.
func (s *RunState) FailedCount() int {
	n := 0
	for _, r := range s.Results {
		if !r.OK {
			n++
		}
	}
	return n
}

// Clone returns a deep copy safe to hand to the checkpoint store while
// workers keep mutating the original.
func (s *RunState) Clone() *RunState {
	c := *s
	c.Items = make([]WorkItem, len(s.Items))
	copy(c.Items, s.Items)
	c.Results = make(map[int]TaskResult, len(s.Results))
	for k, v := range s.Results {
		c.Results[k] = v
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
