package stream

import (
	"sync/atomic"

	"roadscan/internal/models"
)

type slot struct {
	batch models.Batch
	read  atomic.Bool
}

// State holds the most recent detection batch. Writers overwrite, readers
// never block, and only the newest batch is ever observable.
type State struct {
	latest  atomic.Pointer[slot]
	dropped atomic.Uint64
}

// NewState creates an empty State.
func NewState() *State {
	return &State{}
}

// Publish replaces the current batch. A batch replaced before anyone read it
// is counted as dropped.
func (s *State) Publish(batch models.Batch) {
	old := s.latest.Swap(&slot{batch: batch.NonNil()})
	if old != nil && !old.read.Load() {
		s.dropped.Add(1)
	}
}

// Latest returns the newest batch, or an empty batch if none was published.
// Callers must not modify the result.
func (s *State) Latest() models.Batch {
	cur := s.latest.Load()
	if cur == nil {
		return models.Batch{}
	}
	cur.read.Store(true)
	return cur.batch
}

// Dropped returns how many batches were overwritten unread.
func (s *State) Dropped() uint64 {
	return s.dropped.Load()
}
