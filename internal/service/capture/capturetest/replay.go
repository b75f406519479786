// Package capturetest provides in-memory frame sources for tests of the
// stream, transcode and HTTP layers.
package capturetest

import (
	"sync"

	"roadscan/internal/service/capture"

	"gocv.io/x/gocv"
)

// Replay is a capture.Source that hands out copies of a fixed list of images.
type Replay struct {
	mu     sync.Mutex
	frames []gocv.Mat
	next   int
	seq    uint64
	live   bool
	closed bool
}

// NewReplay creates a Replay over frames. The Replay takes ownership of the
// Mats and closes them on Close. A live Replay loops forever.
func NewReplay(live bool, frames ...gocv.Mat) *Replay {
	return &Replay{frames: frames, live: live}
}

// Next returns a clone of the next stored image.
func (r *Replay) Next() (capture.Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || len(r.frames) == 0 {
		return capture.Frame{}, capture.ErrEndOfStream
	}
	if r.next >= len(r.frames) {
		if !r.live {
			return capture.Frame{}, capture.ErrEndOfStream
		}
		r.next = 0
	}

	mat := r.frames[r.next].Clone()
	r.next++
	r.seq++
	return capture.Frame{Mat: mat, Seq: r.seq}, nil
}

// Live reports whether the replay loops.
func (r *Replay) Live() bool {
	return r.live
}

// Closed reports whether Close has been called.
func (r *Replay) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close releases the stored images.
func (r *Replay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	for _, m := range r.frames {
		m.Close()
	}
	return nil
}
