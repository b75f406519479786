package stream

import (
	"errors"
	"mime/multipart"
	"net/http"
	"sync"
)

// Mirror re-serves the JPEGs of every running stream to passive viewers,
// so they never open the capture device themselves. Slow viewers skip
// frames and always get the newest one.
type Mirror struct {
	mu      sync.Mutex
	frame   []byte
	seq     uint64
	changed chan struct{}
}

// NewMirror creates an empty Mirror.
func NewMirror() *Mirror {
	return &Mirror{changed: make(chan struct{})}
}

// Update shows jpeg to every connected viewer. jpeg must not be modified
// afterwards.
func (m *Mirror) Update(jpeg []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.frame = jpeg
	m.seq++
	close(m.changed)
	m.changed = make(chan struct{})
}

// latest returns the current frame, its sequence number and a channel that
// is closed by the next Update.
func (m *Mirror) latest() ([]byte, uint64, <-chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frame, m.seq, m.changed
}

// ServeHTTP streams the mirror until the viewer disconnects.
func (m *Mirror) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "close")

	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(Boundary); err != nil {
		return
	}
	rc := http.NewResponseController(w)
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return
	}

	var sent uint64
	for {
		frame, seq, changed := m.latest()
		if seq != sent && frame != nil {
			if err := writePart(mw, frame); err != nil {
				return
			}
			if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
				return
			}
			sent = seq
		}

		select {
		case <-changed:
		case <-r.Context().Done():
			return
		}
	}
}
