package capture

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"roadscan/internal/apperr"

	"gocv.io/x/gocv"
)

// ErrEndOfStream is returned by Next once a source has no more frames.
var ErrEndOfStream = errors.New("end of stream")

// Frame is one decoded BGR image together with its position in the stream.
// Whoever holds a Frame owns its Mat and must Close it.
type Frame struct {
	Mat gocv.Mat
	Seq uint64
}

// Close releases the frame's pixel buffer.
func (f Frame) Close() error {
	return f.Mat.Close()
}

// Source yields frames until it is exhausted or fails.
type Source interface {
	Next() (Frame, error)
	Live() bool
	Close() error
}

// Opener acquires a fresh Source, one per pipeline instance.
type Opener func() (Source, error)

// Info describes an opened capture.
type Info struct {
	Width      int
	Height     int
	FPS        float64
	FrameCount int
}

// Capture is a Source backed by an OpenCV VideoCapture.
type Capture struct {
	name string
	vc   *gocv.VideoCapture
	live bool
	seq  uint64

	closeOnce sync.Once
	closeErr  error
}

// Open opens a camera when source is a device index ("0", "1", ...) and a
// file or stream URL otherwise.
func Open(source string) (*Capture, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, apperr.Resource("open capture", errors.New("empty source"))
	}

	if id, err := strconv.Atoi(source); err == nil {
		vc, err := gocv.OpenVideoCapture(id)
		if err != nil {
			return nil, apperr.Resource("open capture", fmt.Errorf("device %d: %w", id, err))
		}
		return newCapture(source, vc, true)
	}

	return OpenFile(source)
}

// OpenFile opens a video file or stream URL.
func OpenFile(path string) (*Capture, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, apperr.Resource("open capture", fmt.Errorf("%s: %w", path, err))
	}
	return newCapture(path, vc, false)
}

func newCapture(name string, vc *gocv.VideoCapture, live bool) (*Capture, error) {
	if !vc.IsOpened() {
		vc.Close()
		return nil, apperr.Resource("open capture", fmt.Errorf("%s: not opened", name))
	}
	return &Capture{name: name, vc: vc, live: live}, nil
}

// Next reads the next frame. A device that stops delivering frames is
// treated the same as a file reaching its end.
func (c *Capture) Next() (Frame, error) {
	mat := gocv.NewMat()
	if ok := c.vc.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return Frame{}, ErrEndOfStream
	}

	c.seq++
	return Frame{Mat: mat, Seq: c.seq}, nil
}

// Live reports whether the capture is a camera device.
func (c *Capture) Live() bool {
	return c.live
}

// Info returns the capture's frame geometry and timing.
func (c *Capture) Info() Info {
	return Info{
		Width:      int(c.vc.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(c.vc.Get(gocv.VideoCaptureFrameHeight)),
		FPS:        c.vc.Get(gocv.VideoCaptureFPS),
		FrameCount: int(c.vc.Get(gocv.VideoCaptureFrameCount)),
	}
}

// Name returns the device index or path the capture was opened with.
func (c *Capture) Name() string {
	return c.name
}

// Close releases the device or file. Safe to call more than once.
func (c *Capture) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.vc.Close()
	})
	return c.closeErr
}

// NewOpener returns an Opener that opens source on every call.
func NewOpener(source string) Opener {
	return func() (Source, error) {
		c, err := Open(source)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
