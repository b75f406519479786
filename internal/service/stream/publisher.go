package stream

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"roadscan/internal/apperr"
	"roadscan/internal/logger"
	"roadscan/internal/models"
	"roadscan/internal/service/ai"
	"roadscan/internal/service/capture"
)

// Boundary separates JPEG parts of the multipart stream.
const Boundary = "frame"

// ContentType is the response type of an MJPEG stream.
const ContentType = "multipart/x-mixed-replace; boundary=" + Boundary

// BatchBroadcaster receives every batch the publisher produces.
type BatchBroadcaster interface {
	BroadcastBatch(batch models.Batch)
}

// Publisher turns a frame source into an annotated MJPEG stream, one
// pipeline instance per client.
type Publisher struct {
	open   capture.Opener
	infer  ai.Inferer
	state  *State
	mirror *Mirror
	hub    BatchBroadcaster
	logger *logger.Logger
}

// NewPublisher creates a Publisher. mirror and hub may be nil.
func NewPublisher(open capture.Opener, infer ai.Inferer, state *State, mirror *Mirror, hub BatchBroadcaster, logger *logger.Logger) *Publisher {
	return &Publisher{
		open:   open,
		infer:  infer,
		state:  state,
		mirror: mirror,
		hub:    hub,
		logger: logger,
	}
}

// State returns the state batches are published to.
func (p *Publisher) State() *State {
	return p.state
}

// Open acquires a frame source for one stream.
func (p *Publisher) Open() (capture.Source, error) {
	src, err := p.open()
	if err != nil {
		return nil, apperr.Resource("open stream", err)
	}
	return src, nil
}

// Run streams src to w until the source ends, a write fails or ctx is done.
// It owns src and closes it. Client disconnects end the stream without error.
func (p *Publisher) Run(ctx context.Context, src capture.Source, w http.ResponseWriter, threshold float64) error {
	defer src.Close()

	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "close")

	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(Boundary); err != nil {
		return err
	}
	rc := http.NewResponseController(w)

	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, err := src.Next()
		if errors.Is(err, capture.ErrEndOfStream) {
			if src.Live() {
				p.logger.Warning("Capture device stopped delivering frames")
			}
			mw.Close()
			return nil
		}
		if err != nil {
			return apperr.Resource("read frame", err)
		}

		data, err := p.render(ctx, frame, threshold)
		if err != nil {
			if apperr.Is(err, apperr.KindTransport) {
				return nil
			}
			p.logger.Warning("Skipping frame %d: %v", frame.Seq, err)
			continue
		}

		if err := writePart(mw, data); err != nil {
			return nil
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return nil
		}

		if p.mirror != nil {
			p.mirror.Update(data)
		}
	}
}

// render runs one frame through infer, publish, annotate and encode. It
// consumes frame.
func (p *Publisher) render(ctx context.Context, frame capture.Frame, threshold float64) ([]byte, error) {
	defer frame.Close()

	batch, err := p.infer.Infer(ctx, frame.Mat, threshold)
	switch {
	case apperr.Is(err, apperr.KindTransport):
		return nil, err
	case err != nil:
		p.logger.Warning("Inference failed on frame %d, streaming it raw: %v", frame.Seq, err)
		batch = nil
	default:
		p.state.Publish(batch)
		if p.hub != nil {
			p.hub.BroadcastBatch(batch)
		}
	}

	if err := ai.Annotate(&frame.Mat, batch); err != nil {
		return nil, err
	}
	return ai.EncodeJPEG(frame.Mat)
}

func writePart(mw *multipart.Writer, data []byte) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Type", "image/jpeg")
	header.Set("Content-Length", strconv.Itoa(len(data)))

	part, err := mw.CreatePart(header)
	if err != nil {
		return apperr.Transport("write part", err)
	}
	if _, err := part.Write(data); err != nil {
		return apperr.Transport("write part", fmt.Errorf("%d bytes: %w", len(data), err))
	}
	return nil
}
