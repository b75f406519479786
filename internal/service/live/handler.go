package live

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"roadscan/internal/apperr"
	"roadscan/internal/logger"
	"roadscan/internal/models"
	"roadscan/internal/service/ai"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Recorder receives geotagged detections for the history.
type Recorder interface {
	Record(threshold, latitude, longitude float64, batch models.Batch)
}

// Handler runs the live detection protocol on socket connections.
type Handler struct {
	infer            ai.Inferer
	recorder         Recorder
	defaultThreshold float64
	readLimit        int64
	logger           *logger.Logger
}

// NewHandler creates a Handler. recorder may be nil. Messages larger than
// readLimit bytes end the session; zero means no limit.
func NewHandler(infer ai.Inferer, recorder Recorder, defaultThreshold float64, readLimit int64, logger *logger.Logger) *Handler {
	return &Handler{
		infer:            infer,
		recorder:         recorder,
		defaultThreshold: defaultThreshold,
		readLimit:        readLimit,
		logger:           logger,
	}
}

// Serve runs one connection until the client leaves, a write fails or ctx
// is done. Messages are answered strictly in arrival order with at most one
// image in detection at a time. Serve closes conn.
func (h *Handler) Serve(ctx context.Context, conn *websocket.Conn) {
	id := uuid.NewString()
	if h.readLimit > 0 {
		conn.SetReadLimit(h.readLimit)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	h.logger.Info("Live session %s opened from %s", id, conn.RemoteAddr())

	exchanges := make(chan *Exchange)
	processed := make(chan struct{})
	go func() {
		defer close(processed)
		defer cancel()
		for ex := range exchanges {
			if err := h.process(ctx, conn, ex); err != nil {
				if !apperr.Is(err, apperr.KindTransport) {
					h.logger.Error("Live session %s: %v", id, err)
				}
				return
			}
		}
	}()

	session := NewSession(h.defaultThreshold)
	frames := 0
read:
	for {
		kind, payload, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				h.logger.Warning("Live session %s sent a message over %d bytes", id, h.readLimit)
			} else if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				h.logger.Warning("Live session %s read error: %v", id, err)
			}
			break
		}

		ex := session.Handle(kind, payload)
		if ex == nil {
			continue
		}
		if ex.Image != nil {
			frames++
		}

		select {
		case exchanges <- ex:
		case <-ctx.Done():
			break read
		}
	}

	close(exchanges)
	cancel()
	<-processed

	h.logger.Info("Live session %s closed after %d image(s)", id, frames)
}

// process answers one exchange. Only transport failures are returned.
func (h *Handler) process(ctx context.Context, conn *websocket.Conn, ex *Exchange) error {
	if ex.Image == nil {
		return write(conn, ex.Reply)
	}

	frame, err := ai.DecodeImage(ex.Image)
	if err != nil {
		return write(conn, ErrorReply(MsgInvalidImage))
	}

	batch, err := h.infer.Infer(ctx, frame, ex.Meta.Threshold)
	frame.Close()
	if apperr.Is(err, apperr.KindTransport) {
		return err
	}
	if err != nil {
		h.logger.Warning("Prediction failed: %v", err)
		return write(conn, ErrorReply(MsgPrediction))
	}

	reply, err := json.Marshal(batch.NonNil())
	if err != nil {
		return err
	}
	if err := write(conn, reply); err != nil {
		return err
	}

	if h.recorder != nil && ex.Meta.Geotagged() {
		h.recorder.Record(ex.Meta.Threshold, *ex.Meta.Latitude, *ex.Meta.Longitude, batch)
	}
	return nil
}

func write(conn *websocket.Conn, message []byte) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
		return apperr.Transport("write reply", err)
	}
	return nil
}
