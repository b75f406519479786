package live

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"roadscan/internal/dto"

	"github.com/gorilla/websocket"
)

// Error messages sent back to the client.
const (
	MsgInvalidMetadata = "Invalid metadata format"
	MsgNoImageData     = "No image data received"
	MsgInvalidImage    = "Invalid image data"
	MsgImageReceiving  = "Image receiving error"
	MsgPrediction      = "Prediction error"
)

// State is the protocol position of a Session.
type State int

const (
	// AwaitMetadata expects a JSON text message describing the next image.
	AwaitMetadata State = iota
	// AwaitImage expects the binary image the last metadata described.
	AwaitImage
)

func (s State) String() string {
	switch s {
	case AwaitMetadata:
		return "await_metadata"
	case AwaitImage:
		return "await_image"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Metadata is the validated content of a metadata message.
type Metadata struct {
	Threshold float64
	Latitude  *float64
	Longitude *float64
}

// Geotagged reports whether both coordinates were supplied.
func (m Metadata) Geotagged() bool {
	return m.Latitude != nil && m.Longitude != nil
}

// Exchange is one unit of work produced by the protocol: either an
// immediate reply, or an image to run detection on.
type Exchange struct {
	Reply []byte
	Image []byte
	Meta  Metadata
}

// Session tracks the metadata/image alternation of one connection. It does
// no I/O.
type Session struct {
	state            State
	pending          Metadata
	defaultThreshold float64
}

// NewSession creates a Session awaiting metadata.
func NewSession(defaultThreshold float64) *Session {
	return &Session{state: AwaitMetadata, defaultThreshold: defaultThreshold}
}

// State returns the current protocol state.
func (s *Session) State() State {
	return s.state
}

// Handle advances the session by one incoming message. It returns nil when
// the message needs no reply.
func (s *Session) Handle(kind int, payload []byte) *Exchange {
	switch s.state {
	case AwaitMetadata:
		if kind != websocket.TextMessage {
			return errorExchange(MsgInvalidMetadata)
		}
		meta, err := ParseMetadata(payload, s.defaultThreshold)
		if err != nil {
			return errorExchange(MsgInvalidMetadata)
		}
		s.pending = meta
		s.state = AwaitImage
		return nil

	case AwaitImage:
		s.state = AwaitMetadata
		meta := s.pending
		s.pending = Metadata{}

		if kind != websocket.BinaryMessage {
			return errorExchange(MsgImageReceiving)
		}
		if len(payload) == 0 {
			return errorExchange(MsgNoImageData)
		}
		return &Exchange{Image: payload, Meta: meta}
	}
	return nil
}

var errNotObject = errors.New("metadata must be a JSON object")

// ParseMetadata validates a metadata message. Missing threshold falls back
// to defaultThreshold.
func ParseMetadata(payload []byte, defaultThreshold float64) (Metadata, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Metadata{}, errNotObject
	}

	var msg dto.SocketMetadata
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return Metadata{}, err
	}

	meta := Metadata{Threshold: defaultThreshold, Latitude: msg.Latitude, Longitude: msg.Longitude}
	if msg.Threshold != nil {
		if *msg.Threshold < 0 || *msg.Threshold > 1 {
			return Metadata{}, fmt.Errorf("threshold %v outside [0, 1]", *msg.Threshold)
		}
		meta.Threshold = *msg.Threshold
	}
	if meta.Latitude != nil && (*meta.Latitude < -90 || *meta.Latitude > 90) {
		return Metadata{}, fmt.Errorf("latitude %v outside [-90, 90]", *meta.Latitude)
	}
	if meta.Longitude != nil && (*meta.Longitude < -180 || *meta.Longitude > 180) {
		return Metadata{}, fmt.Errorf("longitude %v outside [-180, 180]", *meta.Longitude)
	}
	return meta, nil
}

func errorExchange(message string) *Exchange {
	return &Exchange{Reply: ErrorReply(message)}
}

// ErrorReply encodes message as {"error": message}.
func ErrorReply(message string) []byte {
	data, _ := json.Marshal(dto.ErrorResponse{Error: message})
	return data
}
