package dto

// SocketMetadata is the text message announcing the next image on the live socket.
// Every field is optional.
type SocketMetadata struct {
	Threshold *float64 `json:"threshold"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}
