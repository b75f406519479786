package dto

// ErrorResponse is the JSON body of every error reply, HTTP or socket.
type ErrorResponse struct {
	Error string `json:"error"`
}
