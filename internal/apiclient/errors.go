package apiclient

import (
	"encoding/json"
	"fmt"
)

// RemoteError is returned for any call that reached the network and failed:
// a non-2xx response or a transport failure. StatusCode is zero when no
// response was received.
type RemoteError struct {
	StatusCode int
	Message    string
	cause      error
}

func (e *RemoteError) Error() string {
	switch {
	case e.StatusCode == 0:
		return e.Message
	case e.Message != "":
		return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
}

func (e *RemoteError) Unwrap() error { return e.cause }

// newRemoteError extracts the server's own message when the error body
// carries one, falling back to the bare status.
func newRemoteError(status int, body []byte) *RemoteError {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := ""
	if err := json.Unmarshal(body, &payload); err == nil {
		msg = payload.Error
		if msg == "" {
			msg = payload.Message
		}
	}
	return &RemoteError{StatusCode: status, Message: msg}
}

func transportError(err error) *RemoteError {
	return &RemoteError{Message: "could not reach server", cause: err}
}
