package models

// ValidationError is a local, pre-network rejection. Requests that fail
// validation are never sent to the server and never mutate client state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}
