package taskapi

import "fmt"

// NetworkError reports that the task runtime could not be reached at all:
// DNS failure, refused connection, cancelled context.
type NetworkError struct {
	Base string
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("Failed to reach %s: %v", e.Base, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RemoteError is a well-formed error envelope returned by the runtime.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// InvalidResponseError reports a reply that violates the envelope
// contract: a non-JSON body, or a 2xx without `ok:true` and data.
type InvalidResponseError struct {
	Base   string
	Reason string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("invalid response from %s: %s", e.Base, e.Reason)
}
