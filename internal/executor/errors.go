package executor

import (
	"errors"
	"fmt"
)

var (
	// ErrHTTPRequestFailed matches HTTPStatusError
	ErrHTTPRequestFailed = errors.New("validation request failed")

	// ErrWsConnection reports a transport failure before a matching frame arrived
	ErrWsConnection = errors.New("websocket connection error")

	// ErrWsProtocol reports an inbound frame that is not valid JSON
	ErrWsProtocol = errors.New("websocket protocol error")

	// ErrTimeout reports a call that ran past its deadline
	ErrTimeout = errors.New("validation timed out")
)

// HTTPStatusError is returned in strict mode when the service answers
// with a status outside the 2xx range
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("validation request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("validation request failed with status %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPStatusError) Is(target error) bool {
	return target == ErrHTTPRequestFailed
}
