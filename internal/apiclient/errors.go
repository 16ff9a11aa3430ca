package apiclient

import "fmt"

// FetchError reports a failed conversation-list or history GET. StatusCode is
// zero when the request never produced a response.
type FetchError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: server returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SendError reports a failed POST /chat/send. The caller is expected to keep
// the user's input so the send can be retried.
type SendError struct {
	StatusCode int
	Err        error
}

func (e *SendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("send message: server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("send message: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
