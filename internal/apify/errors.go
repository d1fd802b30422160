package apify

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/siteintel/internal/poll"
)

// ErrRunFailed is returned when a run reaches a terminal status other than SUCCEEDED.
var ErrRunFailed = errors.New("apify: run did not succeed")

// ErrMissingToken is returned when the client has no API token configured.
var ErrMissingToken = errors.New("apify: api token not configured")

// HTTPError reports an unexpected response status from the job service.
type HTTPError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("apify %s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

// RunFailedError carries the terminal status of an unsuccessful run.
type RunFailedError struct {
	RunID  string
	Status string
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("apify: run %s finished with status %s", e.RunID, e.Status)
}

// Unwrap lets errors.Is match ErrRunFailed.
func (e *RunFailedError) Unwrap() error { return ErrRunFailed }

func isTimeout(err error) bool {
	return errors.Is(err, poll.ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
