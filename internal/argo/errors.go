package argo

import (
	"errors"
	"fmt"
)

// ErrDecode marks an upstream response whose body could not be decoded.
var ErrDecode = errors.New("argo: malformed response")

// UpstreamError is returned when the Argo server answers with a non-success
// status. It is never retried.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("argo: %s: upstream returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("argo: %s: upstream returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

// StatusCode extracts the upstream status from err, if err wraps an
// UpstreamError.
func StatusCode(err error) (int, bool) {
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.StatusCode, true
	}
	return 0, false
}
