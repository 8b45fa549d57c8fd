package domain

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse marks a backend payload that decoded but did not have
// the expected shape, e.g. a station list that is not an array.
var ErrMalformedResponse = errors.New("malformed response")

// UpstreamError is a non-2xx answer from the backend. Detail holds the
// structured failure detail from the error body when one was present.
type UpstreamError struct {
	Endpoint string
	Status   int
	Detail   string
}

func (e *UpstreamError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: status %d", e.Endpoint, e.Status)
}

// FailureDetail extracts the upstream failure detail from err, if any.
func FailureDetail(err error) (string, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) && ue.Detail != "" {
		return ue.Detail, true
	}
	return "", false
}
