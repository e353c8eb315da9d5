package reseller

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoPLID   = errors.New("reseller plid is not configured")
	ErrNotFound = errors.New("not found at reseller")
)

// APIError is a non-2xx answer from the reseller API.
type APIError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("reseller %s: status %d: %s", e.Endpoint, e.Status, body)
}

// Temporary reports whether repeating the request may succeed.
func (e *APIError) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests || e.Status == http.StatusRequestTimeout
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}
