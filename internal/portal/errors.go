package portal

import (
	"errors"
	"fmt"
)

// The four recoverable fetch outcomes. Anything else the session layer
// surfaces is fatal.
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrTempBanned         = errors.New("temporarily banned")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrNoResponse         = errors.New("no matching response")
)

// FatalStatusError marks an HTTP status the workflow has no handling for.
// It indicates the remote contract changed; automation must stop rather
// than act on bad data.
type FatalStatusError struct {
	Status int
	URL    string
	Body   []byte
}

func (e *FatalStatusError) Error() string {
	return fmt.Sprintf("unclassified portal response: status=%d url=%s", e.Status, e.URL)
}

// IsCheckable reports whether err is one of the recoverable fetch
// failures, i.e. the affected city should simply be re-queued.
func IsCheckable(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrTempBanned) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrNoResponse)
}
