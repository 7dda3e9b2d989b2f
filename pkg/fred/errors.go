package fred

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// FetchError reports that observations for a series could not be fetched or
// decoded. It isolates one series' failure from the rest of a refresh run.
type FetchError struct {
	SeriesID string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fred: fetch observations for %s: %v", e.SeriesID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MetadataError reports a failed series metadata lookup. FetchMetadata never
// returns it; it is only logged.
type MetadataError struct {
	SeriesID string
	Err      error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("fred: fetch metadata for %s: %v", e.SeriesID, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }

// transientError marks a failure that is safe to retry (429, 5xx).
type transientError struct {
	err        error
	statusCode int
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

// isTransient reports whether err is worth another attempt: an explicit
// transientError, a network timeout, or a reset/refused connection.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *transientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// isTransientStatus reports whether an HTTP status from FRED should be retried.
func isTransientStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
