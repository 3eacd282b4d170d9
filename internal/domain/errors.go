package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the bridge.
var (
	// ErrAmbiguousContent reports a message that carries both text and
	// media, or neither. Messages are classified as exactly one of the two.
	ErrAmbiguousContent = errors.New("message must contain either text or media, not both")

	// ErrUnsupportedMediaType reports a media URL whose extension is not
	// in the accepted set (png, jpg, jpeg).
	ErrUnsupportedMediaType = errors.New("media type is not accepted")

	// ErrNoRecipients reports an inbox request with no role="to" recipients
	// left after filtering.
	ErrNoRecipients = errors.New("no recipients with role \"to\"")

	// ErrHostNotConfigured reports a public URL derivation attempted
	// without a configured public host.
	ErrHostNotConfigured = errors.New("public host is not configured")
)

// MissingFieldError reports an inbound payload missing a required field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// DownloadError reports a failed media download from a provider.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// UpstreamError reports a failed outbound call to a provider API.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s API %d: %s", e.Provider, e.Status, e.Body)
}
