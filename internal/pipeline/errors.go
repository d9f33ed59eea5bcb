package pipeline

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// MetadataError is returned when the search-then-download path cannot
// resolve a track title for the source URL. No artifact is produced.
type MetadataError struct {
	URL string // The source URL whose metadata lookup failed
	Err error  // Underlying error, if any
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("could not resolve track info for %s", e.URL)
}

func (e *MetadataError) Unwrap() error {
	return e.Err
}

// ExtractionError is returned when the extraction collaborator failed or
// produced no artifact on disk.
type ExtractionError struct {
	Query  string // The URL or search query that was being fetched
	Reason string // Human-readable explanation of the failure
	Err    error  // Underlying error, if any
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %q: %s", e.Query, e.Reason)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// ArtifactTooLargeError is returned when the transcoded artifact exceeds the
// transport's maximum payload size. The artifact is deleted before this is
// returned.
type ArtifactTooLargeError struct {
	Path  string // The artifact that was rejected
	Size  int64  // Actual size in bytes
	Limit int64  // Transport payload limit in bytes
}

func (e *ArtifactTooLargeError) Error() string {
	return fmt.Sprintf("artifact too large: %s (limit %s)",
		humanize.Bytes(uint64(e.Size)), humanize.Bytes(uint64(e.Limit)))
}

// DeliveryError is returned when every send attempt failed.
type DeliveryError struct {
	Attempts int   // Number of send attempts made
	Err      error // The final attempt's error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed after %d attempts", e.Attempts)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
