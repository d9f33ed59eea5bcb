// Package extract defines the contract with the external media
// extraction/transcode collaborator.
package extract

import "context"

// TrackInfo is the metadata the collaborator reports for a track. A zero
// Title means the track could not be resolved; callers branch on Resolved()
// instead of treating it as an error.
type TrackInfo struct {
	Title        string
	Artist       string
	ThumbnailURL string
	// Duration in whole seconds.
	Duration int
}

// Resolved reports whether the lookup produced usable track metadata.
func (t TrackInfo) Resolved() bool {
	return t.Title != ""
}

// Request describes one fetch: either a direct URL or, in search mode, a
// free-text query resolved against a search-backed source. The transcoded
// audio lands in OutputDir.
type Request struct {
	Query     string
	Search    bool
	OutputDir string
}

// Extractor fetches and transcodes source media.
type Extractor interface {
	// Probe resolves track metadata without downloading anything.
	Probe(ctx context.Context, url string) (TrackInfo, error)
	// Fetch downloads and transcodes the requested track into
	// Request.OutputDir and returns its metadata.
	Fetch(ctx context.Context, req Request) (TrackInfo, error)
}
