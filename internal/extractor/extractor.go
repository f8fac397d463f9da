// Package extractor defines the boundary to the external media tooling.
// Listing and audio extraction shell out to yt-dlp; everything crossing the
// boundary is validated into explicit structs so the rest of the service
// never sees raw tool output.
package extractor

import (
	"context"
	"fmt"
)

// VideoEntry is a single playlist item as reported by the source listing.
type VideoEntry struct {
	ID           string
	Title        string
	Uploader     string
	Duration     int
	Album        string
	Artist       string
	ThumbnailURL string
	Year         int

	// Restricted marks entries whose availability requires authentication
	// (private, subscriber-only, premium-only). They are tracked but never
	// downloaded.
	Restricted bool
}

// PlaylistInfo is the validated result of listing a playlist.
type PlaylistInfo struct {
	ID      string
	Title   string
	Entries []VideoEntry
}

// ExtractResult describes a completed audio extraction.
type ExtractResult struct {
	FilePath string
	Title    string
	Uploader string
	Duration int
}

// PlaylistLister lists the current contents of a remote playlist.
type PlaylistLister interface {
	ListPlaylist(ctx context.Context, url string) (*PlaylistInfo, error)
}

// AudioExtractor downloads a single video's audio track into destDir.
type AudioExtractor interface {
	Extract(ctx context.Context, videoURL, destDir string) (*ExtractResult, error)
}

// RestrictedError indicates the video requires authentication and can never
// be downloaded anonymously. Callers treat it as permanent.
type RestrictedError struct {
	VideoURL     string
	Availability string
}

func (e *RestrictedError) Error() string {
	return fmt.Sprintf("video requires authentication (availability %q): %s", e.Availability, e.VideoURL)
}

// ExtractError wraps a listing or extraction failure. Transient failures
// (network errors, tool crashes) are retried on the next scan; permanent
// ones (malformed output, unusable URL) are not.
type ExtractError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}

// newTransientError wraps err as a retryable extraction failure.
func newTransientError(op string, err error) *ExtractError {
	return &ExtractError{Op: op, Transient: true, Err: err}
}

// newPermanentError wraps err as a non-retryable extraction failure.
func newPermanentError(op string, err error) *ExtractError {
	return &ExtractError{Op: op, Transient: false, Err: err}
}
