package models

import "errors"

// Common errors for models and the layers above them.
var (
	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrURLRequired indicates a required URL field is empty.
	ErrURLRequired = errors.New("url is required")

	// ErrInvalidPlaylistURL indicates the URL does not look like a playlist
	// (no list marker in the query string).
	ErrInvalidPlaylistURL = errors.New("invalid playlist URL: missing list parameter")

	// ErrDuplicatePlaylist indicates a playlist with the same URL is already tracked.
	ErrDuplicatePlaylist = errors.New("playlist already exists")

	// ErrVideoIDRequired indicates a required video external ID is empty.
	ErrVideoIDRequired = errors.New("video_id is required")

	// ErrPlaylistIDRequired indicates a required playlist reference is zero.
	ErrPlaylistIDRequired = errors.New("playlist_id is required")

	// ErrInvalidVideoStatus indicates an unknown video status value.
	ErrInvalidVideoStatus = errors.New("invalid video status")

	// ErrScanInProgress indicates a playlist check was requested while one
	// is already running.
	ErrScanInProgress = errors.New("playlist check already in progress")
)
