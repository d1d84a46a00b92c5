package services

import "errors"

var (
	// ErrFetchFailure means the remote source could not be downloaded
	ErrFetchFailure = errors.New("failed to fetch source image")
	// ErrDecodeFailure means the payload is not a supported image
	ErrDecodeFailure = errors.New("failed to decode source image")
	// ErrMissingSource means no stored payload exists for a Done record
	ErrMissingSource = errors.New("source image missing from storage")
	// ErrNotReady means the record has not finished ingestion
	ErrNotReady = errors.New("image is not ready")
	// ErrUnsupportedExtension means the requested output format is unknown
	ErrUnsupportedExtension = errors.New("unsupported output extension")
	// ErrInvalidURL means a remote source URL was rejected before fetching
	ErrInvalidURL = errors.New("invalid source url")
)
