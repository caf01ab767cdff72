package videos

import "errors"

var (
	// ErrProviderUnavailable indicates the metadata provider is not configured.
	ErrProviderUnavailable = errors.New("video metadata provider unavailable")
	// ErrCacheUnavailable indicates no cache client was supplied.
	ErrCacheUnavailable = errors.New("video cache unavailable")
	// ErrSubmissionRejected indicates the cache answered a submission with an
	// error envelope other than a conflict.
	ErrSubmissionRejected = errors.New("video submission rejected")
)
