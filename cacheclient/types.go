package cacheclient

import (
	"encoding/json"
	"time"
)

// Load types and error types reported by the cache service.
const (
	LoadTypeTrackLoaded  = "TRACK_LOADED"
	LoadTypeSearchResult = "SEARCH_RESULT"
	LoadTypeNoMatches    = "NO_MATCHES"

	ErrorTypeConflict = "CONFLICT"
)

// Track is a cached video record as produced by the service.
type Track struct {
	Identifier string  `json:"identifier"`
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	Artwork    string  `json:"artwork"`
	Duration   float64 `json:"duration"`
	CreatedAt  string  `json:"created_at,omitempty"`
	UpdatedAt  string  `json:"updated_at,omitempty"`
}

// Length converts the duration in seconds to a time.Duration.
func (t Track) Length() time.Duration {
	return time.Duration(t.Duration * float64(time.Second))
}

// Envelope carries the discriminants common to every service response along
// with the body exactly as it was received. The HTTP status is informational;
// the client never rejects a response because of it.
type Envelope struct {
	LoadType   string          `json:"loadType,omitempty"`
	ErrorType  string          `json:"errorType,omitempty"`
	Message    string          `json:"message,omitempty"`
	StatusCode int             `json:"-"`
	Raw        json.RawMessage `json:"-"`
}

// Conflict reports whether the service rejected a submission as a duplicate.
func (e Envelope) Conflict() bool {
	return e.ErrorType == ErrorTypeConflict
}

// Failed reports whether the body is an error envelope of any kind.
func (e Envelope) Failed() bool {
	return e.ErrorType != ""
}

func (e *Envelope) capture(status int, raw []byte) {
	e.StatusCode = status
	e.Raw = append(json.RawMessage(nil), raw...)
}

// TrackResult is the response to a lookup by identifier.
type TrackResult struct {
	Envelope
	Track *Track `json:"track,omitempty"`
}

// Found reports whether the lookup produced a track.
func (r TrackResult) Found() bool {
	return r.LoadType == LoadTypeTrackLoaded && r.Track != nil
}

// TrackResults is the response to a search.
type TrackResults struct {
	Envelope
	Tracks []Track `json:"tracks"`
}

// CreateResult is the response to a submission: the stored video on success,
// or an error envelope such as a conflict.
type CreateResult struct {
	Envelope
	Track
}

// CreateVideoInput is the caller-supplied part of a video record.
// created_at and updated_at are assigned by the service.
type CreateVideoInput struct {
	Identifier string  `json:"identifier"`
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	Artwork    string  `json:"artwork"`
	Duration   float64 `json:"duration"`
}
