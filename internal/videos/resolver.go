package videos

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vidfriends/ytcache/cacheclient"
	"github.com/vidfriends/ytcache/internal/logging"
)

// VideoCache is the subset of the cache client the resolver needs.
type VideoCache interface {
	GetVideoByID(ctx context.Context, identifier string) (cacheclient.TrackResult, error)
	CreateVideo(ctx context.Context, input cacheclient.CreateVideoInput) (cacheclient.CreateResult, error)
}

// Outcome describes how a video ended up in the cache.
type Outcome string

const (
	// OutcomeCached means the cache already held the video.
	OutcomeCached Outcome = "cached"
	// OutcomeSubmitted means the video was extracted locally and stored.
	OutcomeSubmitted Outcome = "submitted"
	// OutcomeConflict means the submission raced with another one for the same id.
	OutcomeConflict Outcome = "conflict"
)

// Resolution is the result of resolving one video URL.
type Resolution struct {
	URL        string
	Identifier string
	Outcome    Outcome
	Track      cacheclient.Track
	Envelope   cacheclient.Envelope
}

// Resolver consults the remote cache first and only runs the local metadata
// provider on a miss, submitting what it extracted.
type Resolver struct {
	cache    VideoCache
	provider Provider
}

// NewResolver returns a read-through resolver over cache and provider.
func NewResolver(cache VideoCache, provider Provider) *Resolver {
	return &Resolver{cache: cache, provider: provider}
}

// Resolve makes sure the video behind videoURL is cached and returns it.
func (r *Resolver) Resolve(ctx context.Context, videoURL string) (Resolution, error) {
	if r == nil || r.cache == nil {
		return Resolution{}, ErrCacheUnavailable
	}

	ctx, span := logging.StartSpan(ctx, "videos.resolve")
	res, err := r.resolve(ctx, videoURL)
	span.End(err)
	return res, err
}

func (r *Resolver) resolve(ctx context.Context, videoURL string) (Resolution, error) {
	logger := logging.FromContext(ctx)

	lookupURL := videoURL
	identifier, ok := ExtractIdentifier(videoURL)
	if ok {
		if res, hit, err := r.lookup(ctx, videoURL, identifier); err != nil || hit {
			return res, err
		}
		lookupURL = WatchURL(identifier)
	}

	if r.provider == nil {
		return Resolution{}, ErrProviderUnavailable
	}

	metadata, err := r.provider.Lookup(ctx, lookupURL)
	if err != nil {
		return Resolution{}, fmt.Errorf("extract metadata for %s: %w", videoURL, err)
	}

	if !ok || metadata.Identifier != identifier {
		if res, hit, err := r.lookup(ctx, videoURL, metadata.Identifier); err != nil || hit {
			return res, err
		}
	}

	created, err := r.cache.CreateVideo(ctx, metadata.Input())
	if err != nil {
		return Resolution{}, err
	}

	res := Resolution{
		URL:        videoURL,
		Identifier: metadata.Identifier,
		Envelope:   created.Envelope,
	}

	switch {
	case created.Conflict():
		logger.Info("video already cached", slog.String("identifier", metadata.Identifier))
		res.Outcome = OutcomeConflict
		res.Track = trackFromMetadata(metadata)
	case created.Failed():
		return Resolution{}, fmt.Errorf("%w: %s %s", ErrSubmissionRejected, created.ErrorType, created.Message)
	default:
		logger.Info("video submitted", slog.String("identifier", metadata.Identifier))
		res.Outcome = OutcomeSubmitted
		res.Track = created.Track
		if res.Track.Identifier == "" {
			res.Track = trackFromMetadata(metadata)
		}
	}

	return res, nil
}

func (r *Resolver) lookup(ctx context.Context, videoURL, identifier string) (Resolution, bool, error) {
	found, err := r.cache.GetVideoByID(ctx, identifier)
	if err != nil {
		return Resolution{}, false, err
	}
	if !found.Found() {
		return Resolution{}, false, nil
	}
	return Resolution{
		URL:        videoURL,
		Identifier: identifier,
		Outcome:    OutcomeCached,
		Track:      *found.Track,
		Envelope:   found.Envelope,
	}, true, nil
}

func trackFromMetadata(m Metadata) cacheclient.Track {
	return cacheclient.Track{
		Identifier: m.Identifier,
		Title:      m.Title,
		Author:     m.Author,
		Artwork:    m.Thumbnail,
		Duration:   m.Duration,
	}
}
