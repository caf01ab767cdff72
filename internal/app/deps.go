package app

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/vidfriends/ytcache/cacheclient"
	"github.com/vidfriends/ytcache/internal/config"
	"github.com/vidfriends/ytcache/internal/storage"
	"github.com/vidfriends/ytcache/internal/videos"
)

// newClient builds the cache client from configuration. Token validation
// errors surface here, before any command touches the network.
func newClient(cfg config.Config, logger *slog.Logger) (*cacheclient.Client, error) {
	opts := []cacheclient.Option{
		cacheclient.WithEndpoint(cacheclient.Endpoint{
			Gateway:   cfg.Gateway,
			Version:   cfg.APIVersion,
			VideoPath: cfg.VideoPath,
		}),
		cacheclient.WithLogger(logger),
		cacheclient.WithUserAgent(cfg.UserAgent),
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, cacheclient.WithRateLimit(rate.Limit(cfg.RateLimit), cfg.RateBurst))
	}
	return cacheclient.New(cfg.Token, opts...)
}

func newResolver(cfg config.Config, client videos.VideoCache) *videos.Resolver {
	ytDlp := videos.NewYTDLPProvider(cfg.YTDLPPath, cfg.YTDLPTimeout)
	return videos.NewResolver(client, ytDlp)
}

func newArtworkMirror(ctx context.Context, cfg config.Config, client videos.TrackLookup) (*videos.ArtworkMirror, error) {
	store, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		return nil, err
	}
	return &videos.ArtworkMirror{Cache: client, Storage: store}, nil
}
