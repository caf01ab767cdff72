package videos

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/vidfriends/ytcache/cacheclient"
)

// Metadata captures the details needed to submit a video to the cache.
type Metadata struct {
	Identifier string
	Title      string
	Author     string
	Thumbnail  string
	Duration   float64
	WebpageURL string
}

// Input converts extracted metadata into a cache submission.
func (m Metadata) Input() cacheclient.CreateVideoInput {
	return cacheclient.CreateVideoInput{
		Identifier: m.Identifier,
		Title:      m.Title,
		Author:     m.Author,
		Artwork:    m.Thumbnail,
		Duration:   m.Duration,
	}
}

// Provider returns metadata for the supplied video URL.
type Provider interface {
	Lookup(ctx context.Context, url string) (Metadata, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, url string) (Metadata, error)

// Lookup implements Provider.
func (f ProviderFunc) Lookup(ctx context.Context, url string) (Metadata, error) {
	return f(ctx, url)
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ExtractIdentifier pulls the YouTube video id out of the common URL shapes
// (watch, youtu.be, shorts, embed, live) or accepts a bare id.
func ExtractIdentifier(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if videoIDPattern.MatchString(raw) {
		return raw, true
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	var candidate string
	switch host {
	case "youtu.be":
		candidate = segments[0]
	case "youtube.com", "music.youtube.com", "youtube-nocookie.com":
		switch segments[0] {
		case "watch":
			candidate = u.Query().Get("v")
		case "shorts", "embed", "live", "v":
			if len(segments) > 1 {
				candidate = segments[1]
			}
		}
	}

	if !videoIDPattern.MatchString(candidate) {
		return "", false
	}
	return candidate, true
}

// WatchURL returns the canonical watch page for a video id.
func WatchURL(identifier string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(identifier)
}
