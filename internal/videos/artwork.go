package videos

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/vidfriends/ytcache/cacheclient"
)

// ArtworkStorage persists artwork images and returns where they can be fetched.
type ArtworkStorage interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

// TrackLookup fetches a cached video by id.
type TrackLookup interface {
	GetVideoByID(ctx context.Context, identifier string) (cacheclient.TrackResult, error)
}

// ArtworkMirror copies the artwork of cached videos into ArtworkStorage.
type ArtworkMirror struct {
	Cache   TrackLookup
	Storage ArtworkStorage
	HTTP    *http.Client
	Prefix  string
}

// Mirror looks up identifier in the cache, downloads its artwork and stores it
// under <prefix>/<identifier><ext>. It returns the stored location.
func (m *ArtworkMirror) Mirror(ctx context.Context, identifier string) (string, error) {
	if m == nil || m.Cache == nil {
		return "", ErrCacheUnavailable
	}
	if m.Storage == nil {
		return "", fmt.Errorf("artwork mirror: storage not configured")
	}

	result, err := m.Cache.GetVideoByID(ctx, identifier)
	if err != nil {
		return "", err
	}
	if !result.Found() {
		return "", fmt.Errorf("artwork mirror: video %q not cached (%s)", identifier, result.LoadType)
	}
	artwork := strings.TrimSpace(result.Track.Artwork)
	if artwork == "" {
		return "", fmt.Errorf("artwork mirror: video %q has no artwork", identifier)
	}

	client := m.HTTP
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artwork, nil)
	if err != nil {
		return "", fmt.Errorf("artwork request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download artwork %s: %w", artwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download artwork %s: unexpected status %d", artwork, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	name := path.Join(m.prefix(), identifier+artworkExtension(artwork, contentType))

	return m.Storage.Save(ctx, name, contentType, resp.Body)
}

func (m *ArtworkMirror) prefix() string {
	if p := strings.Trim(m.Prefix, "/"); p != "" {
		return p
	}
	return "artwork"
}

func artworkExtension(rawURL, contentType string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); ext != "" {
			return ext
		}
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mediaType {
		case "image/jpeg":
			return ".jpg"
		case "image/png":
			return ".png"
		case "image/webp":
			return ".webp"
		}
		if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}
	return ".jpg"
}
