package cacheclient

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// DefaultGateway is the public gateway template. The {version} placeholder is
	// replaced by Endpoint.Version.
	DefaultGateway = "https://api.ytcache.cloud/{version}"
	// DefaultVersion is the API version the client speaks.
	DefaultVersion = "v1"
	// DefaultVideoPath is the video resource path below the versioned gateway.
	DefaultVideoPath = "videos"

	versionPlaceholder = "{version}"
)

// Endpoint describes where the cache service lives.
type Endpoint struct {
	Gateway   string
	Version   string
	VideoPath string
}

// DefaultEndpoint returns the built-in service location.
func DefaultEndpoint() Endpoint {
	return Endpoint{
		Gateway:   DefaultGateway,
		Version:   DefaultVersion,
		VideoPath: DefaultVideoPath,
	}
}

// FullAPI renders the gateway for the configured version. Gateways without a
// {version} placeholder get the version appended as a path segment.
func (e Endpoint) FullAPI() string {
	gateway := strings.TrimRight(strings.TrimSpace(e.Gateway), "/")
	version := strings.Trim(strings.TrimSpace(e.Version), "/")
	if strings.Contains(gateway, versionPlaceholder) {
		return strings.ReplaceAll(gateway, versionPlaceholder, version)
	}
	if version == "" {
		return gateway
	}
	return gateway + "/" + version
}

// VideoAPI returns the video collection URL.
func (e Endpoint) VideoAPI() (*url.URL, error) {
	full := e.FullAPI()
	if full == "" {
		return nil, fmt.Errorf("endpoint gateway: %w", ErrInvalidArgument)
	}

	base, err := url.Parse(full)
	if err != nil {
		return nil, fmt.Errorf("parse gateway %q: %w", full, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("gateway %q must be http or https: %w", full, ErrInvalidArgument)
	}

	videoPath := strings.Trim(strings.TrimSpace(e.VideoPath), "/")
	if videoPath == "" {
		videoPath = DefaultVideoPath
	}
	return base.JoinPath(videoPath), nil
}
