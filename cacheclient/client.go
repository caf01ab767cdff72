// Package cacheclient talks to the remote video metadata cache: it looks up
// videos by identifier, searches them by name and submits new ones.
//
// Every call issues exactly one HTTP request. Responses are passed through as
// decoded envelopes, including service-level error envelopes such as a
// duplicate submission conflict; only network failures and undecodable bodies
// are returned as errors. Arguments are validated before any request is made.
package cacheclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/vidfriends/ytcache/internal/logging"
)

// Client is safe for concurrent use; it holds no mutable state.
type Client struct {
	token      string
	endpoint   Endpoint
	videoAPI   *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	userAgent  string
}

// Option customises a Client.
type Option func(*Client)

// WithEndpoint points the client at a different gateway, e.g. a test server.
func WithEndpoint(endpoint Endpoint) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger sets the logger used when the call context carries none.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit throttles outgoing requests to limit per second with the given
// burst. Calls wait for a slot; they are never re-sent.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		if limit <= 0 || limit == rate.Inf {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = strings.TrimSpace(userAgent)
	}
}

// New validates token and returns a client. No request is made.
func New(token string, opts ...Option) (*Client, error) {
	if err := ValidateToken(token); err != nil {
		return nil, err
	}

	c := &Client{
		token:      token,
		endpoint:   DefaultEndpoint(),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}

	videoAPI, err := c.endpoint.VideoAPI()
	if err != nil {
		return nil, err
	}
	c.videoAPI = videoAPI

	return c, nil
}

// ValidateToken checks that token is a UUID v4 in its canonical
// 8-4-4-4-12 hexadecimal form. Case is ignored.
func ValidateToken(token string) error {
	if token == "" {
		return fmt.Errorf("token missing: %w", ErrInvalidArgument)
	}
	if len(token) != 36 {
		return ErrInvalidFormat
	}
	id, err := uuid.Parse(token)
	if err != nil {
		return ErrInvalidFormat
	}
	if id.Version() != 4 || id.Variant() != uuid.RFC4122 {
		return ErrInvalidFormat
	}
	return nil
}

// Endpoint returns the service location the client was built with.
func (c *Client) Endpoint() Endpoint {
	return c.endpoint
}

// VideoAPI returns the video collection URL.
func (c *Client) VideoAPI() string {
	return c.videoAPI.String()
}

// GetVideoByID fetches one cached video.
func (c *Client) GetVideoByID(ctx context.Context, identifier string) (TrackResult, error) {
	if identifier == "" {
		return TrackResult{}, fmt.Errorf("identifier missing: %w", ErrInvalidArgument)
	}

	target := c.videoTarget(identifier)
	var result TrackResult
	if err := c.do(ctx, "get_video", http.MethodGet, &target, nil, &result); err != nil {
		return TrackResult{}, fmt.Errorf("get video %q: %w", identifier, err)
	}
	return result, nil
}

// QueryVideos searches cached videos by name. The name is query-encoded.
func (c *Client) QueryVideos(ctx context.Context, name string) (TrackResults, error) {
	if name == "" {
		return TrackResults{}, fmt.Errorf("name missing: %w", ErrInvalidArgument)
	}

	target := *c.videoAPI
	target.RawQuery = url.Values{"q": {name}}.Encode()

	var results TrackResults
	if err := c.do(ctx, "query_videos", http.MethodGet, &target, nil, &results); err != nil {
		return TrackResults{}, fmt.Errorf("query videos %q: %w", name, err)
	}
	return results, nil
}

// CreateVideo submits a video to the cache. A duplicate submission is not an
// error: the service answers with a conflict envelope, see CreateResult.Conflict.
func (c *Client) CreateVideo(ctx context.Context, input CreateVideoInput) (CreateResult, error) {
	if err := input.Validate(); err != nil {
		return CreateResult{}, err
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return CreateResult{}, fmt.Errorf("encode video %q: %w", input.Identifier, err)
	}
	return c.create(ctx, input.Identifier, payload)
}

// CreateVideoObject submits a video decoded by ParseVideoObject. The object is
// posted unchanged and is not validated beyond what ParseVideoObject checked.
func (c *Client) CreateVideoObject(ctx context.Context, obj VideoObject) (CreateResult, error) {
	if len(obj.raw) == 0 {
		return CreateResult{}, ErrMissingObject
	}
	return c.create(ctx, obj.Input.Identifier, obj.raw)
}

func (c *Client) create(ctx context.Context, identifier string, payload []byte) (CreateResult, error) {
	target := *c.videoAPI

	var result CreateResult
	if err := c.do(ctx, "create_video", http.MethodPost, &target, payload, &result); err != nil {
		return CreateResult{}, fmt.Errorf("create video %q: %w", identifier, err)
	}
	return result, nil
}

// videoTarget appends identifier as a single path segment. Dot segments are
// percent-encoded so nothing between here and the service can resolve them
// against the collection path.
func (c *Client) videoTarget(identifier string) url.URL {
	segment := url.PathEscape(identifier)
	if identifier == "." || identifier == ".." {
		segment = strings.ReplaceAll(segment, ".", "%2E")
	}

	target := *c.videoAPI
	target.Path = strings.TrimSuffix(c.videoAPI.Path, "/") + "/" + identifier
	target.RawPath = strings.TrimSuffix(c.videoAPI.EscapedPath(), "/") + "/" + segment
	return target
}

type capturer interface {
	capture(status int, raw []byte)
}

func (c *Client) do(ctx context.Context, op, method string, target *url.URL, payload []byte, dst capturer) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.logger != nil {
		ctx = logging.EnsureLogger(ctx, c.logger)
	}
	ctx, span := logging.StartSpan(ctx, "cacheclient."+op)
	defer func() { span.End(err) }()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.token)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrTransport, err)
	}

	logging.FromContext(ctx).Debug("cache service responded",
		slog.String("method", method),
		slog.String("url", target.String()),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(raw)),
	)

	if err := json.Unmarshal(raw, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return fmt.Errorf("%w: decode response (status %d): %w", ErrTransport, resp.StatusCode, err)
		}
		// Valid JSON of an unexpected shape is still handed to the caller via Raw.
	}
	dst.capture(resp.StatusCode, raw)

	return nil
}
