package cacheclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

const testToken = "550e8400-e29b-41d4-a716-446655440000"

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts = append([]Option{WithEndpoint(Endpoint{Gateway: srv.URL, Version: "v1", VideoPath: "videos"})}, opts...)
	client, err := New(testToken, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestNewTokenValidation(t *testing.T) {
	cases := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"valid", testToken, nil},
		{"validUpper", strings.ToUpper(testToken), nil},
		{"empty", "", ErrInvalidArgument},
		{"short", "123", ErrInvalidFormat},
		{"version1", "550e8400-e29b-11d4-a716-446655440000", ErrInvalidFormat},
		{"badVariant", "550e8400-e29b-41d4-c716-446655440000", ErrInvalidFormat},
		{"braces", "{550e8400-e29b-41d4-a716-446655440000}", ErrInvalidFormat},
		{"urn", "urn:uuid:550e8400-e29b-41d4-a716-446655440000", ErrInvalidFormat},
		{"noHyphens", "550e8400e29b41d4a716446655440000", ErrInvalidFormat},
		{"nonHex", "550e8400-e29b-41d4-a716-44665544000z", ErrInvalidFormat},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := New(tc.token)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("New() error = %v", err)
				}
				if client == nil {
					t.Fatal("expected client")
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v got %v", tc.wantErr, err)
			}
		})
	}
}

func TestNewRejectsBadEndpoint(t *testing.T) {
	if _, err := New(testToken, WithEndpoint(Endpoint{Gateway: "ftp://example.com"})); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument got %v", err)
	}
	if _, err := New(testToken, WithEndpoint(Endpoint{})); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument got %v", err)
	}
}

func TestGetVideoByID(t *testing.T) {
	body := `{"loadType":"TRACK_LOADED","track":{"identifier":"dQw4w9WgXcQ","title":"Never Gonna Give You Up","author":"Rick Astley","artwork":"https://img.youtube.com/vi/dQw4w9WgXcQ/0.jpg","duration":212,"created_at":"2021-01-01T00:00:00Z","updated_at":"2021-01-02T00:00:00Z"}}`

	var gotReq *http.Request
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotReq = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	})

	result, err := client.GetVideoByID(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("GetVideoByID() error = %v", err)
	}

	if gotReq.Method != http.MethodGet {
		t.Fatalf("unexpected method %s", gotReq.Method)
	}
	if gotReq.URL.Path != "/v1/videos/dQw4w9WgXcQ" {
		t.Fatalf("unexpected path %q", gotReq.URL.Path)
	}
	if got := gotReq.Header.Get("Authorization"); got != testToken {
		t.Fatalf("unexpected authorization header %q", got)
	}
	if got := gotReq.Header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("unexpected content type %q", got)
	}

	if string(result.Raw) != body {
		t.Fatalf("expected raw body to be passed through, got %s", result.Raw)
	}
	if !result.Found() {
		t.Fatalf("expected track to be found: %+v", result)
	}
	if result.Track.Title != "Never Gonna Give You Up" || result.Track.Duration != 212 {
		t.Fatalf("unexpected track: %+v", result.Track)
	}
	if result.Track.Length() != 212*time.Second {
		t.Fatalf("unexpected length %v", result.Track.Length())
	}
	if result.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", result.StatusCode)
	}
}

func TestGetVideoByIDEscapesIdentifier(t *testing.T) {
	var rawPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rawPath = r.URL.EscapedPath()
		_, _ = io.WriteString(w, `{}`)
	})

	if _, err := client.GetVideoByID(context.Background(), "a/b c"); err != nil {
		t.Fatalf("GetVideoByID() error = %v", err)
	}
	if rawPath != "/v1/videos/a%2Fb%20c" {
		t.Fatalf("unexpected escaped path %q", rawPath)
	}
}

func TestGetVideoByIDKeepsDotSegments(t *testing.T) {
	cases := []struct {
		identifier string
		wantPath   string
	}{
		{"..", "/v1/videos/%2E%2E"},
		{".", "/v1/videos/%2E"},
		{"../search", "/v1/videos/..%2Fsearch"},
	}

	for _, tc := range cases {
		t.Run(tc.identifier, func(t *testing.T) {
			var escaped, decoded string
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				escaped = r.URL.EscapedPath()
				decoded = r.URL.Path
				_, _ = io.WriteString(w, `{}`)
			})

			if _, err := client.GetVideoByID(context.Background(), tc.identifier); err != nil {
				t.Fatalf("GetVideoByID() error = %v", err)
			}
			if escaped != tc.wantPath {
				t.Fatalf("unexpected escaped path %q want %q", escaped, tc.wantPath)
			}
			if decoded != "/v1/videos/"+tc.identifier {
				t.Fatalf("unexpected path %q", decoded)
			}
		})
	}
}

func TestGetVideoByIDMissingIdentifier(t *testing.T) {
	var calls int32
	client, err := New(testToken, WithHTTPClient(&http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("unexpected request")
	})}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := client.GetVideoByID(context.Background(), ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument got %v", err)
	}
	if _, err := client.QueryVideos(context.Background(), ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no requests got %d", calls)
	}
}

func TestGetVideoByIDPassesThroughErrorEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"loadType":"NO_MATCHES","errorType":"NOT_FOUND","message":"no video"}`)
	})

	result, err := client.GetVideoByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("expected error envelope to be returned as a result, got %v", err)
	}
	if result.Found() {
		t.Fatal("expected no track")
	}
	if !result.Failed() || result.ErrorType != "NOT_FOUND" || result.Message != "no video" {
		t.Fatalf("unexpected envelope: %+v", result.Envelope)
	}
	if result.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status %d", result.StatusCode)
	}
}

func TestGetVideoByIDTransportFailure(t *testing.T) {
	var calls int32
	boom := errors.New("connection reset")
	client, err := New(testToken, WithHTTPClient(&http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, boom
	})}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = client.GetVideoByID(context.Background(), "dQw4w9WgXcQ")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected transport error got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected underlying failure to be wrapped, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one attempt got %d", calls)
	}
}

func TestGetVideoByIDNonJSONBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	})

	if _, err := client.GetVideoByID(context.Background(), "dQw4w9WgXcQ"); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected transport error got %v", err)
	}
}

func TestGetVideoByIDUnexpectedShape(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `["not","an","object"]`)
	})

	result, err := client.GetVideoByID(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("GetVideoByID() error = %v", err)
	}
	if string(result.Raw) != `["not","an","object"]` {
		t.Fatalf("expected raw body, got %s", result.Raw)
	}
}

func TestQueryVideosEncodesName(t *testing.T) {
	var gotQuery string
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotPath = r.URL.Path
		_, _ = io.WriteString(w, `{"loadType":"SEARCH_RESULT","tracks":[{"identifier":"a","title":"A","author":"x","artwork":"https://example.com/a.jpg","duration":10},{"identifier":"b","title":"B","author":"y","artwork":"https://example.com/b.jpg","duration":20}]}`)
	})

	name := "Never gonna give you up & #1?"
	results, err := client.QueryVideos(context.Background(), name)
	if err != nil {
		t.Fatalf("QueryVideos() error = %v", err)
	}
	if gotQuery != name {
		t.Fatalf("expected query %q got %q", name, gotQuery)
	}
	if gotPath != "/v1/videos" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if results.LoadType != LoadTypeSearchResult || len(results.Tracks) != 2 {
		t.Fatalf("unexpected results: %+v", results)
	}
	if results.Tracks[1].Identifier != "b" {
		t.Fatalf("unexpected second track: %+v", results.Tracks[1])
	}
}

func TestCreateVideo(t *testing.T) {
	input := CreateVideoInput{
		Identifier: "QpR8_Onc9ho",
		Title:      "Awaken",
		Author:     "Valerie Broussard",
		Artwork:    "https://img.youtube.com/vi/QpR8_Onc9ho/0.jpg",
		Duration:   200,
	}

	var received map[string]any
	var method string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"identifier":"QpR8_Onc9ho","title":"Awaken","author":"Valerie Broussard","artwork":"https://img.youtube.com/vi/QpR8_Onc9ho/0.jpg","duration":200,"created_at":"2021-05-01T10:00:00Z","updated_at":"2021-05-01T10:00:00Z"}`)
	})

	result, err := client.CreateVideo(context.Background(), input)
	if err != nil {
		t.Fatalf("CreateVideo() error = %v", err)
	}
	if method != http.MethodPost {
		t.Fatalf("unexpected method %s", method)
	}
	if len(received) != 5 || received["identifier"] != "QpR8_Onc9ho" || received["duration"] != float64(200) {
		t.Fatalf("unexpected request body: %+v", received)
	}
	if result.Conflict() {
		t.Fatal("did not expect conflict")
	}
	if result.Identifier != "QpR8_Onc9ho" || result.CreatedAt == "" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCreateVideoConflictIsNotAnError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"errorType":"CONFLICT"}`)
	})

	result, err := client.CreateVideo(context.Background(), CreateVideoInput{
		Identifier: "QpR8_Onc9ho",
		Title:      "Awaken",
		Author:     "Valerie Broussard",
		Artwork:    "https://img.youtube.com/vi/QpR8_Onc9ho/0.jpg",
		Duration:   200,
	})
	if err != nil {
		t.Fatalf("expected conflict to be returned as a result, got %v", err)
	}
	if !result.Conflict() {
		t.Fatalf("expected conflict envelope: %+v", result.Envelope)
	}
	if string(result.Raw) != `{"errorType":"CONFLICT"}` {
		t.Fatalf("unexpected raw body %s", result.Raw)
	}
}

func TestCreateVideoValidation(t *testing.T) {
	var calls int32
	client, err := New(testToken, WithHTTPClient(&http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("unexpected request")
	})}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	valid := CreateVideoInput{Identifier: "a", Title: "b", Author: "c", Artwork: "d", Duration: 1}

	cases := []struct {
		name      string
		mutate    func(*CreateVideoInput)
		wantErr   error
		wantField string
	}{
		{"empty", func(in *CreateVideoInput) { *in = CreateVideoInput{} }, ErrMissingObject, "identifier"},
		{"title", func(in *CreateVideoInput) { in.Title = "" }, ErrMissingObject, "title"},
		{"artwork", func(in *CreateVideoInput) { in.Artwork = "" }, ErrMissingObject, "artwork"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			tc.mutate(&in)
			_, err := client.CreateVideo(context.Background(), in)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v got %v", tc.wantErr, err)
			}
			var fieldErr *FieldError
			if !errors.As(err, &fieldErr) || fieldErr.Field != tc.wantField {
				t.Fatalf("expected field %q got %v", tc.wantField, err)
			}
		})
	}

	if calls != 0 {
		t.Fatalf("expected no requests got %d", calls)
	}
}

func TestCreateVideoSendsValuesAsGiven(t *testing.T) {
	var received map[string]any
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_ = json.NewDecoder(r.Body).Decode(&received)
		_, _ = io.WriteString(w, `{}`)
	})

	_, err := client.CreateVideo(context.Background(), CreateVideoInput{Identifier: "a", Title: " ", Author: "c", Artwork: "d", Duration: -1})
	if err != nil {
		t.Fatalf("CreateVideo() error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one request got %d", calls)
	}
	if received["title"] != " " || received["duration"] != float64(-1) {
		t.Fatalf("unexpected request body: %+v", received)
	}
}

func TestCreateVideoObjectPostsRawObject(t *testing.T) {
	body := `{"identifier":"a","title":"","author":"c","artwork":"d","duration":-1,"source":"import"}`

	var received []byte
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		received, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"identifier":"a"}`)
	})

	obj, err := ParseVideoObject([]byte(body))
	if err != nil {
		t.Fatalf("ParseVideoObject() error = %v", err)
	}
	result, err := client.CreateVideoObject(context.Background(), obj)
	if err != nil {
		t.Fatalf("CreateVideoObject() error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one request got %d", calls)
	}
	if string(received) != body {
		t.Fatalf("expected object to be posted unchanged, got %s", received)
	}
	if result.Identifier != "a" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCreateVideoObjectRequiresParsedObject(t *testing.T) {
	var calls int32
	client, err := New(testToken, WithHTTPClient(&http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("unexpected request")
	})}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := client.CreateVideoObject(context.Background(), VideoObject{}); !errors.Is(err, ErrMissingObject) {
		t.Fatalf("expected missing object got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no requests got %d", calls)
	}
}

func TestTransportFailureIsSingleAttempt(t *testing.T) {
	input := CreateVideoInput{Identifier: "a", Title: "b", Author: "c", Artwork: "d", Duration: 1}
	ops := []struct {
		name string
		call func(*Client) error
	}{
		{"query", func(c *Client) error {
			_, err := c.QueryVideos(context.Background(), "awaken")
			return err
		}},
		{"create", func(c *Client) error {
			_, err := c.CreateVideo(context.Background(), input)
			return err
		}},
	}

	for _, op := range ops {
		t.Run(op.name, func(t *testing.T) {
			var calls int32
			boom := errors.New("connection reset")
			client, err := New(testToken, WithHTTPClient(&http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
				atomic.AddInt32(&calls, 1)
				return nil, boom
			})}))
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			err = op.call(client)
			if !errors.Is(err, ErrTransport) {
				t.Fatalf("expected transport error got %v", err)
			}
			if !errors.Is(err, boom) {
				t.Fatalf("expected underlying failure to be wrapped, got %v", err)
			}
			if calls != 1 {
				t.Fatalf("expected exactly one attempt got %d", calls)
			}
		})
	}
}

func TestNonJSONBodyIsTransportError(t *testing.T) {
	input := CreateVideoInput{Identifier: "a", Title: "b", Author: "c", Artwork: "d", Duration: 1}
	ops := []struct {
		name string
		call func(*Client) error
	}{
		{"query", func(c *Client) error {
			_, err := c.QueryVideos(context.Background(), "awaken")
			return err
		}},
		{"create", func(c *Client) error {
			_, err := c.CreateVideo(context.Background(), input)
			return err
		}},
	}

	for _, op := range ops {
		t.Run(op.name, func(t *testing.T) {
			var calls int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(http.StatusBadGateway)
				_, _ = io.WriteString(w, "<html>bad gateway</html>")
			})

			if err := op.call(client); !errors.Is(err, ErrTransport) {
				t.Fatalf("expected transport error got %v", err)
			}
			if calls != 1 {
				t.Fatalf("expected exactly one attempt got %d", calls)
			}
		})
	}
}

func TestConcurrentCalls(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		id := strings.TrimPrefix(r.URL.Path, "/v1/videos/")
		_, _ = fmt.Fprintf(w, `{"loadType":"TRACK_LOADED","track":{"identifier":%q,"title":"t","author":"a","artwork":"x","duration":1}}`, id)
	})

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			result, err := client.GetVideoByID(context.Background(), id)
			if err != nil {
				errs <- err
				return
			}
			if result.Track == nil || result.Track.Identifier != id {
				errs <- fmt.Errorf("request %s got %+v", id, result.Track)
			}
		}(fmt.Sprintf("video-%d", i))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	if calls != workers {
		t.Fatalf("expected %d requests got %d", workers, calls)
	}
}

func TestRateLimitHonoursContext(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = io.WriteString(w, `{}`)
	}, WithRateLimit(rate.Every(time.Hour), 1))

	if _, err := client.GetVideoByID(context.Background(), "first"); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := client.GetVideoByID(ctx, "second"); err == nil {
		t.Fatal("expected rate limited call to fail when the context expires")
	}
	if calls != 1 {
		t.Fatalf("expected one request got %d", calls)
	}
}

func TestUserAgentHeader(t *testing.T) {
	var agent string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		agent = r.Header.Get("User-Agent")
		_, _ = io.WriteString(w, `{}`)
	}, WithUserAgent("ytcache-test/1.0"))

	if _, err := client.GetVideoByID(context.Background(), "id"); err != nil {
		t.Fatalf("GetVideoByID() error = %v", err)
	}
	if agent != "ytcache-test/1.0" {
		t.Fatalf("unexpected user agent %q", agent)
	}
}
