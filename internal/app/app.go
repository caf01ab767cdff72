package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/vidfriends/ytcache/cacheclient"
	"github.com/vidfriends/ytcache/internal/config"
	"github.com/vidfriends/ytcache/internal/logging"
	"github.com/vidfriends/ytcache/internal/videos"
)

var (
	stdIn  io.Reader = os.Stdin
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

const usage = "expected command: get, search, create, submit, or artwork"

// Run executes one ytcache command. Service responses go to stdout, logs to stderr.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, stdErr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger.With(slog.String("command", args[0])))

	client, err := newClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("configure cache client: %w", err)
	}

	cmd := command{cfg: cfg, client: client}

	switch args[0] {
	case "get":
		return cmd.get(ctx, args[1:])
	case "search":
		return cmd.search(ctx, args[1:])
	case "create":
		return cmd.create(ctx, args[1:])
	case "submit":
		return cmd.submit(ctx, args[1:])
	case "artwork":
		return cmd.artwork(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

type command struct {
	cfg    config.Config
	client *cacheclient.Client
}

// withTimeout applies YTCACHE_REQUEST_TIMEOUT; zero leaves the call unbounded.
func (c command) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.RequestTimeout)
}

func (c command) get(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: get <identifier>")
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	result, err := c.client.GetVideoByID(ctx, args[0])
	if err != nil {
		return err
	}
	return writeRaw(result.Raw)
}

func (c command) search(ctx context.Context, args []string) error {
	name := strings.Join(args, " ")
	if strings.TrimSpace(name) == "" {
		return errors.New("usage: search <name>")
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	results, err := c.client.QueryVideos(ctx, name)
	if err != nil {
		return err
	}
	logging.FromContext(ctx).Debug("search completed", slog.String("loadType", results.LoadType), slog.Int("tracks", len(results.Tracks)))
	return writeRaw(results.Raw)
}

func (c command) create(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("create", flag.ContinueOnError)
	flags.SetOutput(stdErr)
	file := flags.String("f", "-", "JSON file holding the video object, - for stdin")
	if err := flags.Parse(args); err != nil {
		return err
	}

	data, err := readInput(*file)
	if err != nil {
		return err
	}

	obj, err := cacheclient.ParseVideoObject(data)
	if err != nil {
		return err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	result, err := c.client.CreateVideoObject(ctx, obj)
	if err != nil {
		return err
	}
	if result.Conflict() {
		logging.FromContext(ctx).Warn("video already cached", slog.String("identifier", obj.Input.Identifier))
	}
	return writeRaw(result.Raw)
}

type submitLine struct {
	URL        string `json:"url"`
	Identifier string `json:"identifier,omitempty"`
	Outcome    string `json:"outcome,omitempty"`
	Title      string `json:"title,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (c command) submit(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("submit", flag.ContinueOnError)
	flags.SetOutput(stdErr)
	file := flags.String("f", "", "file with one video URL per line, - for stdin")
	if err := flags.Parse(args); err != nil {
		return err
	}

	urls := flags.Args()
	if *file != "" {
		data, err := readInput(*file)
		if err != nil {
			return err
		}
		urls = append(urls, parseURLList(data)...)
	}
	if len(urls) == 0 {
		return errors.New("usage: submit [-f file] <url>...")
	}

	return c.runImport(ctx, newResolver(c.cfg, c.client), urls)
}

func (c command) runImport(ctx context.Context, resolver videos.Resolving, urls []string) error {
	logger := logging.FromContext(ctx)

	var (
		mu     sync.Mutex
		failed int
	)
	enc := json.NewEncoder(stdOut)
	report := func(r videos.Report) {
		line := submitLine{URL: r.URL}
		if r.Err != nil {
			line.Error = r.Err.Error()
		} else {
			line.Identifier = r.Resolution.Identifier
			line.Outcome = string(r.Resolution.Outcome)
			line.Title = r.Resolution.Track.Title
		}

		mu.Lock()
		defer mu.Unlock()
		if r.Err != nil {
			failed++
		}
		_ = enc.Encode(line)
	}

	importer := videos.NewImporter(resolver, videos.ImporterConfig{
		QueueSize:  c.cfg.Import.QueueSize,
		Workers:    c.cfg.Import.Workers,
		JobTimeout: maxDuration(2*c.cfg.YTDLPTimeout, 2*time.Minute) + 3*c.cfg.RequestTimeout,
	}, report, logger)

	var enqueueErr error
	for _, u := range urls {
		if err := importer.Enqueue(ctx, u); err != nil {
			enqueueErr = fmt.Errorf("enqueue %s: %w", u, err)
			break
		}
	}

	if err := importer.Shutdown(ctx); err != nil {
		return fmt.Errorf("wait for submissions: %w", err)
	}
	if enqueueErr != nil {
		return enqueueErr
	}

	mu.Lock()
	defer mu.Unlock()
	if failed > 0 {
		return fmt.Errorf("%d of %d submissions failed", failed, len(urls))
	}
	return nil
}

func (c command) artwork(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: artwork <identifier>")
	}

	mirror, err := newArtworkMirror(ctx, c.cfg, c.client)
	if err != nil {
		return err
	}

	location, err := mirror.Mirror(ctx, args[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdOut, location)
	return err
}

func writeRaw(raw []byte) error {
	if _, err := stdOut.Write(raw); err != nil {
		return err
	}
	_, err := fmt.Fprintln(stdOut)
	return err
}

func readInput(name string) ([]byte, error) {
	if name == "" || name == "-" {
		return io.ReadAll(stdIn)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// parseURLList splits data into lines, skipping blanks and # comments.
func parseURLList(data []byte) []string {
	var urls []string
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls
}

func maxDuration(a, b time.Duration) time.Duration {
	if a >= b {
		return a
	}
	return b
}
