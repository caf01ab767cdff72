package config

import (
	"os"
	"strconv"
	"time"

	"github.com/vidfriends/ytcache/cacheclient"
)

// Config captures the runtime configuration for the ytcache command line tool.
type Config struct {
	Token          string
	Gateway        string
	APIVersion     string
	VideoPath      string
	LogLevel       string
	UserAgent      string
	RequestTimeout time.Duration
	RateLimit      float64
	RateBurst      int
	YTDLPPath      string
	YTDLPTimeout   time.Duration
	Import         ImportConfig
	ObjectStore    ObjectStoreConfig
}

// ImportConfig controls the bulk submission worker pool.
type ImportConfig struct {
	Workers   int
	QueueSize int
}

// ObjectStoreConfig points artwork mirroring at an S3-compatible bucket.
type ObjectStoreConfig struct {
	Bucket        string
	Endpoint      string
	Region        string
	PublicBaseURL string
}

// Load reads configuration from environment variables. Unset or unparsable
// values fall back to defaults; the token has none and is checked by the client.
func Load() (Config, error) {
	cfg := Config{
		Token:          os.Getenv("YTCACHE_TOKEN"),
		Gateway:        getString("YTCACHE_GATEWAY", cacheclient.DefaultGateway),
		APIVersion:     getString("YTCACHE_API_VERSION", cacheclient.DefaultVersion),
		VideoPath:      getString("YTCACHE_VIDEO_PATH", cacheclient.DefaultVideoPath),
		LogLevel:       getString("YTCACHE_LOG_LEVEL", "info"),
		UserAgent:      getString("YTCACHE_USER_AGENT", "ytcache-cli"),
		RequestTimeout: getDuration("YTCACHE_REQUEST_TIMEOUT", 0),
		RateLimit:      getFloat("YTCACHE_RATE_LIMIT", 0),
		RateBurst:      getInt("YTCACHE_RATE_BURST", 1),
		YTDLPPath:      getString("YTCACHE_YTDLP_PATH", "yt-dlp"),
		YTDLPTimeout:   getDuration("YTCACHE_YTDLP_TIMEOUT", 30*time.Second),
		Import: ImportConfig{
			Workers:   getInt("YTCACHE_IMPORT_WORKERS", 2),
			QueueSize: getInt("YTCACHE_IMPORT_QUEUE", 16),
		},
		ObjectStore: ObjectStoreConfig{
			Bucket:        os.Getenv("YTCACHE_S3_BUCKET"),
			Endpoint:      os.Getenv("YTCACHE_S3_ENDPOINT"),
			Region:        getString("YTCACHE_S3_REGION", "us-east-1"),
			PublicBaseURL: os.Getenv("YTCACHE_S3_PUBLIC_URL"),
		},
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}

func getFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
