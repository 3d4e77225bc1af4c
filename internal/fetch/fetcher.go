package fetch

import (
	"hash/fnv"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"curator/internal/config"
	"curator/internal/logging"
)

const defaultRequestTimeout = 30 * time.Second

// Fetcher discovers bookmarked posts and caches their content.
type Fetcher struct {
	cfg      config.Fetch
	cacheDir string
	client   *http.Client
	logger   *slog.Logger
}

// New builds a fetcher from the fetch settings. Cached page snapshots are
// written under the configured cache directory.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Fetcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := defaultRequestTimeout
	if cfg.Fetch.RequestTimeout > 0 {
		timeout = time.Duration(cfg.Fetch.RequestTimeout) * time.Second
	}
	f := &Fetcher{
		cfg:      cfg.Fetch,
		cacheDir: cfg.Paths.CacheDir,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Option customizes the fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the default HTTP client (used in tests).
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

func (f *Fetcher) userAgent() string {
	if ua := strings.TrimSpace(f.cfg.UserAgent); ua != "" {
		return ua
	}
	return "curator/1.0"
}

// itemIDFromURL derives a stable item identifier from a post URL. The last
// path segment wins when it is usable; otherwise the URL is hashed.
func itemIDFromURL(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ""
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if id := sanitizeID(segments[i]); id != "" {
			return id
		}
	}
	return hashID(parsed.String())
}

func sanitizeID(segment string) string {
	var b strings.Builder
	for _, r := range segment {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func hashID(raw string) string {
	h := fnv.New64a()
	h.Write([]byte(raw))
	return "u" + strconv.FormatUint(h.Sum64(), 36)
}
