// Package hub fetches dataset splits from the Hugging Face dataset hub.
package hub

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/TFMV/splitcheck/pkg/cache"
	"github.com/TFMV/splitcheck/pkg/errors"
	"github.com/TFMV/splitcheck/pkg/infrastructure/pool"
)

const (
	DefaultEndpoint    = "https://huggingface.co"
	DefaultTimeout     = 60 * time.Second
	DefaultMaxFileSize = 512 << 20

	// defaultReadSize is the initial buffer size when a response has no length.
	defaultReadSize = 64 << 10
)

// ClientConfig configures a hub client.
type ClientConfig struct {
	Endpoint        string
	Token           string
	Timeout         time.Duration
	MaxFileSize     int64
	ListingCacheTTL time.Duration
}

// Listing is the file list of a dataset repository at one revision.
type Listing struct {
	SHA   string
	Files []string
}

type revisionInfo struct {
	ID       string `json:"id"`
	SHA      string `json:"sha"`
	Siblings []struct {
		RFilename string `json:"rfilename"`
	} `json:"siblings"`
}

// Client talks to the hub HTTP API.
type Client struct {
	endpoint    string
	token       string
	maxFileSize int64
	http        *http.Client
	listings    *cache.MemoryCache[*Listing]
	buffers     *pool.BufferPool
	logger      zerolog.Logger
}

// NewClient creates a hub client. Zero fields of cfg take defaults.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}

	cacheCfg := cache.DefaultConfig()
	if cfg.ListingCacheTTL > 0 {
		cacheCfg = cacheCfg.WithTTL(cfg.ListingCacheTTL)
	}

	return &Client{
		endpoint:    strings.TrimRight(cfg.Endpoint, "/"),
		token:       cfg.Token,
		maxFileSize: cfg.MaxFileSize,
		http:        &http.Client{Timeout: cfg.Timeout},
		listings:    cache.NewMemoryCache[*Listing](cacheCfg),
		buffers:     pool.NewBufferPool(0),
		logger:      logger.With().Str("component", "hub").Logger(),
	}
}

// ListFiles returns the repository files of dataset id at revision.
// Listings are cached per id and revision.
func (c *Client) ListFiles(ctx context.Context, id, revision string) (*Listing, error) {
	key := cache.Key(id, revision)
	if l, ok := c.listings.Get(ctx, key); ok {
		c.logger.Debug().Str("dataset", id).Str("revision", revision).Msg("Listing cache hit")
		return l, nil
	}

	u := fmt.Sprintf("%s/api/datasets/%s/revision/%s", c.endpoint, escapePath(id), url.PathEscape(revision))
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := statusError(resp, "dataset %s at revision %s", id, revision); err != nil {
		return nil, err
	}

	var info revisionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errors.Fetch(err, errors.CodeFetchFailed, "invalid listing for dataset %s at revision %s", id, revision)
	}

	l := &Listing{SHA: info.SHA, Files: make([]string, 0, len(info.Siblings))}
	for _, s := range info.Siblings {
		l.Files = append(l.Files, s.RFilename)
	}
	_ = c.listings.Put(ctx, key, l)

	c.logger.Debug().
		Str("dataset", id).
		Str("revision", revision).
		Str("sha", l.SHA).
		Int("files", len(l.Files)).
		Msg("Listed repository files")
	return l, nil
}

// Download fetches one repository file, refusing files larger than the
// configured limit.
func (c *Client) Download(ctx context.Context, id, revision, filePath string) ([]byte, error) {
	u := fmt.Sprintf("%s/datasets/%s/resolve/%s/%s", c.endpoint, escapePath(id), url.PathEscape(revision), escapePath(filePath))
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := statusError(resp, "file %s of dataset %s at revision %s", filePath, id, revision); err != nil {
		return nil, err
	}
	if resp.ContentLength > c.maxFileSize {
		return nil, errors.Wrapf(errors.ErrFileTooLarge, errors.CodeResourceExhausted,
			"%s is %d bytes, limit is %d", filePath, resp.ContentLength, c.maxFileSize)
	}

	size := int64(defaultReadSize)
	if resp.ContentLength > 0 {
		size = resp.ContentLength
	}
	buf := bytes.NewBuffer(c.buffers.Get(int(size) + bytes.MinRead))
	if _, err := buf.ReadFrom(io.LimitReader(resp.Body, c.maxFileSize+1)); err != nil {
		c.buffers.Put(buf.Bytes())
		return nil, transportError(ctx, err, "reading %s", filePath)
	}
	if int64(buf.Len()) > c.maxFileSize {
		c.buffers.Put(buf.Bytes())
		return nil, errors.Wrapf(errors.ErrFileTooLarge, errors.CodeResourceExhausted,
			"%s exceeds %d bytes", filePath, c.maxFileSize)
	}
	return buf.Bytes(), nil
}

// Recycle hands a buffer returned by Download back for reuse. data must not
// be referenced afterwards.
func (c *Client) Recycle(data []byte) {
	c.buffers.Put(data)
}

// Close releases the listing cache.
func (c *Client) Close() error {
	stats := c.listings.Stats()
	c.logger.Debug().
		Uint64("hits", stats.Hits).
		Uint64("misses", stats.Misses).
		Msg("Closing hub client")
	return c.listings.Close()
}

func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Fetch(err, errors.CodeInvalidRequest, "invalid request url %s", u)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(ctx, err, "GET %s", u)
	}
	c.logger.Debug().
		Str("url", u).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Hub request")
	return resp, nil
}

func statusError(resp *http.Response, format string, args ...interface{}) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	what := fmt.Sprintf(format, args...)
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.Fetch(nil, errors.CodePermissionDenied, "access denied to %s (HTTP %d)", what, resp.StatusCode)
	case http.StatusNotFound:
		return errors.Fetch(nil, errors.CodeNotFound, "%s not found", what)
	default:
		return errors.Fetch(nil, errors.CodeUnavailable, "hub returned HTTP %d for %s", resp.StatusCode, what)
	}
}

func transportError(ctx context.Context, err error, format string, args ...interface{}) error {
	code := errors.CodeUnavailable
	switch {
	case stderrors.Is(ctx.Err(), context.Canceled):
		code = errors.CodeCanceled
	case stderrors.Is(ctx.Err(), context.DeadlineExceeded), stderrors.Is(err, context.DeadlineExceeded):
		code = errors.CodeDeadlineExceeded
	}
	return errors.Fetch(err, code, format, args...)
}

// escapePath escapes each segment of a slash-separated path.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
