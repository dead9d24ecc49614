package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-myimpact/pkg/model"
	"github.com/goliatone/go-myimpact/pkg/transport"
)

const (
	MetadataPath = "/api/metadata"

	DefaultTimeout     = 5 * time.Second
	DefaultRetries     = 2
	DefaultBackoffBase = 500 * time.Millisecond

	fetchKey = "metadata"
)

// Sender is the transport surface the cache depends on.
type Sender interface {
	Send(ctx context.Context, req transport.Request) (json.RawMessage, error)
}

// Status reports the init-once outcome of the metadata fetch.
type Status string

const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// Cache fetches reference metadata at most once per lifetime and resolves
// organization focus content on demand.
type Cache struct {
	sender  Sender
	logger  *zap.Logger
	timeout time.Duration
	retries int
	backoff func(attempt int) time.Duration
	sleep   func(ctx context.Context, d time.Duration) error

	group singleflight.Group

	mu     sync.RWMutex
	status Status
	meta   model.ReferenceMetadata
	err    error
}

// Option customises a Cache.
type Option func(*Cache)

// WithLogger attaches a zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Cache) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetries sets the number of extra attempts after a transient failure.
func WithRetries(retries int) Option {
	return func(c *Cache) {
		if retries >= 0 {
			c.retries = retries
		}
	}
}

// WithBackoff replaces the delay schedule. attempt starts at 1 for the first
// retry.
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(c *Cache) {
		if fn != nil {
			c.backoff = fn
		}
	}
}

// ExponentialBackoff doubles base for every retry.
func ExponentialBackoff(base time.Duration) func(attempt int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return base << (attempt - 1)
	}
}

// New constructs a Cache backed by sender.
func New(sender Sender, opts ...Option) *Cache {
	c := &Cache{
		sender:  sender,
		logger:  zap.NewNop(),
		timeout: DefaultTimeout,
		retries: DefaultRetries,
		backoff: ExponentialBackoff(DefaultBackoffBase),
		sleep:   sleepContext,
		status:  StatusPending,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Status returns the current fetch outcome.
func (c *Cache) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Metadata returns the cached reference metadata, fetching it on first use.
// Concurrent callers share a single fetch that is not tied to any one caller's
// cancellation. A failure is remembered for the life of the Cache.
func (c *Cache) Metadata(ctx context.Context) (model.ReferenceMetadata, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if meta, err, done := c.settled(); done {
		return meta, err
	}

	ch := c.group.DoChan(fetchKey, func() (any, error) {
		if meta, err, done := c.settled(); done {
			return meta, err
		}
		meta, err := c.fetchMetadata(context.WithoutCancel(ctx))
		c.mu.Lock()
		if err != nil {
			c.status, c.err = StatusFailed, err
		} else {
			c.status, c.meta = StatusReady, meta
		}
		c.mu.Unlock()
		return meta, err
	})

	select {
	case <-ctx.Done():
		return model.ReferenceMetadata{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return model.ReferenceMetadata{}, res.Err
		}
		return res.Val.(model.ReferenceMetadata), nil
	}
}

func (c *Cache) settled() (model.ReferenceMetadata, error, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch c.status {
	case StatusReady:
		return c.meta, nil, true
	case StatusFailed:
		return model.ReferenceMetadata{}, c.err, true
	}
	return model.ReferenceMetadata{}, nil, false
}

func (c *Cache) fetchMetadata(ctx context.Context) (model.ReferenceMetadata, error) {
	start := time.Now()
	raw, attempts, err := c.fetch(ctx, MetadataPath)
	if err != nil {
		c.logger.Error("metadata fetch failed", zap.Int("attempts", attempts), zap.Error(err))
		return model.ReferenceMetadata{}, err
	}
	meta, err := model.DecodeReferenceMetadata(raw)
	if err != nil {
		err = &FetchError{Kind: InvalidResponse, Resource: MetadataPath, Attempts: attempts, Err: err}
		c.logger.Error("metadata payload rejected", zap.Error(err))
		return model.ReferenceMetadata{}, err
	}
	c.logger.Info("metadata loaded",
		zap.Int("scales", len(meta.Scales())),
		zap.Int("organizations", len(meta.Organizations())),
		zap.Int("attempts", attempts),
		zap.Duration("elapsed", time.Since(start)),
	)
	return meta, nil
}

type focusPayload struct {
	Org     string `json:"org"`
	Content string `json:"content"`
}

// FocusPath returns the focus-areas endpoint for org.
func FocusPath(org string) string {
	return "/api/orgs/" + url.PathEscape(org) + "/focus-areas"
}

// OrgFocusContent fetches the focus-area text for org. It is never cached.
// An unknown organization or empty content reports found=false with no error.
func (c *Cache) OrgFocusContent(ctx context.Context, org string) (string, bool, error) {
	org = strings.TrimSpace(org)
	if org == "" {
		return "", false, errors.New("metadata: organization id is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	path := FocusPath(org)
	raw, _, err := c.fetch(ctx, path)
	if err != nil {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) && transport.IsKind(fetchErr.Err, transport.KindHTTPStatus) {
			var terr *transport.Error
			if errors.As(fetchErr.Err, &terr) && terr.Status == http.StatusNotFound {
				return "", false, nil
			}
		}
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		c.logger.Warn("focus content fetch failed", zap.String("org", org), zap.Error(err))
		return "", false, err
	}

	var payload focusPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", false, &FetchError{Kind: InvalidResponse, Resource: path, Attempts: 1, Err: err}
	}
	content := strings.TrimSpace(payload.Content)
	if content == "" {
		return "", false, nil
	}
	return content, true, nil
}

// fetch runs the retry policy around a GET of path.
func (c *Cache) fetch(ctx context.Context, path string) (json.RawMessage, int, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			c.logger.Warn("retrying fetch",
				zap.String("path", path),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", delay),
				zap.Error(lastErr),
			)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, attempt, &FetchError{Kind: Unavailable, Resource: path, Attempts: attempt, Err: lastErr}
			}
		}

		raw, err := c.sender.Send(ctx, transport.Request{
			Method:  http.MethodGet,
			Path:    path,
			Timeout: c.timeout,
		})
		if err == nil {
			return raw, attempt + 1, nil
		}
		lastErr = err
		if !transport.Retryable(err) {
			if transport.IsKind(err, transport.KindCancelled) {
				return nil, attempt + 1, &FetchError{Kind: Unavailable, Resource: path, Attempts: attempt + 1, Err: err}
			}
			return nil, attempt + 1, &FetchError{Kind: InvalidResponse, Resource: path, Attempts: attempt + 1, Err: err}
		}
	}
	return nil, c.retries + 1, &FetchError{Kind: Unavailable, Resource: path, Attempts: c.retries + 1, Err: lastErr}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
