package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-myimpact/pkg/form"
	"github.com/goliatone/go-myimpact/pkg/lifecycle"
	"github.com/goliatone/go-myimpact/pkg/metadata"
	"github.com/goliatone/go-myimpact/pkg/model"
	"github.com/goliatone/go-myimpact/pkg/presenter"
	"github.com/goliatone/go-myimpact/pkg/transport"
)

const (
	HealthPath = "/api/health"

	defaultHealthTimeout = 3 * time.Second
)

// ErrNotStarted is returned by operations that need the reference metadata
// before Start has succeeded.
var ErrNotStarted = errors.New("orchestrator: session not started")

// Option customises the orchestrator configuration.
type Option func(*Orchestrator)

// WithBaseURL sets the backend origin.
func WithBaseURL(base string) Option {
	return func(o *Orchestrator) {
		o.baseURL = base
	}
}

// WithHTTPClient injects the HTTP client used by the default transport.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Orchestrator) {
		o.httpClient = client
	}
}

// WithTransport injects a pre-built transport client. It takes precedence over
// WithBaseURL and WithHTTPClient.
func WithTransport(client *transport.Client) Option {
	return func(o *Orchestrator) {
		o.client = client
	}
}

// WithLogger attaches a zap logger shared by every component.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithGenerateTimeout bounds each generate call.
func WithGenerateTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		o.generateTimeout = timeout
	}
}

// WithHealthTimeout bounds the liveness probe.
func WithHealthTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.healthTimeout = timeout
		}
	}
}

// WithMetadataOptions forwards options to the metadata cache.
func WithMetadataOptions(opts ...metadata.Option) Option {
	return func(o *Orchestrator) {
		o.metadataOpts = append(o.metadataOpts, opts...)
	}
}

// WithFormOptions forwards options to the form engine built by Start.
func WithFormOptions(opts ...form.Option) Option {
	return func(o *Orchestrator) {
		o.formOpts = append(o.formOpts, opts...)
	}
}

// WithLifecycleListener observes every lifecycle transition.
func WithLifecycleListener(fn func(lifecycle.State)) Option {
	return func(o *Orchestrator) {
		o.lifecycleOpts = append(o.lifecycleOpts, lifecycle.WithListener(fn))
	}
}

// Orchestrator coordinates one client session: it owns the transport, the
// metadata cache and the request lifecycle, and builds the form engine once
// metadata is available.
type Orchestrator struct {
	baseURL         string
	httpClient      *http.Client
	client          *transport.Client
	logger          *zap.Logger
	generateTimeout time.Duration
	healthTimeout   time.Duration
	metadataOpts    []metadata.Option
	formOpts        []form.Option
	lifecycleOpts   []lifecycle.Option

	cache   *metadata.Cache
	machine *lifecycle.Machine

	mu     sync.Mutex
	engine *form.Engine
}

// New constructs an Orchestrator applying any provided options. Missing
// dependencies are initialised with the built-in implementations.
func New(options ...Option) *Orchestrator {
	o := &Orchestrator{
		logger:        zap.NewNop(),
		healthTimeout: defaultHealthTimeout,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(o)
	}
	o.applyDefaults()
	return o
}

func (o *Orchestrator) applyDefaults() {
	if o.client == nil {
		o.client = transport.New(
			transport.WithBaseURL(o.baseURL),
			transport.WithHTTPClient(o.httpClient),
		)
	}
	o.cache = metadata.New(o.client, append([]metadata.Option{
		metadata.WithLogger(o.logger.Named("metadata")),
	}, o.metadataOpts...)...)
	o.machine = lifecycle.New(o.client, append([]lifecycle.Option{
		lifecycle.WithLogger(o.logger.Named("lifecycle")),
		lifecycle.WithTimeout(o.generateTimeout),
	}, o.lifecycleOpts...)...)
}

// Start loads the reference metadata and builds the form engine. Calling it
// again returns the existing engine. A metadata failure is final for the
// session.
func (o *Orchestrator) Start(ctx context.Context) (*form.Engine, error) {
	if ctx == nil {
		return nil, errors.New("orchestrator: context is required")
	}
	meta, err := o.cache.Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load metadata: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.engine != nil {
		return o.engine, nil
	}
	o.engine = form.New(meta, o.cache, append([]form.Option{
		form.WithLogger(o.logger.Named("form")),
		form.WithResetter(o.machine),
	}, o.formOpts...)...)
	return o.engine, nil
}

// Form returns the engine built by Start, or nil.
func (o *Orchestrator) Form() *form.Engine {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.engine
}

// Lifecycle returns the request state machine.
func (o *Orchestrator) Lifecycle() *lifecycle.Machine { return o.machine }

// MetadataStatus reports the metadata fetch outcome.
func (o *Orchestrator) MetadataStatus() metadata.Status { return o.cache.Status() }

// Metadata returns the reference metadata, fetching it if needed.
func (o *Orchestrator) Metadata(ctx context.Context) (model.ReferenceMetadata, error) {
	return o.cache.Metadata(ctx)
}

// FocusContent looks up the focus-area text for org.
func (o *Orchestrator) FocusContent(ctx context.Context, org string) (string, bool, error) {
	return o.cache.OrgFocusContent(ctx, org)
}

// Submit validates the current selection and runs a generate request.
func (o *Orchestrator) Submit(ctx context.Context) (lifecycle.State, error) {
	engine := o.Form()
	if engine == nil {
		return o.machine.State(), ErrNotStarted
	}
	return o.machine.Submit(ctx, engine)
}

// View returns the presentable result of the last successful submit.
func (o *Orchestrator) View() (presenter.View, bool) {
	return presenter.FromState(o.machine.State())
}

// Reset clears the form and returns the lifecycle to Idle.
func (o *Orchestrator) Reset() {
	if engine := o.Form(); engine != nil {
		engine.Reset()
		return
	}
	o.machine.Reset()
}

// Health probes the backend liveness endpoint.
func (o *Orchestrator) Health(ctx context.Context) error {
	_, err := o.client.Send(ctx, transport.Request{
		Method:  http.MethodGet,
		Path:    HealthPath,
		Timeout: o.healthTimeout,
	})
	return err
}

// Healthy reports whether the liveness endpoint answered 2xx.
func (o *Orchestrator) Healthy(ctx context.Context) bool {
	if err := o.Health(ctx); err != nil {
		o.logger.Debug("health probe failed", zap.Error(err))
		return false
	}
	return true
}

// Close stops background focus lookups.
func (o *Orchestrator) Close() {
	if engine := o.Form(); engine != nil {
		engine.Close()
	}
}
