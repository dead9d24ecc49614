package testsupport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-myimpact/pkg/contract"
)

// Route keys used for faults and call counters.
const (
	RouteHealth   = "/api/health"
	RouteMetadata = "/api/metadata"
	RouteGenerate = "/api/goals/generate"
	RouteFocus    = "/api/orgs/:org/focus-areas"
)

// Fault makes a route misbehave. Times limits how many calls are affected;
// zero means every call.
type Fault struct {
	Status int
	Body   string
	Delay  time.Duration
	Times  int
}

// GenerateFunc produces the status and JSON body for a generate request.
type GenerateFunc func(req map[string]any) (int, any)

var ginModeOnce sync.Once

// Backend is an in-process fake of the goal generation API. Requests are
// checked against the embedded OpenAPI contract before reaching a handler, and
// handler replies are checked on the way out. Injected faults bypass both
// checks.
type Backend struct {
	server   *httptest.Server
	metadata string
	focus    map[string]*string
	generate GenerateFunc
	healthy  bool
	lenient  bool

	mu         sync.Mutex
	faults     map[string]*Fault
	calls      map[string]int
	requests   []map[string]any
	violations []string
}

// BackendOption customises a Backend.
type BackendOption func(*Backend)

// WithMetadataJSON replaces the /api/metadata payload.
func WithMetadataJSON(raw string) BackendOption {
	return func(b *Backend) {
		b.metadata = raw
	}
}

// WithFocus registers focus-area content for org. A nil content answers
// {"content": null}.
func WithFocus(org string, content *string) BackendOption {
	return func(b *Backend) {
		b.focus[org] = content
	}
}

// WithGenerate replaces the generate handler.
func WithGenerate(fn GenerateFunc) BackendOption {
	return func(b *Backend) {
		if fn != nil {
			b.generate = fn
		}
	}
}

// WithFault injects a fault on route.
func WithFault(route string, fault Fault) BackendOption {
	return func(b *Backend) {
		f := fault
		b.faults[route] = &f
	}
}

// WithUnhealthy makes /api/health answer 503.
func WithUnhealthy() BackendOption {
	return func(b *Backend) {
		b.healthy = false
	}
}

// WithOffContractResponses records handler replies that break the contract
// instead of failing the test. Use it to serve deliberately malformed bodies.
func WithOffContractResponses() BackendOption {
	return func(b *Backend) {
		b.lenient = true
	}
}

// NewBackend starts a Backend that is closed when the test ends. Unless
// WithOffContractResponses is set, any off-contract reply fails the test.
func NewBackend(t *testing.T, opts ...BackendOption) *Backend {
	t.Helper()

	validator, err := contract.Load(Context())
	if err != nil {
		t.Fatalf("load contract: %v", err)
	}

	b := &Backend{
		metadata: DefaultMetadataJSON,
		focus:    make(map[string]*string),
		generate: EchoGenerate,
		healthy:  true,
		faults:   make(map[string]*Fault),
		calls:    make(map[string]int),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}

	b.server = httptest.NewServer(b.router(validator))
	t.Cleanup(func() {
		b.server.Close()
		if b.lenient {
			return
		}
		for _, v := range b.ContractViolations() {
			t.Errorf("fake backend reply breaks the contract: %s", v)
		}
	})
	return b
}

// URL returns the base URL of the fake.
func (b *Backend) URL() string { return b.server.URL }

// Calls reports how many requests reached route.
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// ContractViolations lists handler replies that did not match the contract.
func (b *Backend) ContractViolations() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.violations...)
}

// GenerateRequests returns the decoded bodies of every generate request.
func (b *Backend) GenerateRequests() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]map[string]any, len(b.requests))
	copy(out, b.requests)
	return out
}

// EchoGenerate answers with the named shape built from the request fields.
func EchoGenerate(req map[string]any) (int, any) {
	return http.StatusOK, gin.H{
		"framework":    "Framework for " + str(req["scale"]) + "/" + str(req["level"]),
		"user_context": "Context for " + str(req["org"]) + " (" + str(req["goal_style"]) + ")",
	}
}

// PairGenerate answers with the legacy prompts pair built from the request.
func PairGenerate(req map[string]any) (int, any) {
	_, named := EchoGenerate(req)
	h := named.(gin.H)
	return http.StatusOK, gin.H{
		"inputs":     req,
		"prompts":    []any{h["framework"], h["user_context"]},
		"result":     nil,
		"powered_by": "prompts-only",
	}
}

func (b *Backend) router(validator *contract.Validator) http.Handler {
	ginModeOnce.Do(func() { gin.SetMode(gin.TestMode) })
	r := gin.New()
	r.Use(gin.Recovery(), b.count(), b.injectFaults(), b.contractCheck(validator))

	r.GET(RouteHealth, func(c *gin.Context) {
		if !b.healthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "version": "test"})
	})

	r.GET(RouteMetadata, func(c *gin.Context) {
		c.Header("Cache-Control", "public, max-age=3600")
		c.Data(http.StatusOK, "application/json", []byte(b.metadata))
	})

	r.GET(RouteFocus, func(c *gin.Context) {
		org := c.Param("org")
		c.JSON(http.StatusOK, gin.H{"org": org, "content": b.focus[org]})
	})

	r.POST(RouteGenerate, func(c *gin.Context) {
		var req map[string]any
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
			return
		}
		b.mu.Lock()
		b.requests = append(b.requests, req)
		b.mu.Unlock()

		status, body := b.generate(req)
		if raw, ok := body.(json.RawMessage); ok {
			c.Data(status, "application/json", raw)
			return
		}
		c.JSON(status, body)
	})

	return r
}

func (b *Backend) count() gin.HandlerFunc {
	return func(c *gin.Context) {
		b.mu.Lock()
		b.calls[c.FullPath()]++
		b.mu.Unlock()
		c.Next()
	}
}

func (b *Backend) injectFaults() gin.HandlerFunc {
	return func(c *gin.Context) {
		b.mu.Lock()
		fault, ok := b.faults[c.FullPath()]
		if ok && fault.Times > 0 {
			fault.Times--
			if fault.Times == 0 {
				delete(b.faults, c.FullPath())
			}
		}
		var active Fault
		if ok {
			active = *fault
		}
		b.mu.Unlock()

		if !ok {
			c.Next()
			return
		}
		if active.Delay > 0 {
			timer := time.NewTimer(active.Delay)
			select {
			case <-timer.C:
			case <-c.Request.Context().Done():
				timer.Stop()
				c.Abort()
				return
			}
		}
		if active.Status == 0 {
			c.Next()
			return
		}
		if active.Body == "" {
			c.AbortWithStatus(active.Status)
			return
		}
		c.Data(active.Status, "application/json", []byte(active.Body))
		c.Abort()
	}
}

// contractCheck rejects requests that do not satisfy the OpenAPI contract with
// a FastAPI style validation payload, then validates the handler's reply.
func (b *Backend) contractCheck(validator *contract.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.FullPath() == "" {
			c.Next()
			return
		}
		if err := validator.ValidateRequest(c.Request.Context(), c.Request); err != nil {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
				"detail": []gin.H{{
					"loc":  []string{"body"},
					"msg":  err.Error(),
					"type": "value_error",
				}},
			})
			return
		}

		rec := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		err := validator.ValidateResponse(c.Request.Context(), c.Request, rec.Status(), rec.Header(), rec.body.Bytes())
		if err != nil {
			b.mu.Lock()
			b.violations = append(b.violations, c.Request.Method+" "+c.FullPath()+": "+err.Error())
			b.mu.Unlock()
		}
	}
}

// recordingWriter keeps a copy of the response body for validation.
type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
