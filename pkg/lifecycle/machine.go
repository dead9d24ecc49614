package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-myimpact/pkg/model"
	"github.com/goliatone/go-myimpact/pkg/transport"
)

const (
	GeneratePath   = "/api/goals/generate"
	DefaultTimeout = 30 * time.Second
)

// Phase is a lifecycle state.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseLoading    Phase = "loading"
	PhaseSuccess    Phase = "success"
	PhaseFailed     Phase = "failed"
)

// State is an immutable snapshot of the lifecycle.
type State struct {
	Phase      Phase
	Generation uint64
	Result     *model.GenerationResult
	Err        *ErrorInfo
	// Notice carries the inline message shown after a failed validation.
	Notice string
}

// Validator produces the request to submit. The form engine implements it.
type Validator interface {
	Validate() (model.GenerationRequest, error)
}

// Sender is the transport surface used for generate calls.
type Sender interface {
	Send(ctx context.Context, req transport.Request) (json.RawMessage, error)
}

// Machine drives one goal generation at a time. A new submit supersedes any
// request still in flight; only the latest generation may change state.
type Machine struct {
	sender    Sender
	logger    *zap.Logger
	timeout   time.Duration
	listeners []func(State)

	warnPair sync.Once

	mu     sync.Mutex
	state  State
	seq    uint64
	cancel context.CancelFunc

	notify  sync.Mutex
	emitted uint64
}

// Option customises a Machine.
type Option func(*Machine)

// WithLogger attaches a zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTimeout sets the per-request generate timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(m *Machine) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// WithListener registers a callback invoked after every transition. Callbacks
// run one at a time in transition order; a state overtaken by a newer one
// before delivery is skipped. A callback must not call Submit or Reset.
func WithListener(fn func(State)) Option {
	return func(m *Machine) {
		if fn != nil {
			m.listeners = append(m.listeners, fn)
		}
	}
}

// New constructs an idle Machine.
func New(sender Sender, opts ...Option) *Machine {
	m := &Machine{
		sender:  sender,
		logger:  zap.NewNop(),
		timeout: DefaultTimeout,
		state:   State{Phase: PhaseIdle},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// State returns the current snapshot.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Submit validates through v and, when valid, issues the generate call. It
// blocks until the request settles. A submit replaced by a newer one returns
// ErrSuperseded and leaves the state to its successor.
func (m *Machine) Submit(ctx context.Context, v Validator) (State, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	m.cancelLocked()
	m.state = State{Phase: PhaseValidating, Generation: m.state.Generation + 1}
	gen := m.state.Generation
	validating, seq := m.state, m.installedLocked()
	m.mu.Unlock()
	m.emit(seq, validating)

	req, err := v.Validate()
	if err != nil {
		next, ok := m.apply(gen, State{Phase: PhaseIdle, Notice: ValidationNotice})
		if !ok {
			return next, ErrSuperseded
		}
		return next, err
	}

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.mu.Lock()
	if m.state.Generation != gen {
		m.mu.Unlock()
		return m.State(), ErrSuperseded
	}
	m.cancel = cancel
	m.state = State{Phase: PhaseLoading, Generation: gen}
	loading, seq := m.state, m.installedLocked()
	m.mu.Unlock()
	m.emit(seq, loading)

	start := time.Now()
	raw, err := m.sender.Send(reqCtx, transport.Request{
		Method:  http.MethodPost,
		Path:    GeneratePath,
		Body:    req,
		Timeout: m.timeout,
	})

	var next State
	if err != nil {
		info := MapError(err)
		next = State{Phase: PhaseFailed, Err: info}
		if !transport.IsKind(err, transport.KindCancelled) {
			m.logger.Warn("goal generation failed",
				zap.Uint64("generation", gen),
				zap.String("kind", string(info.Kind)),
				zap.Int("status", info.Status),
				zap.Error(err),
			)
		}
	} else if result, nerr := Normalize(raw); nerr != nil {
		var info *ErrorInfo
		errors.As(nerr, &info)
		next = State{Phase: PhaseFailed, Err: info}
		m.logger.Warn("goal generation response malformed", zap.Uint64("generation", gen))
	} else {
		if result.Shape == model.ShapePair {
			m.warnPair.Do(func() {
				m.logger.Warn("backend returned deprecated prompts pair shape",
					zap.String("path", GeneratePath))
			})
		}
		next = State{Phase: PhaseSuccess, Result: &result}
		m.logger.Info("goals generated",
			zap.Uint64("generation", gen),
			zap.String("shape", string(result.Shape)),
			zap.Duration("elapsed", time.Since(start)),
		)
	}

	settled, ok := m.apply(gen, next)
	if !ok {
		m.logger.Debug("discarding superseded response", zap.Uint64("generation", gen))
		return settled, ErrSuperseded
	}
	if settled.Err != nil {
		return settled, settled.Err
	}
	return settled, nil
}

// Reset returns the machine to Idle and invalidates any in-flight request.
func (m *Machine) Reset() {
	m.mu.Lock()
	m.cancelLocked()
	m.state = State{Phase: PhaseIdle, Generation: m.state.Generation + 1}
	idle, seq := m.state, m.installedLocked()
	m.mu.Unlock()
	m.emit(seq, idle)
}

// apply installs next when gen is still current.
func (m *Machine) apply(gen uint64, next State) (State, bool) {
	m.mu.Lock()
	if m.state.Generation != gen {
		current := m.state
		m.mu.Unlock()
		return current, false
	}
	next.Generation = gen
	m.state = next
	m.cancel = nil
	seq := m.installedLocked()
	m.mu.Unlock()
	m.emit(seq, next)
	return next, true
}

func (m *Machine) cancelLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// installedLocked stamps the state just installed with the next sequence
// number.
func (m *Machine) installedLocked() uint64 {
	m.seq++
	return m.seq
}

// emit delivers state to listeners unless a later state was already delivered.
func (m *Machine) emit(seq uint64, state State) {
	if len(m.listeners) == 0 {
		return
	}
	m.notify.Lock()
	defer m.notify.Unlock()
	if seq <= m.emitted {
		return
	}
	m.emitted = seq
	for _, fn := range m.listeners {
		fn(state)
	}
}
