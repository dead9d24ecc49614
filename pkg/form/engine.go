package form

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-myimpact/pkg/model"
	"github.com/goliatone/go-myimpact/pkg/visibility"
)

const (
	DefaultGrowthIntensity = "moderate"
	DefaultGoalStyle       = "independent"
)

// FocusLookup resolves the focus-area text of an organization.
type FocusLookup interface {
	OrgFocusContent(ctx context.Context, org string) (string, bool, error)
}

// Resetter is notified when the form is reset. The request lifecycle
// implements it to return to Idle.
type Resetter interface {
	Reset()
}

// FocusPanel describes the supplementary organization content display.
type FocusPanel struct {
	Visible bool
	Loading bool
	Org     string
	Content string
}

// Engine owns the working Selection and keeps it consistent with the
// reference metadata after every mutation.
type Engine struct {
	meta     model.ReferenceMetadata
	lookup   FocusLookup
	eval     visibility.Evaluator
	rule     string
	logger   *zap.Logger
	resetter Resetter

	defaultIntensity string
	defaultStyle     string
	listeners        []func(FocusPanel)

	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	notify sync.Mutex

	mu          sync.Mutex
	sel         model.Selection
	panel       FocusPanel
	version     uint64
	seq         uint64
	cancelFocus context.CancelFunc

	emitted uint64
}

// Option customises an Engine.
type Option func(*Engine)

// WithFocusListener registers a callback invoked on every focus panel change.
func WithFocusListener(fn func(FocusPanel)) Option {
	return func(e *Engine) {
		if fn != nil {
			e.listeners = append(e.listeners, fn)
		}
	}
}

// WithResetter wires the component cleared by Reset.
func WithResetter(r Resetter) Option {
	return func(e *Engine) {
		e.resetter = r
	}
}

// WithLogger attaches a zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithVisibility replaces the focus panel rule and its evaluator.
func WithVisibility(eval visibility.Evaluator, rule string) Option {
	return func(e *Engine) {
		if eval != nil {
			e.eval = eval
		}
		e.rule = rule
	}
}

// WithDefaults overrides the growth intensity and goal style restored by
// Reset. Empty values keep the built-in defaults.
func WithDefaults(growthIntensity, goalStyle string) Option {
	return func(e *Engine) {
		if growthIntensity != "" {
			e.defaultIntensity = growthIntensity
		}
		if goalStyle != "" {
			e.defaultStyle = goalStyle
		}
	}
}

// New builds an Engine over meta. lookup may be nil, in which case the focus
// panel never shows.
func New(meta model.ReferenceMetadata, lookup FocusLookup, opts ...Option) *Engine {
	e := &Engine{
		meta:             meta,
		lookup:           lookup,
		eval:             visibility.Default(),
		rule:             visibility.RuleOrganizationSelected,
		logger:           zap.NewNop(),
		defaultIntensity: DefaultGrowthIntensity,
		defaultStyle:     DefaultGoalStyle,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.ctx, e.stop = context.WithCancel(context.Background())
	e.sel = e.defaults()
	return e
}

// Metadata returns the reference metadata backing the engine.
func (e *Engine) Metadata() model.ReferenceMetadata { return e.meta }

// Selection returns a copy of the current selection.
func (e *Engine) Selection() model.Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sel
}

// FocusPanel returns the current focus panel state.
func (e *Engine) FocusPanel() FocusPanel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.panel
}

// SetScale selects scale and clears the level when it does not belong to the
// new scale. An empty scale clears both.
func (e *Engine) SetScale(scale string) (model.Selection, error) {
	scale = strings.TrimSpace(scale)
	e.mu.Lock()
	defer e.mu.Unlock()

	if scale != "" && !e.meta.HasScale(scale) {
		return e.sel, fmt.Errorf("%w: scale %q", ErrUnknownOption, scale)
	}
	e.sel.Scale = scale
	if !e.meta.HasLevel(scale, e.sel.Level) {
		e.sel.Level = ""
	}
	return e.sel, nil
}

// SetLevel selects a level of the current scale.
func (e *Engine) SetLevel(level string) (model.Selection, error) {
	level = strings.TrimSpace(level)
	e.mu.Lock()
	defer e.mu.Unlock()

	if level != "" && !e.meta.HasLevel(e.sel.Scale, level) {
		if e.sel.Scale == "" {
			return e.sel, fmt.Errorf("%w: level %q requires a scale", ErrUnknownOption, level)
		}
		return e.sel, fmt.Errorf("%w: level %q for scale %q", ErrUnknownOption, level, e.sel.Scale)
	}
	e.sel.Level = level
	return e.sel, nil
}

func (e *Engine) SetGrowthIntensity(value string) (model.Selection, error) {
	value = strings.TrimSpace(value)
	e.mu.Lock()
	defer e.mu.Unlock()

	if value != "" && !e.meta.HasGrowthIntensity(value) {
		return e.sel, fmt.Errorf("%w: growth intensity %q", ErrUnknownOption, value)
	}
	e.sel.GrowthIntensity = value
	return e.sel, nil
}

func (e *Engine) SetGoalStyle(value string) (model.Selection, error) {
	value = strings.TrimSpace(value)
	e.mu.Lock()
	defer e.mu.Unlock()

	if value != "" && !e.meta.HasGoalStyle(value) {
		return e.sel, fmt.Errorf("%w: goal style %q", ErrUnknownOption, value)
	}
	e.sel.GoalStyle = value
	return e.sel, nil
}

// SetFocusText stores the free-text focus area as typed.
func (e *Engine) SetFocusText(text string) model.Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sel.FocusText = text
	return e.sel
}

// SetOrganization updates the organization choice and refreshes the focus
// panel. For a concrete organization the focus content is fetched in the
// background; only the completion matching the latest dispatch is applied.
func (e *Engine) SetOrganization(org model.Organization) (model.Selection, error) {
	e.mu.Lock()
	if org.IsSelected() && !e.meta.HasOrganization(org.ID()) {
		sel := e.sel
		e.mu.Unlock()
		return sel, fmt.Errorf("%w: organization %q", ErrUnknownOption, org.ID())
	}

	e.sel.Organization = org
	e.seq++
	e.cancelLookupLocked()

	visible, err := e.eval.Eval(visibility.PanelFocus, e.rule, visibility.Context{
		Values: map[string]any{
			visibility.KeyOrganizationState: org.State(),
			"org":                           org.Value(),
		},
	})
	if err != nil {
		e.logger.Warn("focus visibility rule failed", zap.String("rule", e.rule), zap.Error(err))
		visible = false
	}

	if !visible || !org.IsSelected() || e.lookup == nil {
		ver := e.setPanelLocked(FocusPanel{})
		panel, sel := e.panel, e.sel
		e.mu.Unlock()
		e.emit(ver, panel)
		return sel, nil
	}

	ver := e.setPanelLocked(FocusPanel{Loading: true, Org: org.ID()})
	ctx, cancel := context.WithCancel(e.ctx)
	e.cancelFocus = cancel
	seq := e.seq
	panel, sel := e.panel, e.sel
	e.wg.Add(1)
	e.mu.Unlock()

	e.emit(ver, panel)
	go e.resolveFocus(ctx, cancel, seq, org.ID())
	return sel, nil
}

func (e *Engine) resolveFocus(ctx context.Context, cancel context.CancelFunc, seq uint64, org string) {
	defer e.wg.Done()
	defer cancel()

	content, found, err := e.lookup.OrgFocusContent(ctx, org)

	e.mu.Lock()
	if seq != e.seq || e.sel.Organization.ID() != org {
		e.mu.Unlock()
		e.logger.Debug("discarding stale focus content", zap.String("org", org))
		return
	}
	e.cancelFocus = nil
	next := FocusPanel{}
	switch {
	case err != nil:
		e.logger.Warn("focus content unavailable", zap.String("org", org), zap.Error(err))
	case found:
		next = FocusPanel{Visible: true, Org: org, Content: content}
	}
	ver := e.setPanelLocked(next)
	e.mu.Unlock()

	e.emit(ver, next)
}

// Validate builds a GenerationRequest from the current selection or reports
// every missing mandatory field.
func (e *Engine) Validate() (model.GenerationRequest, error) {
	e.mu.Lock()
	sel := e.sel
	e.mu.Unlock()

	var missing []string
	if sel.Scale == "" {
		missing = append(missing, FieldScale)
	}
	if sel.Level == "" {
		missing = append(missing, FieldLevel)
	}
	if sel.Organization.IsUnset() {
		missing = append(missing, FieldOrganization)
	}
	if sel.GrowthIntensity == "" {
		missing = append(missing, FieldGrowthIntensity)
	}
	if sel.GoalStyle == "" {
		missing = append(missing, FieldGoalStyle)
	}
	if len(missing) > 0 {
		return model.GenerationRequest{}, &ValidationError{Missing: missing}
	}

	req := model.GenerationRequest{
		Scale:           sel.Scale,
		Level:           sel.Level,
		GrowthIntensity: sel.GrowthIntensity,
		Organization:    sel.Organization.Value(),
		GoalStyle:       sel.GoalStyle,
	}
	if focus := strings.TrimSpace(sel.FocusText); focus != "" {
		req.FocusText = &focus
	}
	return req, nil
}

// Reset restores the default selection, hides the focus panel, cancels any
// pending lookup and resets the wired Resetter.
func (e *Engine) Reset() model.Selection {
	e.mu.Lock()
	e.seq++
	e.cancelLookupLocked()
	e.sel = e.defaults()
	ver := e.setPanelLocked(FocusPanel{})
	panel, sel := e.panel, e.sel
	e.mu.Unlock()

	e.emit(ver, panel)
	if e.resetter != nil {
		e.resetter.Reset()
	}
	return sel
}

// Wait blocks until every dispatched focus lookup has settled.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close cancels outstanding lookups and waits for them to exit.
func (e *Engine) Close() {
	e.stop()
	e.wg.Wait()
}

func (e *Engine) defaults() model.Selection {
	sel := model.Selection{}
	if e.meta.HasGrowthIntensity(e.defaultIntensity) {
		sel.GrowthIntensity = e.defaultIntensity
	}
	if e.meta.HasGoalStyle(e.defaultStyle) {
		sel.GoalStyle = e.defaultStyle
	}
	return sel
}

func (e *Engine) cancelLookupLocked() {
	if e.cancelFocus != nil {
		e.cancelFocus()
		e.cancelFocus = nil
	}
}

func (e *Engine) setPanelLocked(panel FocusPanel) uint64 {
	e.panel = panel
	e.version++
	return e.version
}

// emit delivers panel to listeners unless a newer panel was already delivered.
func (e *Engine) emit(version uint64, panel FocusPanel) {
	if len(e.listeners) == 0 {
		return
	}
	e.notify.Lock()
	defer e.notify.Unlock()
	if version <= e.emitted {
		return
	}
	e.emitted = version
	for _, fn := range e.listeners {
		fn(panel)
	}
}
