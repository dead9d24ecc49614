// Package visibility decides whether optional form panels are shown. The form
// engine asks an Evaluator before revealing the organization focus panel so the
// treatment of the "none" sentinel stays a product decision callers can swap.
package visibility

import (
	"fmt"
	"strings"
)

// Evaluator determines whether a panel should be visible based on a rule
// string and the current form values.
type Evaluator interface {
	Eval(panel, rule string, ctx Context) (bool, error)
}

// Context provides inputs to an Evaluator. Values carries the current
// selection keyed by wire field name while Extras allows callers to inject
// arbitrary context such as feature flags.
type Context struct {
	Values map[string]any
	Extras map[string]any
}

// EvaluatorFunc adapts a function into an Evaluator.
type EvaluatorFunc func(panel, rule string, ctx Context) (bool, error)

// Eval delegates to the underlying function.
func (fn EvaluatorFunc) Eval(panel, rule string, ctx Context) (bool, error) {
	return fn(panel, rule, ctx)
}

const (
	// PanelFocus names the organization focus panel.
	PanelFocus = "focus"

	// RuleOrganizationSelected shows a panel only for a concrete organization.
	RuleOrganizationSelected = "org.selected"
	// RuleOrganizationChosen shows a panel for a concrete organization or the
	// explicit "none" choice.
	RuleOrganizationChosen = "org.chosen"

	// KeyOrganizationState is the Values key holding the organization
	// tri-state label: "unset", "none" or "selected".
	KeyOrganizationState = "org.state"
)

// Default returns the built-in rule evaluator.
func Default() Evaluator {
	return EvaluatorFunc(evalBuiltin)
}

func evalBuiltin(panel, rule string, ctx Context) (bool, error) {
	state, _ := ctx.Values[KeyOrganizationState].(string)
	switch strings.TrimSpace(rule) {
	case "":
		return true, nil
	case RuleOrganizationSelected:
		return state == "selected", nil
	case RuleOrganizationChosen:
		return state == "selected" || state == "none", nil
	default:
		return false, fmt.Errorf("visibility: unknown rule %q for panel %q", rule, panel)
	}
}
