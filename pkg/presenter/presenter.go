// Package presenter formats a successful generation for display and copy.
// It only reads lifecycle state.
package presenter

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-myimpact/pkg/lifecycle"
	"github.com/goliatone/go-myimpact/pkg/model"
)

const (
	FrameworkHeading = "[GOAL FRAMEWORK]"
	ContextHeading   = "[YOUR CUSTOMIZATION]"
)

// CopyTarget selects which text a copy action yields.
type CopyTarget string

const (
	CopyFramework CopyTarget = "framework"
	CopyContext   CopyTarget = "context"
	CopyBoth      CopyTarget = "both"
)

// ParseCopyTarget maps a user supplied name onto a CopyTarget.
func ParseCopyTarget(raw string) (CopyTarget, error) {
	switch target := CopyTarget(strings.ToLower(strings.TrimSpace(raw))); target {
	case CopyFramework, CopyContext, CopyBoth:
		return target, nil
	default:
		return "", fmt.Errorf("presenter: unknown copy target %q", raw)
	}
}

// Label returns the human name used in copy confirmations.
func (t CopyTarget) Label() string {
	switch t {
	case CopyFramework:
		return "Goal Framework"
	case CopyContext:
		return "Your Customization"
	case CopyBoth:
		return "Both Prompts"
	default:
		return string(t)
	}
}

// View is the read-only rendering of a successful result.
type View struct {
	result *model.GenerationResult
}

// FromState returns a View when state holds a successful result.
func FromState(state lifecycle.State) (View, bool) {
	if state.Phase != lifecycle.PhaseSuccess || state.Result == nil {
		return View{}, false
	}
	return View{result: state.Result}, true
}

// Framework returns the structural guidance text.
func (v View) Framework() string {
	if v.result == nil {
		return ""
	}
	return v.result.FrameworkText
}

// Context returns the user-specific customization text.
func (v View) Context() string {
	if v.result == nil {
		return ""
	}
	return v.result.ContextText
}

// Preview joins both parts under their section headings.
func (v View) Preview() string {
	return FrameworkHeading + "\n" + v.Framework() + "\n\n" + ContextHeading + "\n" + v.Context()
}

// Copy returns the text for target.
func (v View) Copy(target CopyTarget) (string, error) {
	switch target {
	case CopyFramework:
		return v.Framework(), nil
	case CopyContext:
		return v.Context(), nil
	case CopyBoth:
		return v.Preview(), nil
	default:
		return "", fmt.Errorf("presenter: unknown copy target %q", target)
	}
}

// CopiedMessage is the confirmation shown after target was copied to dest,
// for example "clipboard" or a file path.
func CopiedMessage(target CopyTarget, dest string) string {
	return target.Label() + " copied to " + dest + "!"
}
