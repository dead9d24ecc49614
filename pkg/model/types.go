package model

import (
	"encoding/json"
	"strings"
)

// OrganizationNoneValue is the wire sentinel for "no organizational focus".
const OrganizationNoneValue = "none"

type organizationState uint8

const (
	orgUnset organizationState = iota
	orgNone
	orgSelected
)

// Organization is the tri-state organization choice: unset, explicitly none,
// or a concrete organization id.
type Organization struct {
	state organizationState
	id    string
}

// NoOrganization returns the explicit "none" choice.
func NoOrganization() Organization {
	return Organization{state: orgNone}
}

// Org returns a concrete organization choice. An empty id yields Unset.
func Org(id string) Organization {
	id = strings.TrimSpace(id)
	if id == "" {
		return Organization{}
	}
	return Organization{state: orgSelected, id: id}
}

// ParseOrganization maps a raw form value onto the tri-state.
func ParseOrganization(raw string) Organization {
	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "":
		return Organization{}
	case strings.EqualFold(trimmed, OrganizationNoneValue):
		return NoOrganization()
	default:
		return Org(trimmed)
	}
}

// IsUnset reports whether no choice has been made yet.
func (o Organization) IsUnset() bool { return o.state == orgUnset }

// IsNone reports whether the user explicitly opted out.
func (o Organization) IsNone() bool { return o.state == orgNone }

// IsSelected reports whether a concrete organization was chosen.
func (o Organization) IsSelected() bool { return o.state == orgSelected }

// ID returns the organization id, empty unless IsSelected.
func (o Organization) ID() string { return o.id }

// Value returns the wire representation: "", "none" or the id.
func (o Organization) Value() string {
	switch o.state {
	case orgNone:
		return OrganizationNoneValue
	case orgSelected:
		return o.id
	default:
		return ""
	}
}

// State returns a short label used by visibility rules and logs.
func (o Organization) State() string {
	switch o.state {
	case orgNone:
		return "none"
	case orgSelected:
		return "selected"
	default:
		return "unset"
	}
}

func (o Organization) String() string {
	if v := o.Value(); v != "" {
		return v
	}
	return "<unset>"
}

// Selection is the form's working state.
type Selection struct {
	Scale           string
	Level           string
	GrowthIntensity string
	Organization    Organization
	FocusText       string
	GoalStyle       string
}

// GenerationRequest is built once from a validated Selection.
type GenerationRequest struct {
	Scale           string
	Level           string
	GrowthIntensity string
	Organization    string
	FocusText       *string
	GoalStyle       string
}

type generationRequestPayload struct {
	Scale           string  `json:"scale"`
	Level           string  `json:"level"`
	GrowthIntensity string  `json:"growth_intensity"`
	Org             string  `json:"org"`
	FocusArea       *string `json:"focus_area,omitempty"`
	Theme           *string `json:"theme,omitempty"`
	GoalStyle       string  `json:"goal_style"`
}

// MarshalJSON emits the /api/goals/generate body. The optional focus text is
// sent as both focus_area and theme so either backend revision picks it up.
func (r GenerationRequest) MarshalJSON() ([]byte, error) {
	payload := generationRequestPayload{
		Scale:           r.Scale,
		Level:           r.Level,
		GrowthIntensity: r.GrowthIntensity,
		Org:             r.Organization,
		GoalStyle:       r.GoalStyle,
	}
	if r.FocusText != nil {
		focus := *r.FocusText
		payload.FocusArea = &focus
		payload.Theme = &focus
	}
	return json.Marshal(payload)
}

// ResultShape records which wire shape a result was normalized from.
type ResultShape string

const (
	ShapeNamed ResultShape = "named"
	ShapePair  ResultShape = "pair"
)

// GenerationResult is the canonical two-part outcome of a generate call.
type GenerationResult struct {
	FrameworkText string
	ContextText   string
	Shape         ResultShape
}
