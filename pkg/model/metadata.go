package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Default enumerations used when /api/metadata omits them.
var (
	DefaultGrowthIntensities = []string{"minimal", "moderate", "aggressive"}
	DefaultGoalStyles        = []string{"independent", "progressive"}
)

// ReferenceMetadata is the immutable snapshot served by /api/metadata.
type ReferenceMetadata struct {
	scales            []string
	levels            map[string][]string
	organizations     []string
	growthIntensities []string
	goalStyles        []string
}

type metadataPayload struct {
	Scales            []string            `json:"scales"`
	Levels            map[string][]string `json:"levels"`
	Organizations     []string            `json:"organizations"`
	GrowthIntensities []string            `json:"growth_intensities,omitempty"`
	GoalStyles        []string            `json:"goal_styles,omitempty"`
}

// NewReferenceMetadata validates and copies the provided reference data.
// Every key of levels must be a known scale.
func NewReferenceMetadata(scales []string, levels map[string][]string, organizations []string) (ReferenceMetadata, error) {
	return newMetadata(metadataPayload{
		Scales:        scales,
		Levels:        levels,
		Organizations: organizations,
	})
}

// DecodeReferenceMetadata parses the JSON body of /api/metadata.
func DecodeReferenceMetadata(raw []byte) (ReferenceMetadata, error) {
	if len(raw) == 0 {
		return ReferenceMetadata{}, errors.New("model: metadata payload is empty")
	}
	var payload metadataPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ReferenceMetadata{}, fmt.Errorf("model: decode metadata: %w", err)
	}
	return newMetadata(payload)
}

func newMetadata(payload metadataPayload) (ReferenceMetadata, error) {
	if len(payload.Scales) == 0 {
		return ReferenceMetadata{}, errors.New("model: metadata lists no scales")
	}

	meta := ReferenceMetadata{
		scales:            cleanList(payload.Scales),
		levels:            make(map[string][]string, len(payload.Levels)),
		organizations:     cleanList(payload.Organizations),
		growthIntensities: cleanList(payload.GrowthIntensities),
		goalStyles:        cleanList(payload.GoalStyles),
	}
	for scale, levels := range payload.Levels {
		if !slices.Contains(meta.scales, scale) {
			return ReferenceMetadata{}, fmt.Errorf("model: levels reference unknown scale %q", scale)
		}
		meta.levels[scale] = cleanList(levels)
	}
	if slices.Contains(meta.organizations, OrganizationNoneValue) {
		return ReferenceMetadata{}, fmt.Errorf("model: organization id %q is reserved", OrganizationNoneValue)
	}
	if len(meta.growthIntensities) == 0 {
		meta.growthIntensities = slices.Clone(DefaultGrowthIntensities)
	}
	if len(meta.goalStyles) == 0 {
		meta.goalStyles = slices.Clone(DefaultGoalStyles)
	}
	return meta, nil
}

// MarshalJSON renders the snapshot using the /api/metadata wire shape.
func (m ReferenceMetadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(metadataPayload{
		Scales:            m.scales,
		Levels:            m.levels,
		Organizations:     m.organizations,
		GrowthIntensities: m.growthIntensities,
		GoalStyles:        m.goalStyles,
	})
}

// IsZero reports whether the snapshot was never populated.
func (m ReferenceMetadata) IsZero() bool {
	return len(m.scales) == 0
}

// Scales returns the valid scale identifiers in server order.
func (m ReferenceMetadata) Scales() []string {
	return slices.Clone(m.scales)
}

// LevelsFor returns the ordered levels owned by scale.
func (m ReferenceMetadata) LevelsFor(scale string) []string {
	return slices.Clone(m.levels[scale])
}

// Organizations returns the selectable organization ids.
func (m ReferenceMetadata) Organizations() []string {
	return slices.Clone(m.organizations)
}

// GrowthIntensities returns the enumerated growth intensities.
func (m ReferenceMetadata) GrowthIntensities() []string {
	return slices.Clone(m.growthIntensities)
}

// GoalStyles returns the enumerated goal styles.
func (m ReferenceMetadata) GoalStyles() []string {
	return slices.Clone(m.goalStyles)
}

func (m ReferenceMetadata) HasScale(scale string) bool {
	return scale != "" && slices.Contains(m.scales, scale)
}

// HasLevel reports whether level belongs to scale's level set.
func (m ReferenceMetadata) HasLevel(scale, level string) bool {
	return level != "" && slices.Contains(m.levels[scale], level)
}

func (m ReferenceMetadata) HasOrganization(id string) bool {
	return id != "" && slices.Contains(m.organizations, id)
}

func (m ReferenceMetadata) HasGrowthIntensity(value string) bool {
	return value != "" && slices.Contains(m.growthIntensities, value)
}

func (m ReferenceMetadata) HasGoalStyle(value string) bool {
	return value != "" && slices.Contains(m.goalStyles, value)
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" || slices.Contains(out, trimmed) {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
