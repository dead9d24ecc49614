package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-myimpact/pkg/model"
)

// DefaultMetadataJSON mirrors the shape served by /api/metadata. The team
// scale and the concise goal style back the end-to-end generate scenario.
const DefaultMetadataJSON = `{
  "scales": ["individual", "team"],
  "levels": {
    "individual": ["L30-35 (Career)", "L40-45 (Senior)"],
    "team": ["quarterly", "annual"]
  },
  "organizations": ["demo", "platform"],
  "growth_intensities": ["minimal", "moderate", "aggressive"],
  "goal_styles": ["independent", "progressive", "concise"]
}`

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}

// MustMetadata decodes DefaultMetadataJSON.
func MustMetadata(t *testing.T) model.ReferenceMetadata {
	t.Helper()

	meta, err := model.DecodeReferenceMetadata([]byte(DefaultMetadataJSON))
	if err != nil {
		t.Fatalf("decode metadata fixture: %v", err)
	}
	return meta
}

// MustReadGolden reads a golden file and returns its raw bytes.
func MustReadGolden(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read golden: %v", err)
	}
	return data
}

// WriteMaybeGolden updates a golden file when UPDATE_GOLDENS is set. Returns
// true if the golden was written (test should exit early).
func WriteMaybeGolden(t *testing.T, path string, data []byte) bool {
	t.Helper()
	if os.Getenv("UPDATE_GOLDENS") == "" {
		return false
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir golden dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write golden: %v", err)
	}
	return true
}
