package prompt_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/goliatone/go-myimpact/pkg/form"
	"github.com/goliatone/go-myimpact/pkg/model"
	"github.com/goliatone/go-myimpact/pkg/prompt"
	"github.com/goliatone/go-myimpact/pkg/testsupport"
)

type focusLookup map[string]string

func (f focusLookup) OrgFocusContent(_ context.Context, org string) (string, bool, error) {
	content, ok := f[org]
	return content, ok, nil
}

func TestFillForm_WalksCascade(t *testing.T) {
	t.Parallel()

	engine := form.New(testsupport.MustMetadata(t), focusLookup{"platform": "<p>Reliability <b>first</b></p>"})
	defer engine.Close()

	driver := &prompt.Scripted{
		// scale=team, level=annual, intensity=aggressive, org=platform, style=concise
		Selects: []int{1, 1, 2, 2, 2},
		Inputs:  []string{"  Reduce incident count  "},
	}

	sel, err := prompt.FillForm(context.Background(), driver, engine)
	if err != nil {
		t.Fatalf("fill form: %v", err)
	}

	want := model.Selection{
		Scale:           "team",
		Level:           "annual",
		GrowthIntensity: "aggressive",
		Organization:    model.Org("platform"),
		FocusText:       "  Reduce incident count  ",
		GoalStyle:       "concise",
	}
	if diff := cmp.Diff(want, sel, cmp.AllowUnexported(model.Organization{})); diff != "" {
		t.Fatalf("selection mismatch (-want +got):\n%s", diff)
	}

	wantAsked := []string{"Scale", "Level", "Growth intensity", "Organization", "Focus area (optional)", "Goal style"}
	if diff := cmp.Diff(wantAsked, driver.Asked); diff != "" {
		t.Fatalf("prompt order mismatch (-want +got):\n%s", diff)
	}
	if len(driver.Infos) != 1 || !strings.Contains(driver.Infos[0], "Reliability first") {
		t.Fatalf("expected sanitized focus content, got %q", driver.Infos)
	}
}

func TestFillForm_NoneOrganizationSkipsFocus(t *testing.T) {
	t.Parallel()

	engine := form.New(testsupport.MustMetadata(t), focusLookup{"platform": "content"})
	defer engine.Close()

	driver := &prompt.Scripted{
		Selects: []int{0, 0, 1, 0, 0},
		Inputs:  []string{""},
	}
	sel, err := prompt.FillForm(context.Background(), driver, engine)
	if err != nil {
		t.Fatalf("fill form: %v", err)
	}
	if !sel.Organization.IsNone() {
		t.Fatalf("organization = %s, want none", sel.Organization)
	}
	if len(driver.Infos) != 0 {
		t.Fatalf("focus content must not be shown for none: %q", driver.Infos)
	}
	if _, err := engine.Validate(); err != nil {
		t.Fatalf("filled selection should validate: %v", err)
	}
}

func TestFillForm_StopsOnAbort(t *testing.T) {
	t.Parallel()

	engine := form.New(testsupport.MustMetadata(t), nil)
	defer engine.Close()

	driver := &prompt.Scripted{Selects: []int{1}}
	_, err := prompt.FillForm(context.Background(), driver, engine)
	if !errors.Is(err, prompt.ErrScriptExhausted) {
		t.Fatalf("expected ErrScriptExhausted, got %v", err)
	}
	if diff := cmp.Diff([]string{"Scale", "Level"}, driver.Asked, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("prompt order mismatch (-want +got):\n%s", diff)
	}
	if got := engine.Selection().Scale; got != "team" {
		t.Fatalf("answered fields should be kept, scale = %q", got)
	}
}
