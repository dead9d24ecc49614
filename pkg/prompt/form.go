package prompt

import (
	"context"
	"fmt"
	"slices"

	"github.com/goliatone/go-myimpact/pkg/form"
	"github.com/goliatone/go-myimpact/pkg/model"
	"github.com/goliatone/go-myimpact/pkg/presenter"
)

// FillForm walks the goal form field by field, in dependency order, starting
// from the engine's current selection so a retry keeps earlier answers as
// defaults.
func FillForm(ctx context.Context, driver Driver, engine *form.Engine) (model.Selection, error) {
	meta := engine.Metadata()
	current := engine.Selection()

	scale, err := choose(ctx, driver, "Scale", meta.Scales(), current.Scale)
	if err != nil {
		return engine.Selection(), err
	}
	if _, err := engine.SetScale(scale); err != nil {
		return engine.Selection(), err
	}

	levels := meta.LevelsFor(scale)
	if len(levels) == 0 {
		return engine.Selection(), fmt.Errorf("prompt: scale %q has no levels", scale)
	}
	level, err := choose(ctx, driver, "Level", levels, engine.Selection().Level)
	if err != nil {
		return engine.Selection(), err
	}
	if _, err := engine.SetLevel(level); err != nil {
		return engine.Selection(), err
	}

	intensity, err := choose(ctx, driver, "Growth intensity", meta.GrowthIntensities(), current.GrowthIntensity)
	if err != nil {
		return engine.Selection(), err
	}
	if _, err := engine.SetGrowthIntensity(intensity); err != nil {
		return engine.Selection(), err
	}

	orgs := append([]string{model.OrganizationNoneValue}, meta.Organizations()...)
	org, err := choose(ctx, driver, "Organization", orgs, current.Organization.Value())
	if err != nil {
		return engine.Selection(), err
	}
	if _, err := engine.SetOrganization(model.ParseOrganization(org)); err != nil {
		return engine.Selection(), err
	}
	engine.Wait()
	if panel := engine.FocusPanel(); panel.Visible {
		if err := driver.Info(ctx, "Focus areas for "+panel.Org+":\n"+presenter.PlainText(panel.Content)); err != nil {
			return engine.Selection(), err
		}
	}

	focus, err := driver.Input(ctx, InputConfig{
		Message: "Focus area (optional)",
		Default: current.FocusText,
		Help:    "Strategic focus area to bias goal generation",
	})
	if err != nil {
		return engine.Selection(), err
	}
	engine.SetFocusText(focus)

	style, err := choose(ctx, driver, "Goal style", meta.GoalStyles(), current.GoalStyle)
	if err != nil {
		return engine.Selection(), err
	}
	if _, err := engine.SetGoalStyle(style); err != nil {
		return engine.Selection(), err
	}

	return engine.Selection(), nil
}

func choose(ctx context.Context, driver Driver, message string, options []string, current string) (string, error) {
	idx, err := driver.Select(ctx, SelectConfig{
		Message:      message,
		Options:      options,
		DefaultIndex: max(slices.Index(options, current), 0),
	})
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(options) {
		return "", fmt.Errorf("prompt: %s selection %d out of range", message, idx)
	}
	return options[idx], nil
}
