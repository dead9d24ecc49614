package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-myimpact/pkg/form"
	"github.com/goliatone/go-myimpact/pkg/lifecycle"
	"github.com/goliatone/go-myimpact/pkg/model"
	"github.com/goliatone/go-myimpact/pkg/orchestrator"
	"github.com/goliatone/go-myimpact/pkg/presenter"
	"github.com/goliatone/go-myimpact/pkg/prompt"
)

// UnhealthyWarning is shown when the liveness probe fails. It never blocks
// generation.
const UnhealthyWarning = "Warning: the API did not answer its health check; generation may fail."

type generateOptions struct {
	scale       string
	level       string
	intensity   string
	org         string
	focus       string
	style       string
	interactive bool
	copyTarget  string
	output      string
}

func (a *app) newGenerateCommand() *cobra.Command {
	var opts generateOptions
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate goal framework and customization prompts",
		Long: `Generate loads the reference metadata, fills the goal form and submits it.

Without --interactive every required field comes from flags. Use --org none to
generate without an organization. With --copy or --output only the selected
prompt text is written, which is convenient for piping.`,
		Example: `  myimpact generate --scale individual --level "L40-45 (Senior)" --org none
  myimpact generate --interactive --copy both --output prompts.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runGenerate(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.scale, "scale", "", "goal scale")
	flags.StringVar(&opts.level, "level", "", "level within the scale")
	flags.StringVar(&opts.intensity, "intensity", "", "growth intensity (defaults to the configured default)")
	flags.StringVar(&opts.org, "org", "", `organization id, or "none"`)
	flags.StringVar(&opts.focus, "focus", "", "optional strategic focus area")
	flags.StringVar(&opts.style, "style", "", "goal style (defaults to the configured default)")
	flags.BoolVarP(&opts.interactive, "interactive", "i", false, "ask for each field")
	flags.StringVar(&opts.copyTarget, "copy", "", "write only framework, context or both")
	flags.StringVarP(&opts.output, "output", "o", "", "write the selected prompt text to a file")
	return cmd
}

func (a *app) runGenerate(cmd *cobra.Command, opts generateOptions) error {
	ctx := cmd.Context()
	st := newStyles(cmd.ErrOrStderr())

	target := presenter.CopyBoth
	if opts.copyTarget != "" {
		parsed, err := presenter.ParseCopyTarget(opts.copyTarget)
		if err != nil {
			return err
		}
		target = parsed
	}

	session := a.newSession()
	defer session.Close()

	engine, healthy, err := startSession(ctx, session)
	if err != nil {
		return metadataFailure(cmd, st, err)
	}
	if !healthy {
		fmt.Fprintln(cmd.ErrOrStderr(), st.warn.Render(UnhealthyWarning))
	}

	if opts.interactive {
		err = a.submitInteractive(ctx, cmd, st, session, engine)
	} else {
		err = submitFromFlags(ctx, cmd, st, session, engine, opts)
	}
	if err != nil {
		return err
	}

	view, ok := session.View()
	if !ok {
		return errors.New("cli: no result to present")
	}
	return writeResult(cmd, view, target, opts)
}

// startSession loads metadata and probes health concurrently. Only the
// metadata outcome can fail the command.
func startSession(ctx context.Context, session *orchestrator.Orchestrator) (*form.Engine, bool, error) {
	var (
		engine  *form.Engine
		healthy bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		healthy = session.Healthy(gctx)
		return nil
	})
	g.Go(func() error {
		e, err := session.Start(gctx)
		engine = e
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, false, err
	}
	return engine, healthy, nil
}

func submitFromFlags(ctx context.Context, cmd *cobra.Command, st styles, session *orchestrator.Orchestrator, engine *form.Engine, opts generateOptions) error {
	if err := applyFlags(engine, opts); err != nil {
		return err
	}
	engine.Wait()
	showFocusPanel(cmd.ErrOrStderr(), st, engine.FocusPanel())

	_, err := session.Submit(ctx)
	if err != nil {
		reportSubmitError(cmd.ErrOrStderr(), st, err)
	}
	return err
}

func applyFlags(engine *form.Engine, opts generateOptions) error {
	if opts.scale != "" {
		if _, err := engine.SetScale(opts.scale); err != nil {
			return err
		}
	}
	if opts.level != "" {
		if _, err := engine.SetLevel(opts.level); err != nil {
			return err
		}
	}
	if opts.intensity != "" {
		if _, err := engine.SetGrowthIntensity(opts.intensity); err != nil {
			return err
		}
	}
	if opts.style != "" {
		if _, err := engine.SetGoalStyle(opts.style); err != nil {
			return err
		}
	}
	if opts.org != "" {
		if _, err := engine.SetOrganization(model.ParseOrganization(opts.org)); err != nil {
			return err
		}
	}
	engine.SetFocusText(opts.focus)
	return nil
}

// submitInteractive walks the form with the prompt driver. After a failed
// generation the user may resubmit the same selection without re-entering it.
func (a *app) submitInteractive(ctx context.Context, cmd *cobra.Command, st styles, session *orchestrator.Orchestrator, engine *form.Engine) error {
	driver := a.promptDriver()
	refill := true
	for {
		if refill {
			if _, err := prompt.FillForm(ctx, driver, engine); err != nil {
				return err
			}
		}

		_, err := session.Submit(ctx)
		if err == nil {
			return nil
		}
		reportSubmitError(cmd.ErrOrStderr(), st, err)

		var info *lifecycle.ErrorInfo
		if !errors.As(err, &info) {
			return err
		}
		again, cerr := driver.Confirm(ctx, prompt.ConfirmConfig{
			Message: "Resubmit with the same selections?",
			Default: true,
		})
		if cerr != nil {
			return cerr
		}
		if !again {
			return err
		}
		a.logger.Debug("resubmitting", zap.String("previous_error", string(info.Kind)))
		refill = false
	}
}

func reportSubmitError(w io.Writer, st styles, err error) {
	var (
		invalid *form.ValidationError
		info    *lifecycle.ErrorInfo
	)
	switch {
	case errors.As(err, &invalid):
		fmt.Fprintln(w, st.failure.Render(lifecycle.ValidationNotice))
		fmt.Fprintln(w, st.muted.Render("missing: "+strings.Join(invalid.Missing, ", ")))
	case errors.As(err, &info):
		fmt.Fprintln(w, st.failure.Render(presenter.PlainText(info.Message)))
	}
}

func showFocusPanel(w io.Writer, st styles, panel form.FocusPanel) {
	if !panel.Visible || panel.Loading {
		return
	}
	fmt.Fprintln(w, st.section("Focus areas for "+panel.Org, presenter.PlainText(panel.Content)))
}

func writeResult(cmd *cobra.Command, view presenter.View, target presenter.CopyTarget, opts generateOptions) error {
	out := cmd.OutOrStdout()
	if opts.output != "" {
		text, err := view.Copy(target)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.output, []byte(text+"\n"), 0o644); err != nil {
			return fmt.Errorf("cli: write %s: %w", opts.output, err)
		}
		st := newStyles(cmd.ErrOrStderr())
		fmt.Fprintln(cmd.ErrOrStderr(), st.success.Render(presenter.CopiedMessage(target, opts.output)))
		return nil
	}
	if opts.copyTarget != "" {
		text, err := view.Copy(target)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, text)
		return nil
	}

	st := newStyles(out)
	fmt.Fprintln(out, st.section(presenter.FrameworkHeading, view.Framework()))
	fmt.Fprintln(out)
	fmt.Fprintln(out, st.section(presenter.ContextHeading, view.Context()))
	return nil
}
