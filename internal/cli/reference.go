package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-myimpact/pkg/model"
	"github.com/goliatone/go-myimpact/pkg/presenter"
)

func (a *app) newMetadataCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "metadata",
		Aliases: []string{"list-options"},
		Short:   "List the scales, levels, organizations and options offered by the API",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session := a.newSession()
			defer session.Close()

			meta, err := session.Metadata(cmd.Context())
			if err != nil {
				return metadataFailure(cmd, newStyles(cmd.ErrOrStderr()), err)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(meta)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderMetadata(newStyles(cmd.OutOrStdout()), meta))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw metadata as JSON")
	return cmd
}

func renderMetadata(st styles, meta model.ReferenceMetadata) string {
	var b strings.Builder
	b.WriteString(st.title.Render("Available options") + "\n\n")

	b.WriteString(st.heading.Render("Scales") + "\n")
	b.WriteString(st.bullets(meta.Scales()) + "\n\n")

	b.WriteString(st.heading.Render("Levels") + "\n")
	for _, scale := range meta.Scales() {
		b.WriteString(st.body.Render(scale+":") + "\n")
		b.WriteString(st.body.Render(st.bullets(meta.LevelsFor(scale))) + "\n")
	}
	b.WriteString("\n")

	b.WriteString(st.heading.Render("Growth intensities") + "\n")
	b.WriteString(st.bullets(meta.GrowthIntensities()) + "\n\n")

	b.WriteString(st.heading.Render("Goal styles") + "\n")
	b.WriteString(st.bullets(meta.GoalStyles()) + "\n\n")

	b.WriteString(st.heading.Render("Organizations") + "\n")
	b.WriteString(st.bullets(append([]string{model.OrganizationNoneValue}, meta.Organizations()...)) + "\n")
	return b.String()
}

func (a *app) newFocusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "focus <org>",
		Short: "Show the strategic focus areas of an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			org := model.ParseOrganization(args[0])
			if !org.IsSelected() {
				return fmt.Errorf("cli: %q is not an organization id", args[0])
			}

			session := a.newSession()
			defer session.Close()

			st := newStyles(cmd.OutOrStdout())
			content, found, err := session.FocusContent(cmd.Context(), org.ID())
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintln(cmd.OutOrStdout(), st.muted.Render("No focus areas defined for "+org.ID()+"."))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), st.section("Focus areas for "+org.ID(), presenter.PlainText(content)))
			return nil
		},
	}
}

func (a *app) newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the API is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session := a.newSession()
			defer session.Close()

			st := newStyles(cmd.OutOrStdout())
			if err := session.Health(cmd.Context()); err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), st.failure.Render("unhealthy: "+a.cfg.APIBaseURL))
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), st.success.Render("healthy: "+a.cfg.APIBaseURL))
			return nil
		},
	}
}
