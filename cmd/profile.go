package cmd

import (
	"fmt"

	"github.com/bnema/powertrack-cli/internal/adapters/render/summary"
	"github.com/bnema/powertrack-cli/internal/application"
	"github.com/bnema/powertrack-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newProfileCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage account profiles",
	}

	cmd.AddCommand(
		newProfileSetCmd(app),
		newProfileListCmd(app),
		newProfileRemoveCmd(app),
	)

	return cmd
}

func newProfileSetCmd(app *app) *cobra.Command {
	var profile domain.Profile

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Create or update the profile selected by --profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile.Name = app.profileName
			if app.override.User != "" {
				profile.User = app.override.User
			}

			err := app.profiles.SaveProfile(cmd.Context(), application.SaveProfileCommand{
				Profile:  profile,
				Password: app.override.Password,
			})
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "profile %s saved\n", profile.Name)
			return err
		},
	}

	cmd.Flags().StringVar(&profile.AccountName, "account", "", "Gnip account name")
	cmd.Flags().StringVar(&profile.Platform, "platform", domain.DefaultPlatform, "Publisher platform")
	cmd.Flags().StringVar(&profile.StreamName, "stream", domain.DefaultStreamName, "Stream label")
	cmd.Flags().IntVar(&profile.BatchSize, "batch-size", domain.DefaultBatchSize, "Rules per add/remove request")
	cmd.Flags().Float64Var(&profile.RulesRate, "rules-rate", 0, "Max rule API calls per second (0: unpaced)")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func newProfileListCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			statuses, err := app.profiles.ListProfiles(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), statuses)
			}

			rendered, err := summary.RenderProfiles(statuses)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func newProfileRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove",
		Short: "Delete the profile selected by --profile and its stored password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.profiles.RemoveProfile(cmd.Context(), application.RemoveProfileCommand{Name: app.profileName}); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "profile %s removed\n", app.profileName)
			return err
		},
	}
}
