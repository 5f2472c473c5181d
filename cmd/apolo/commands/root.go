// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/neuro-inc/apolo-cli/cmd/apolo/handlers"
	"github.com/neuro-inc/apolo-cli/internal/config"
)

// Root returns the root command for the apolo CLI.
//
// Global flags are resolved into config.Settings before any subcommand
// runs and the resulting handlers.Env travels on the command context.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "apolo",
		Short:         "Manage jobs, storage and buckets on the Apolo platform",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			s, err := config.LoadSettings(cmd.Flags())
			if err != nil {
				return err
			}
			env := handlers.NewEnv(s, version, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
			cmd.SetContext(handlers.WithEnv(cmd.Context(), env))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Finish(cmd.Context())
		},
	}

	f := cmd.PersistentFlags()
	f.CountP("verbose", "v", "Give more output; repeat for debug logging")
	f.BoolP("quiet", "q", false, "Give less output")
	f.String("config", config.DefaultDir(), "Path to the config directory")
	f.String("url", "", "Platform API URL used by login")
	f.String("cluster", "", "Use this cluster instead of the selected one")
	f.String("org", "", "Use this org instead of the selected one ("+config.NoOrg+" for none)")
	f.String("project", "", "Use this project instead of the selected one")
	f.String("color", config.ColorAuto, "Colorize output: auto, always or never")
	f.String("metrics-dump", "", "Write request metrics to this file on exit")

	cmd.AddGroup(
		&cobra.Group{ID: "resources", Title: "Resource Commands:"},
		&cobra.Group{ID: "shortcuts", Title: "Shortcuts:"},
	)

	for _, sub := range []*cobra.Command{
		Config(), Storage(), Blob(), Job(), Disk(), Secret(), Image(), Admin(),
	} {
		sub.GroupID = "resources"
		cmd.AddCommand(sub)
	}

	// Shortcuts for the most used storage and job commands.
	for _, sub := range []*cobra.Command{
		StorageLs(), StorageCp(), StorageMkdir(), StorageRm(), StorageMv(),
		JobRun(), JobPs(), JobStatus(), JobKill(), JobLogs(), JobTop(),
	} {
		sub.GroupID = "shortcuts"
		cmd.AddCommand(sub)
	}

	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}
