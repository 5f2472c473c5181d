package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/neuro-inc/apolo-cli/cmd/apolo/handlers"
)

// Config returns the config command group: login, logout and selection of
// the current cluster, org and project.
func Config() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Client configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the current settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return handlers.ConfigShow(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "show-token",
			Short: "Print the current access token",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return handlers.ConfigShowToken(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "login",
			Short: "Log into the platform with a browser",
			Long: `Log into the platform.

The login page opens in a browser and the command waits for the
redirect on a local port. Use --url to log into another platform.`,
			Args: cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return handlers.Login(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "login-headless",
			Short: "Log into the platform from a machine without a browser",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return handlers.LoginHeadless(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "login-with-token [TOKEN]",
			Short: "Log into the platform with an existing token",
			Long:  "Log into the platform with an existing token. Without TOKEN it is read from stdin.",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return handlers.LoginWithToken(cmd.Context(), optionalArg(args))
			},
		},
		&cobra.Command{
			Use:   "logout",
			Short: "Log out and remove the local config",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return handlers.Logout(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "update",
			Short: "Refresh clusters, orgs, projects and presets from the platform",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return handlers.ConfigUpdate(cmd.Context())
			},
		},
		switchCommand("switch-cluster", "cluster", handlers.SwitchCluster),
		switchCommand("switch-org", "org", handlers.SwitchOrg),
		switchCommand("switch-project", "project", handlers.SwitchProject),
	)

	return cmd
}

// switchCommand builds a switch-* command. Without an argument the handler
// asks interactively.
func switchCommand(use, what string, run func(ctx context.Context, name string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [NAME]",
		Short: "Select the current " + what,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) > 0 {
				name = args[0]
			}
			return run(cmd.Context(), name)
		},
	}
}
