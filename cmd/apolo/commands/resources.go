package commands

import (
	"github.com/spf13/cobra"

	"github.com/neuro-inc/apolo-cli/cmd/apolo/handlers"
)

// Disk returns the disk command group.
func Disk() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disk",
		Short: "Persistent disk operations",
	}

	var (
		name          string
		timeoutUnused string
		long          bool
		output        string
	)

	create := &cobra.Command{
		Use:   "create SIZE",
		Short: "Create a disk",
		Long: `Create a disk of the given size, for example 10G or 500Mi.

A disk not used by any job for --timeout-unused is removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.DiskCreate(cmd.Context(), args[0], name, timeoutUnused)
		},
	}
	create.Flags().StringVar(&name, "name", "", "Optional disk name")
	create.Flags().StringVar(&timeoutUnused, "timeout-unused", "", "Remove the disk after it is unused this long, e.g. 1d")

	ls := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List disks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.DiskLs(cmd.Context(), long, output)
		},
	}
	ls.Flags().BoolVarP(&long, "long", "l", false, "Show more columns")
	ls.Flags().StringVar(&output, "output", "", "Output format: table, json or yaml")

	cmd.AddCommand(
		create,
		ls,
		&cobra.Command{
			Use:   "get DISK",
			Short: "Show disk details",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return handlers.DiskGet(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "rm DISK...",
			Short: "Remove disks",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return handlers.DiskRm(cmd.Context(), args)
			},
		},
	)

	return cmd
}

// Secret returns the secret command group.
func Secret() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Secret operations",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add KEY VALUE",
			Short: "Add or replace a secret",
			Long:  "Add or replace a secret. A VALUE of @FILE reads the value from FILE.",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return handlers.SecretAdd(cmd.Context(), args[0], args[1])
			},
		},
		&cobra.Command{
			Use:     "ls",
			Aliases: []string{"list"},
			Short:   "List secrets",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return handlers.SecretLs(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "rm KEY...",
			Short: "Remove secrets",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return handlers.SecretRm(cmd.Context(), args)
			},
		},
	)

	return cmd
}

// Image returns the image command group for the project registry.
func Image() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Container image operations",
	}

	var long bool
	ls := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List images of the current project",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.ImageLs(cmd.Context(), long)
		},
	}
	ls.Flags().BoolVarP(&long, "long", "l", false, "Show full registry references")

	cmd.AddCommand(
		ls,
		&cobra.Command{
			Use:   "tags IMAGE",
			Short: "List tags of an image",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return handlers.ImageTags(cmd.Context(), args[0])
			},
		},
	)

	return cmd
}
