package commands

import (
	"github.com/spf13/cobra"

	"github.com/neuro-inc/apolo-cli/cmd/apolo/handlers"
)

// Blob returns the blob command group for buckets and their objects.
func Blob() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blob",
		Short: "Blob storage operations",
		Long: `Blob storage operations.

Objects are addressed as blob:BUCKET/KEY, relative to the current
project, or blob://cluster/org/project/BUCKET/KEY.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "lsbucket",
			Short: "List buckets",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return handlers.BlobLsBucket(cmd.Context())
			},
		},
		blobMkBucket(),
		&cobra.Command{
			Use:   "rmbucket BUCKET...",
			Short: "Remove buckets",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return handlers.BlobRmBucket(cmd.Context(), args)
			},
		},
		&cobra.Command{
			Use:   "statbucket BUCKET",
			Short: "Show bucket details",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return handlers.BlobStatBucket(cmd.Context(), args[0])
			},
		},
		blobLs(),
		blobCp(),
		blobRm(),
		&cobra.Command{
			Use:   "glob PATTERN...",
			Short: "List objects that match patterns",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return handlers.BlobGlob(cmd.Context(), args)
			},
		},
		blobMkCredentials(),
		&cobra.Command{
			Use:   "lscredentials",
			Short: "List persistent bucket credentials",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return handlers.BlobLsCredentials(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "rmcredentials CREDENTIALS...",
			Short: "Remove persistent bucket credentials",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return handlers.BlobRmCredentials(cmd.Context(), args)
			},
		},
	)

	return cmd
}

func blobMkBucket() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "mkbucket",
		Short: "Create a bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.BlobMkBucket(cmd.Context(), name)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Optional bucket name")

	return cmd
}

func blobLs() *cobra.Command {
	var long, human, recursive bool

	cmd := &cobra.Command{
		Use:   "ls [URI...]",
		Short: "List buckets or bucket contents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.BlobLs(cmd.Context(), args, long, human, recursive)
		},
	}

	cmd.Flags().BoolVarP(&long, "long", "l", false, "Use a long listing format")
	cmd.Flags().BoolVarP(&human, "human-readable", "H", false, "Print sizes like 1K 234M 2G")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "List all keys under the prefix")

	return cmd
}

func blobCp() *cobra.Command {
	var opts handlers.CopyOptions

	cmd := &cobra.Command{
		Use:   "cp SOURCE... DESTINATION",
		Short: "Copy files between the local machine and buckets",
		Args:  cobra.MinimumNArgs(1),
	}
	finish := copyFlags(cmd, &opts)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		finish()
		return handlers.BlobCp(cmd.Context(), args, opts)
	}

	return cmd
}

func blobRm() *cobra.Command {
	var recursive, noGlob bool

	cmd := &cobra.Command{
		Use:   "rm URI...",
		Short: "Remove objects",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.BlobRm(cmd.Context(), args, recursive, !noGlob)
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Remove every object under the prefix")
	cmd.Flags().BoolVar(&noGlob, "no-glob", false, "Do not expand glob patterns")

	return cmd
}

func blobMkCredentials() *cobra.Command {
	var (
		name     string
		readOnly bool
	)

	cmd := &cobra.Command{
		Use:   "mkcredentials BUCKET...",
		Short: "Create persistent credentials for buckets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.BlobMkCredentials(cmd.Context(), args, name, readOnly)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Optional credentials name")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "Grant read-only access")

	return cmd
}
