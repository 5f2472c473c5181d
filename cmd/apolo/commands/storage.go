package commands

import (
	"github.com/spf13/cobra"

	"github.com/neuro-inc/apolo-cli/cmd/apolo/handlers"
)

// Storage returns the storage command group.
func Storage() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "storage",
		Aliases: []string{"s"},
		Short:   "Storage operations",
		Long: `Storage operations.

Remote paths are storage: URIs. Relative paths such as storage:data
resolve against the current project, storage:/other/data against the
current org and storage://cluster/org/project/data is fully qualified.
Local paths may be plain paths or file: URIs.`,
	}

	cmd.AddCommand(
		StorageLs(),
		StorageCp(),
		StorageMkdir(),
		StorageRm(),
		StorageMv(),
		StorageGlob(),
		StorageDf(),
	)

	return cmd
}

// StorageLs returns the storage ls command.
func StorageLs() *cobra.Command {
	var opts handlers.ListOptions

	cmd := &cobra.Command{
		Use:   "ls [PATH...]",
		Short: "List directory contents",
		Long:  "List directory contents. Without a path the project root is listed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.StorageLs(cmd.Context(), args, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Long, "long", "l", false, "Use a long listing format")
	cmd.Flags().BoolVarP(&opts.Human, "human-readable", "H", false, "Print sizes like 1K 234M 2G")
	cmd.Flags().BoolVarP(&opts.Directory, "directory", "d", false, "List directories themselves, not their contents")
	cmd.Flags().BoolVarP(&opts.All, "all", "a", false, "Do not ignore entries starting with .")
	cmd.Flags().StringVar(&opts.Sort, "sort", "name", "Sort by name, size or time")

	return cmd
}

// StorageCp returns the storage cp command.
func StorageCp() *cobra.Command {
	var opts handlers.CopyOptions

	cmd := &cobra.Command{
		Use:   "cp SOURCE... DESTINATION",
		Short: "Copy files and directories",
		Long: `Copy files and directories between the local machine and storage.

Either the sources or the destination must be remote. Sources may be
glob patterns. Directories need -r. With -u only sources newer than the
destination are copied and with -c interrupted copies are resumed.
Uploads honour .apoloignore files found in each directory.

Examples:
  apolo cp -r ./data storage:data
  apolo cp storage:results/*.csv .
  apolo cp -r -u --exclude '*.tmp' ./src storage:src`,
		Args: cobra.MinimumNArgs(1),
	}
	finish := copyFlags(cmd, &opts)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		finish()
		return handlers.StorageCp(cmd.Context(), args, opts)
	}

	return cmd
}

// StorageMkdir returns the storage mkdir command.
func StorageMkdir() *cobra.Command {
	var parents bool

	cmd := &cobra.Command{
		Use:   "mkdir PATH...",
		Short: "Make directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.StorageMkdir(cmd.Context(), args, parents)
		},
	}

	cmd.Flags().BoolVarP(&parents, "parents", "p", false, "No error if existing, make parent directories as needed")

	return cmd
}

// StorageRm returns the storage rm command.
func StorageRm() *cobra.Command {
	var recursive, noGlob bool

	cmd := &cobra.Command{
		Use:   "rm PATH...",
		Short: "Remove files or directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.StorageRm(cmd.Context(), args, recursive, !noGlob)
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Remove directories and their contents recursively")
	cmd.Flags().BoolVar(&noGlob, "no-glob", false, "Do not expand glob patterns")

	return cmd
}

// StorageMv returns the storage mv command.
func StorageMv() *cobra.Command {
	var (
		targetDir   string
		noTargetDir bool
		noGlob      bool
	)

	cmd := &cobra.Command{
		Use:   "mv SOURCE... DESTINATION",
		Short: "Move or rename files and directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.StorageMv(cmd.Context(), args, targetDir, noTargetDir, !noGlob)
		},
	}

	cmd.Flags().StringVarP(&targetDir, "target-directory", "t", "", "Move all sources into this directory")
	cmd.Flags().BoolVarP(&noTargetDir, "no-target-directory", "T", false, "Treat the destination as a normal file")
	cmd.Flags().BoolVar(&noGlob, "no-glob", false, "Do not expand glob patterns")

	return cmd
}

// StorageGlob returns the storage glob command.
func StorageGlob() *cobra.Command {
	return &cobra.Command{
		Use:   "glob PATTERN...",
		Short: "List resources that match patterns",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.StorageGlob(cmd.Context(), args)
		},
	}
}

// StorageDf returns the storage df command.
func StorageDf() *cobra.Command {
	return &cobra.Command{
		Use:   "df [PATH]",
		Short: "Show disk usage of the project storage",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p string
			if len(args) > 0 {
				p = args[0]
			}
			return handlers.StorageDf(cmd.Context(), p)
		},
	}
}
