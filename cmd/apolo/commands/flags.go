package commands

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/neuro-inc/apolo-cli/cmd/apolo/handlers"
	"github.com/neuro-inc/apolo-cli/internal/transfer"
)

// filterValue appends --exclude and --include patterns to one shared list
// so the command line order is kept.
type filterValue struct {
	filters *[]transfer.Filter
	include bool
}

var _ pflag.Value = filterValue{}

func (f filterValue) String() string {
	var out []string
	for _, flt := range *f.filters {
		if flt.Include == f.include {
			out = append(out, flt.Pattern)
		}
	}
	if len(out) == 0 {
		return ""
	}
	return "[" + strings.Join(out, ",") + "]"
}

func (f filterValue) Set(s string) error {
	*f.filters = append(*f.filters, transfer.Filter{Pattern: s, Include: f.include})
	return nil
}

func (f filterValue) Type() string { return "pattern" }

// copyFlags binds the flags shared by storage cp and blob cp.
func copyFlags(cmd *cobra.Command, opts *handlers.CopyOptions) func() {
	f := cmd.Flags()
	var noGlob bool
	var ignoreFiles []string

	f.BoolVarP(&opts.Recursive, "recursive", "r", false, "Copy directories recursively")
	f.BoolVar(&noGlob, "no-glob", false, "Do not expand glob patterns in sources")
	f.StringVarP(&opts.TargetDirectory, "target-directory", "t", "", "Copy all sources into this directory")
	f.BoolVarP(&opts.NoTargetDirectory, "no-target-directory", "T", false, "Treat the destination as a normal file")
	f.BoolVarP(&opts.Update, "update", "u", false, "Copy only when the source is newer than the destination")
	f.BoolVarP(&opts.Continue, "continue", "c", false, "Resume partially copied files")
	f.Var(filterValue{filters: &opts.Filters}, "exclude", "Exclude files matching the pattern; may be repeated")
	f.Var(filterValue{filters: &opts.Filters, include: true}, "include", "Include files matching the pattern; may be repeated")
	f.StringSliceVar(&ignoreFiles, "exclude-from-files", []string{".apoloignore"}, "Names of ignore files read in each uploaded directory")
	f.BoolVarP(&opts.Progress, "progress", "p", false, "Show progress")

	// finish applies the flags that do not map directly onto CopyOptions.
	return func() {
		opts.Glob = !noGlob
		if f.Changed("exclude-from-files") {
			opts.IgnoreFiles = append([]string{}, ignoreFiles...)
		}
	}
}
