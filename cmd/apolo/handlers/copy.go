package handlers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"

	"github.com/neuro-inc/apolo-cli/internal/logging"
	"github.com/neuro-inc/apolo-cli/internal/platform/uri"
	"github.com/neuro-inc/apolo-cli/internal/transfer"
	"github.com/neuro-inc/apolo-cli/internal/ui/progress"
)

// CopyOptions are the flags shared by storage cp and blob cp.
type CopyOptions struct {
	Recursive bool
	Glob      bool
	// TargetDirectory copies every source into this directory.
	TargetDirectory string
	// NoTargetDirectory treats the destination as the exact target path.
	NoTargetDirectory bool
	Update            bool
	Continue          bool
	// Filters are the --exclude and --include rules in command line order.
	Filters []transfer.Filter
	// IgnoreFiles are the --exclude-from-files names; nil keeps the default.
	IgnoreFiles []string
	Progress    bool
}

// copyArgs splits the arguments into sources and destination.
func copyArgs(args []string, opts CopyOptions) (srcs []string, dst string, err error) {
	if opts.TargetDirectory != "" {
		if opts.NoTargetDirectory {
			return nil, "", errors.New("cannot combine --target-directory with --no-target-directory")
		}
		if len(args) == 0 {
			return nil, "", errors.New("missing source")
		}
		return args, opts.TargetDirectory, nil
	}
	if len(args) < 2 {
		return nil, "", errors.New("missing destination")
	}
	return args[:len(args)-1], args[len(args)-1], nil
}

// runCopy copies between local files and one remote scheme. Arguments
// without a scheme are local paths.
func runCopy(ctx context.Context, args []string, remoteScheme string, opts CopyOptions) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	srcArgs, dstArg, err := copyArgs(args, opts)
	if err != nil {
		return err
	}
	uctx := client.URIContext()
	res := newResolver(client)

	parse := func(s string) (*url.URL, error) {
		return uri.Parse(s, uctx, uri.File, uri.File, remoteScheme)
	}
	dstURL, err := parse(dstArg)
	if err != nil {
		return err
	}
	dst, err := res.endpoint(ctx, dstURL)
	if err != nil {
		return err
	}

	var srcs []endpoint
	for _, s := range srcArgs {
		u, err := parse(s)
		if err != nil {
			return err
		}
		if u.Scheme == dstURL.Scheme {
			if dst.local() {
				return fmt.Errorf("cannot copy %s to %s: both are local; use cp", s, dstArg)
			}
			return fmt.Errorf("cannot copy %s to %s: copying between remote locations is not supported", s, dstArg)
		}
		matches, err := res.expand(ctx, u, opts.Glob)
		if err != nil {
			return err
		}
		srcs = append(srcs, matches...)
	}

	if opts.NoTargetDirectory && len(srcs) > 1 {
		return errors.New("--no-target-directory takes exactly one source")
	}

	dstIsDir, err := transfer.IsDir(ctx, dst.fsys, dst.path)
	if err != nil {
		return err
	}
	intoDir := !opts.NoTargetDirectory && (dstIsDir || len(srcs) > 1 || opts.TargetDirectory != "")
	if intoDir && !dstIsDir {
		if _, err := dst.fsys.Stat(ctx, dst.path); err == nil {
			return fmt.Errorf("target %s is not a directory", dst)
		}
		if err := dst.fsys.Mkdir(ctx, dst.path); err != nil {
			return err
		}
	}
	reporter := progress.New(env.Err, isTerminal(env.Err), opts.Progress && !env.Settings.Quiet, env.Settings.Verbose > 0)
	defer reporter.Close()

	topts := transfer.Options{
		Policy:      transfer.Policy{Update: opts.Update, Continue: opts.Continue},
		ChunkSize:   env.Timeouts.ChunkSize,
		IgnoreFiles: opts.IgnoreFiles,
		Filters:     opts.Filters,
		Progress:    reporter,
		Metrics:     env.Metrics,
		Log:         logging.Logr(env.Log),
	}

	var errs []error
	for _, src := range srcs {
		target := dst
		if intoDir {
			target = dst.join(uri.Base(src.u))
		}
		if err := copyOne(ctx, src, target, opts.Recursive, topts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func copyOne(ctx context.Context, src, dst endpoint, recursive bool, opts transfer.Options) error {
	st, err := src.fsys.Stat(ctx, src.path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("cannot copy %s: no such file or directory", src)
	}
	if err != nil {
		return err
	}
	if st.IsDir() && !recursive {
		return fmt.Errorf("cannot copy %s: is a directory, use -r", src)
	}
	if src.local() {
		return transfer.Upload(ctx, src.fsys, src.path, dst.fsys, dst.path, recursive, opts)
	}
	return transfer.Download(ctx, src.fsys, src.path, dst.fsys, dst.path, recursive, opts)
}
