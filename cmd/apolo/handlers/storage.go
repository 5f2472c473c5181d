package handlers

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"slices"
	"strings"

	"github.com/neuro-inc/apolo-cli/internal/platform"
	"github.com/neuro-inc/apolo-cli/internal/platform/storage"
	"github.com/neuro-inc/apolo-cli/internal/platform/uri"
	"github.com/neuro-inc/apolo-cli/internal/transfer"
	"github.com/neuro-inc/apolo-cli/internal/util/async"
)

// ListOptions are the storage ls flags.
type ListOptions struct {
	Long      bool
	Human     bool
	Directory bool
	All       bool
	// Sort is name, size or time.
	Sort string
}

// storagePaths parses storage URIs and checks they are on the selected cluster.
func storagePaths(client *platform.Client, args []string) ([]*url.URL, error) {
	res := newResolver(client)
	out := make([]*url.URL, 0, len(args))
	for _, a := range args {
		u, err := uri.Parse(a, client.URIContext(), uri.Storage, uri.Storage)
		if err != nil {
			return nil, err
		}
		if err := res.checkCluster(u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func sortFiles(list []transfer.FileStatus, by string) error {
	switch by {
	case "", "name":
		slices.SortFunc(list, func(a, b transfer.FileStatus) int { return strings.Compare(a.Name(), b.Name()) })
	case "size":
		slices.SortStableFunc(list, func(a, b transfer.FileStatus) int { return cmp.Compare(b.Size, a.Size) })
	case "time":
		slices.SortStableFunc(list, func(a, b transfer.FileStatus) int { return b.ModTime.Compare(a.ModTime) })
	default:
		return fmt.Errorf("invalid sort key %q, expected name, size or time", by)
	}
	return nil
}

// StorageLs lists storage directories, by default the project root.
func StorageLs(ctx context.Context, args []string, opts ListOptions) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		args = []string{"storage:"}
	}
	paths, err := storagePaths(client, args)
	if err != nil {
		return err
	}
	st, err := client.Storage()
	if err != nil {
		return err
	}

	for i, u := range paths {
		status, err := st.Stat(ctx, u.Path)
		if err != nil {
			return fmt.Errorf("cannot access %s: %w", uri.Short(u, client.URIContext()), err)
		}
		var list []transfer.FileStatus
		if status.IsDir() && !opts.Directory {
			for f, err := range st.List(ctx, u.Path) {
				if err != nil {
					return err
				}
				if !opts.All && strings.HasPrefix(f.Name(), ".") {
					continue
				}
				list = append(list, f)
			}
		} else {
			list = []transfer.FileStatus{status}
		}
		if err := sortFiles(list, opts.Sort); err != nil {
			return err
		}
		if len(paths) > 1 {
			if i > 0 {
				env.Print.Println()
			}
			env.Print.Printf("%s:\n", uri.Short(u, client.URIContext()))
		}
		env.Print.Files(list, opts.Long, opts.Human)
	}
	return nil
}

// StorageCp copies files between the local machine and storage.
func StorageCp(ctx context.Context, args []string, opts CopyOptions) error {
	return runCopy(ctx, args, uri.Storage, opts)
}

// StorageMkdir creates storage directories.
func StorageMkdir(ctx context.Context, args []string, parents bool) error {
	_, client, err := session(ctx)
	if err != nil {
		return err
	}
	paths, err := storagePaths(client, args)
	if err != nil {
		return err
	}
	st, err := client.Storage()
	if err != nil {
		return err
	}
	for _, u := range paths {
		if err := st.MakeDir(ctx, u.Path, parents, parents); err != nil {
			return fmt.Errorf("cannot create directory %s: %w", uri.Short(u, client.URIContext()), err)
		}
	}
	return nil
}

// expandStorage resolves glob patterns in storage arguments.
func expandStorage(ctx context.Context, st *storage.Client, paths []*url.URL, useGlob bool) ([]*url.URL, error) {
	var out []*url.URL
	for _, u := range paths {
		if !useGlob || !transfer.HasMagic(u.Path) {
			out = append(out, u)
			continue
		}
		n := len(out)
		for f, err := range st.Glob(ctx, u.Path) {
			if err != nil {
				return nil, err
			}
			m := *u
			m.Path = f.Path
			out = append(out, &m)
		}
		if len(out) == n {
			return nil, fmt.Errorf("no matches found for %s", uri.String(u))
		}
	}
	return out, nil
}

// StorageRm removes storage files, and with recursive directories.
func StorageRm(ctx context.Context, args []string, recursive, useGlob bool) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	paths, err := storagePaths(client, args)
	if err != nil {
		return err
	}
	st, err := client.Storage()
	if err != nil {
		return err
	}
	paths, err = expandStorage(ctx, st, paths, useGlob)
	if err != nil {
		return err
	}
	tasks := make([]async.Task, 0, len(paths))
	for _, u := range paths {
		name := uri.Short(u, client.URIContext())
		tasks = append(tasks, async.Task{Name: name, Func: func(ctx context.Context) error {
			if err := st.Rm(ctx, u.Path, recursive); err != nil {
				return err
			}
			if env.Settings.Verbose > 0 {
				env.Print.Printf("removed '%s'\n", name)
			}
			return nil
		}})
	}
	return async.RunParallel(ctx, tasks, false)
}

// StorageMv moves or renames storage entries. With several sources, or a
// destination that is a directory, sources are moved into it.
func StorageMv(ctx context.Context, args []string, targetDir string, noTargetDir, useGlob bool) error {
	_, client, err := session(ctx)
	if err != nil {
		return err
	}
	srcArgs, dstArg, err := copyArgs(args, CopyOptions{TargetDirectory: targetDir, NoTargetDirectory: noTargetDir})
	if err != nil {
		return err
	}
	paths, err := storagePaths(client, append(slices.Clone(srcArgs), dstArg))
	if err != nil {
		return err
	}
	st, err := client.Storage()
	if err != nil {
		return err
	}
	dst := paths[len(paths)-1]
	srcs, err := expandStorage(ctx, st, paths[:len(paths)-1], useGlob)
	if err != nil {
		return err
	}
	if noTargetDir && len(srcs) > 1 {
		return errors.New("--no-target-directory takes exactly one source")
	}

	dstIsDir, err := transfer.IsDir(ctx, st, dst.Path)
	if err != nil {
		return err
	}
	intoDir := !noTargetDir && (dstIsDir || len(srcs) > 1 || targetDir != "")
	if intoDir && !dstIsDir {
		return fmt.Errorf("target %s is not a directory", uri.Short(dst, client.URIContext()))
	}
	for _, src := range srcs {
		target := dst.Path
		if intoDir {
			target = path.Join(dst.Path, uri.Base(src))
		}
		if err := st.Mv(ctx, src.Path, target); err != nil {
			return fmt.Errorf("cannot move %s: %w", uri.Short(src, client.URIContext()), err)
		}
	}
	return nil
}

// StorageGlob prints the storage URIs matching each pattern.
func StorageGlob(ctx context.Context, patterns []string) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	paths, err := storagePaths(client, patterns)
	if err != nil {
		return err
	}
	st, err := client.Storage()
	if err != nil {
		return err
	}
	for _, u := range paths {
		for f, err := range st.Glob(ctx, u.Path) {
			if err != nil {
				return err
			}
			m := *u
			m.Path = f.Path
			env.Print.Println(uri.String(&m))
		}
	}
	return nil
}

// StorageDf prints the usage of the storage volume holding the argument,
// by default the project root.
func StorageDf(ctx context.Context, arg string) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	if arg == "" {
		arg = "storage:"
	}
	paths, err := storagePaths(client, []string{arg})
	if err != nil {
		return err
	}
	st, err := client.Storage()
	if err != nil {
		return err
	}
	du, err := st.DiskUsage(ctx, paths[0].Path)
	if err != nil {
		return err
	}
	env.Print.DiskUsage(uri.String(paths[0]), du)
	return nil
}
