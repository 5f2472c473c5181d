package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/neuro-inc/apolo-cli/internal/platform/disks"
	"github.com/neuro-inc/apolo-cli/internal/platform/secrets"
	"github.com/neuro-inc/apolo-cli/internal/ui/format"
	"github.com/neuro-inc/apolo-cli/internal/util/async"
)

// DiskCreate provisions a disk of the given size, e.g. "10G".
func DiskCreate(ctx context.Context, size, name, timeoutUnused string) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	storage, err := disks.ParseSize(size)
	if err != nil {
		return err
	}
	var timeout time.Duration
	if timeoutUnused != "" {
		if timeout, err = parseDuration(timeoutUnused); err != nil {
			return err
		}
	}
	dc, err := client.Disks()
	if err != nil {
		return err
	}
	d, err := dc.Create(ctx, disks.CreateRequest{Storage: storage, TimeoutUnused: timeout, Name: name})
	if err != nil {
		return err
	}
	env.Print.Disk(d)
	return nil
}

// DiskLs lists the disks of the current project.
func DiskLs(ctx context.Context, long bool, output string) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	out, err := format.ParseOutput(output)
	if err != nil {
		return err
	}
	dc, err := client.Disks()
	if err != nil {
		return err
	}
	list, err := dc.List(ctx)
	if err != nil {
		return err
	}
	if out != format.OutputTable {
		return env.Print.Encode(out, list)
	}
	env.Print.Disks(list, long)
	return nil
}

// DiskGet prints one disk by id, name or disk: URI.
func DiskGet(ctx context.Context, ref string) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	dc, err := client.Disks()
	if err != nil {
		return err
	}
	d, err := dc.Get(ctx, diskRef(ref))
	if err != nil {
		return err
	}
	env.Print.Disk(d)
	return nil
}

// DiskRm removes disks concurrently.
func DiskRm(ctx context.Context, refs []string) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	dc, err := client.Disks()
	if err != nil {
		return err
	}
	tasks := make([]async.Task, 0, len(refs))
	for _, ref := range refs {
		tasks = append(tasks, async.Task{Name: ref, Func: func(ctx context.Context) error {
			return dc.Rm(ctx, diskRef(ref))
		}})
	}
	if err := async.RunParallel(ctx, tasks, false); err != nil {
		return err
	}
	env.Print.Success("Removed %s", strings.Join(refs, ", "))
	return nil
}

// diskRef reduces a disk: URI to the id or name it ends with.
func diskRef(ref string) string {
	if !strings.HasPrefix(ref, "disk:") {
		return ref
	}
	ref = strings.TrimRight(strings.TrimPrefix(ref, "disk:"), "/")
	return ref[strings.LastIndex(ref, "/")+1:]
}

// SecretAdd creates or replaces a secret. A value of "@path" reads the file.
func SecretAdd(ctx context.Context, key, value string) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	data, err := secrets.ReadValue(value)
	if err != nil {
		return err
	}
	sc, err := client.Secrets()
	if err != nil {
		return err
	}
	if err := sc.Add(ctx, key, data); err != nil {
		return err
	}
	env.Print.Success("Secret %s saved", key)
	return nil
}

// SecretLs lists the secrets of the current project.
func SecretLs(ctx context.Context) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	sc, err := client.Secrets()
	if err != nil {
		return err
	}
	list, err := sc.List(ctx)
	if err != nil {
		return err
	}
	env.Print.Secrets(list)
	return nil
}

// SecretRm removes secrets concurrently.
func SecretRm(ctx context.Context, keys []string) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	sc, err := client.Secrets()
	if err != nil {
		return err
	}
	tasks := make([]async.Task, 0, len(keys))
	for _, key := range keys {
		tasks = append(tasks, async.Task{Name: key, Func: func(ctx context.Context) error {
			return sc.Rm(ctx, key)
		}})
	}
	if err := async.RunParallel(ctx, tasks, false); err != nil {
		return err
	}
	env.Print.Success("Removed %s", strings.Join(keys, ", "))
	return nil
}

// ImageLs lists the images of the current project.
func ImageLs(ctx context.Context, long bool) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	ic, err := client.Images()
	if err != nil {
		return err
	}
	list, err := ic.Ls(ctx)
	if err != nil {
		return err
	}
	env.Print.Images(list, ic.Host(), long)
	return nil
}

// ImageTags lists the tags of an image.
func ImageTags(ctx context.Context, image string) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	ic, err := client.Images()
	if err != nil {
		return err
	}
	tags, err := ic.Tags(ctx, image)
	if err != nil {
		return err
	}
	env.Print.Tags(image, tags)
	return nil
}
