package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/neuro-inc/apolo-cli/internal/platform/uri"
	"github.com/neuro-inc/apolo-cli/internal/util/async"
)

// BlobLsBucket lists the buckets of the current project.
func BlobLsBucket(ctx context.Context) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	bc, err := client.Buckets()
	if err != nil {
		return err
	}
	list, err := bc.List(ctx)
	if err != nil {
		return err
	}
	env.Print.Buckets(list)
	return nil
}

// BlobMkBucket creates a bucket, named when name is not empty.
func BlobMkBucket(ctx context.Context, name string) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	bc, err := client.Buckets()
	if err != nil {
		return err
	}
	b, err := bc.Create(ctx, name)
	if err != nil {
		return err
	}
	env.Print.Bucket(b)
	return nil
}

// BlobRmBucket removes buckets by id or name.
func BlobRmBucket(ctx context.Context, ids []string) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	bc, err := client.Buckets()
	if err != nil {
		return err
	}
	tasks := make([]async.Task, 0, len(ids))
	for _, id := range ids {
		tasks = append(tasks, async.Task{Name: id, Func: func(ctx context.Context) error {
			return bc.Rm(ctx, id)
		}})
	}
	if err := async.RunParallel(ctx, tasks, false); err != nil {
		return err
	}
	env.Print.Success("Removed %s", strings.Join(ids, ", "))
	return nil
}

// BlobStatBucket prints one bucket.
func BlobStatBucket(ctx context.Context, id string) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	bc, err := client.Buckets()
	if err != nil {
		return err
	}
	b, err := bc.Get(ctx, id)
	if err != nil {
		return err
	}
	env.Print.Bucket(b)
	return nil
}

// BlobLs lists objects under each blob URI. Without arguments it lists buckets.
func BlobLs(ctx context.Context, args []string, long, human, recursive bool) error {
	if len(args) == 0 {
		return BlobLsBucket(ctx)
	}
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	res := newResolver(client)
	for _, a := range args {
		u, err := uri.Parse(a, client.URIContext(), uri.Blob, uri.Blob)
		if err != nil {
			return err
		}
		bucket, key, err := res.blobPath(u)
		if err != nil {
			return err
		}
		store, err := res.bucket(ctx, bucket)
		if err != nil {
			return err
		}
		prefix := key
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			if st, err := store.Stat(ctx, "/"+key); err == nil && st.IsDir() {
				prefix += "/"
			}
		}
		blobs, prefixes, err := store.ListBlobs(ctx, prefix, recursive)
		if err != nil {
			return err
		}
		env.Print.Blobs(bucket, blobs, prefixes, long, human)
	}
	return nil
}

// BlobCp copies files between the local machine and buckets.
func BlobCp(ctx context.Context, args []string, opts CopyOptions) error {
	return runCopy(ctx, args, uri.Blob, opts)
}

// BlobRm removes objects, and with recursive every object under a prefix.
func BlobRm(ctx context.Context, args []string, recursive, useGlob bool) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	res := newResolver(client)
	var targets []endpoint
	for _, a := range args {
		u, err := uri.Parse(a, client.URIContext(), uri.Blob, uri.Blob)
		if err != nil {
			return err
		}
		matches, err := res.expand(ctx, u, useGlob)
		if err != nil {
			return err
		}
		targets = append(targets, matches...)
	}
	for _, t := range targets {
		if t.path == "/" {
			return fmt.Errorf("refusing to remove every object of %s; use blob rmbucket", t)
		}
		if err := t.fsys.(blobStore).Rm(ctx, t.path, recursive); err != nil {
			return fmt.Errorf("cannot remove %s: %w", t, err)
		}
		if env.Settings.Verbose > 0 {
			env.Print.Printf("removed '%s'\n", t)
		}
	}
	return nil
}

// BlobGlob prints the blob URIs matching each pattern.
func BlobGlob(ctx context.Context, patterns []string) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	res := newResolver(client)
	for _, p := range patterns {
		u, err := uri.Parse(p, client.URIContext(), uri.Blob, uri.Blob)
		if err != nil {
			return err
		}
		e, err := res.endpoint(ctx, u)
		if err != nil {
			return err
		}
		for m, err := range e.glob(ctx) {
			if err != nil {
				return err
			}
			env.Print.Println(m.String())
		}
	}
	return nil
}

// BlobMkCredentials creates persistent credentials for the given buckets.
func BlobMkCredentials(ctx context.Context, bucketIDs []string, name string, readOnly bool) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	bc, err := client.Buckets()
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(bucketIDs))
	for _, b := range bucketIDs {
		bucket, err := bc.Get(ctx, b)
		if err != nil {
			return err
		}
		ids = append(ids, bucket.ID)
	}
	creds, err := bc.CreatePersistentCredentials(ctx, name, ids, readOnly)
	if err != nil {
		return err
	}
	env.Print.Credentials(creds)
	return nil
}

// BlobLsCredentials lists persistent credentials.
func BlobLsCredentials(ctx context.Context) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	bc, err := client.Buckets()
	if err != nil {
		return err
	}
	list, err := bc.ListPersistentCredentials(ctx)
	if err != nil {
		return err
	}
	env.Print.PersistentCredentials(list)
	return nil
}

// BlobRmCredentials removes persistent credentials by id or name.
func BlobRmCredentials(ctx context.Context, ids []string) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	bc, err := client.Buckets()
	if err != nil {
		return err
	}
	tasks := make([]async.Task, 0, len(ids))
	for _, id := range ids {
		tasks = append(tasks, async.Task{Name: id, Func: func(ctx context.Context) error {
			return bc.RmPersistentCredentials(ctx, id)
		}})
	}
	if err := async.RunParallel(ctx, tasks, false); err != nil {
		return err
	}
	env.Print.Success("Removed %s", strings.Join(ids, ", "))
	return nil
}
