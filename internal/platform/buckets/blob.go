package buckets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/neuro-inc/apolo-cli/internal/transfer"
)

// objectAPI is the subset of *s3.Client used by BlobFS.
type objectAPI interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// BlobFS exposes one bucket as a transfer.FileSystem. Paths are object
// keys with a leading slash; "directories" are key prefixes ending in '/'.
type BlobFS struct {
	s3     objectAPI
	bucket string
}

var _ transfer.FileSystem = (*BlobFS)(nil)

// BlobListing is one object.
type BlobListing struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// PrefixListing is a common prefix, shown as a directory.
type PrefixListing struct {
	Prefix string
}

// NewBlobFS connects to the bucket described by S3-compatible credentials.
func NewBlobFS(ctx context.Context, creds Credentials) (*BlobFS, error) {
	c := creds.Credentials
	bucket := c["bucket_name"]
	if bucket == "" {
		return nil, fmt.Errorf("credentials for bucket %s carry no bucket_name", creds.BucketID)
	}
	if creds.Provider != ProviderAWS && creds.Provider != ProviderMinio {
		return nil, fmt.Errorf("provider %q is not supported for object access", creds.Provider)
	}

	region := c["region_name"]
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c["access_key_id"], c["secret_access_key"], c["session_token"])),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint := c["endpoint_url"]; endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
		// Bodies are streamed from the transfer engine and cannot be rewound.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.APIOptions = append(o.APIOptions, v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware)
	})
	return &BlobFS{s3: client, bucket: bucket}, nil
}

// Bucket returns the provider-side bucket name.
func (b *BlobFS) Bucket() string { return b.bucket }

func key(p string) string { return strings.TrimPrefix(p, "/") }

// isNotFoundError checks if the error is a not found error.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}

	// S3-compatible services do not always return the typed errors.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket", "404":
			return true
		}
	}
	return false
}

func pathError(op, p string, err error) error {
	if isNotFoundError(err) {
		return &fs.PathError{Op: op, Path: p, Err: errors.Join(fs.ErrNotExist, err)}
	}
	return &fs.PathError{Op: op, Path: p, Err: err}
}

// Head returns the metadata of one object.
func (b *BlobFS) Head(ctx context.Context, k string) (BlobListing, error) {
	out, err := b.s3.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(b.bucket), Key: aws.String(k)})
	if err != nil {
		return BlobListing{}, pathError("head", k, err)
	}
	return BlobListing{Key: k, Size: aws.ToInt64(out.ContentLength), ModTime: aws.ToTime(out.LastModified)}, nil
}

// ListBlobs lists objects and, unless recursive, common prefixes under prefix.
func (b *BlobFS) ListBlobs(ctx context.Context, prefix string, recursive bool) ([]BlobListing, []PrefixListing, error) {
	in := &s3.ListObjectsV2Input{Bucket: aws.String(b.bucket)}
	if prefix != "" {
		in.Prefix = aws.String(prefix)
	}
	if !recursive {
		in.Delimiter = aws.String("/")
	}

	var blobs []BlobListing
	var prefixes []PrefixListing
	pages := s3.NewListObjectsV2Paginator(b.s3, in)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list objects in bucket %s: %w", b.bucket, err)
		}
		for _, obj := range page.Contents {
			blobs = append(blobs, BlobListing{
				Key:     aws.ToString(obj.Key),
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
		for _, cp := range page.CommonPrefixes {
			prefixes = append(prefixes, PrefixListing{Prefix: aws.ToString(cp.Prefix)})
		}
	}
	return blobs, prefixes, nil
}

// Stat reports an object as a file and a non-empty prefix as a directory.
func (b *BlobFS) Stat(ctx context.Context, p string) (transfer.FileStatus, error) {
	k := strings.TrimSuffix(key(p), "/")
	if k == "" {
		return transfer.FileStatus{Path: "/", Type: transfer.TypeDir}, nil
	}
	head, err := b.Head(ctx, k)
	if err == nil {
		return transfer.FileStatus{Path: "/" + k, Size: head.Size, ModTime: head.ModTime, Type: transfer.TypeFile}, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return transfer.FileStatus{}, err
	}

	out, err := b.s3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		Prefix:  aws.String(k + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return transfer.FileStatus{}, pathError("stat", p, err)
	}
	if len(out.Contents) == 0 && len(out.CommonPrefixes) == 0 {
		return transfer.FileStatus{}, &fs.PathError{Op: "stat", Path: p, Err: fs.ErrNotExist}
	}
	return transfer.FileStatus{Path: "/" + k, Type: transfer.TypeDir}, nil
}

// List yields the objects and prefixes directly under p, sorted by name.
func (b *BlobFS) List(ctx context.Context, p string) iter.Seq2[transfer.FileStatus, error] {
	return func(yield func(transfer.FileStatus, error) bool) {
		dir := strings.TrimSuffix(key(p), "/")
		prefix := ""
		if dir != "" {
			prefix = dir + "/"
		}
		blobs, prefixes, err := b.ListBlobs(ctx, prefix, false)
		if err != nil {
			yield(transfer.FileStatus{}, err)
			return
		}
		if len(blobs) == 0 && len(prefixes) == 0 && dir != "" {
			if st, err := b.Stat(ctx, p); err != nil {
				yield(transfer.FileStatus{}, err)
				return
			} else if !st.IsDir() {
				yield(transfer.FileStatus{}, &fs.PathError{Op: "list", Path: p, Err: syscall.ENOTDIR})
				return
			}
		}

		entries := make([]transfer.FileStatus, 0, len(blobs)+len(prefixes))
		for _, pr := range prefixes {
			entries = append(entries, transfer.FileStatus{Path: "/" + strings.TrimSuffix(pr.Prefix, "/"), Type: transfer.TypeDir})
		}
		for _, bl := range blobs {
			if bl.Key == prefix {
				continue
			}
			entries = append(entries, transfer.FileStatus{Path: "/" + bl.Key, Size: bl.Size, ModTime: bl.ModTime, Type: transfer.TypeFile})
		}
		slices.SortFunc(entries, func(a, b transfer.FileStatus) int { return strings.Compare(a.Path, b.Path) })
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

// Mkdir writes an empty "dir/" marker so the prefix survives without content.
func (b *BlobFS) Mkdir(ctx context.Context, p string) error {
	k := strings.TrimSuffix(key(p), "/")
	if k == "" {
		return nil
	}
	_, err := b.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(k + "/"),
		Body:          strings.NewReader(""),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		return pathError("mkdir", p, err)
	}
	return nil
}

// Open reads an object from offset with a range request.
func (b *BlobFS) Open(ctx context.Context, p string, offset int64) (io.ReadCloser, error) {
	in := &s3.GetObjectInput{Bucket: aws.String(b.bucket), Key: aws.String(key(p))}
	if offset > 0 {
		in.Range = aws.String(fmt.Sprintf("bytes=%d-", offset))
	}
	out, err := b.s3.GetObject(ctx, in)
	if err != nil {
		return nil, pathError("open", p, err)
	}
	return out.Body, nil
}

// Create uploads r as the object p.
func (b *BlobFS) Create(ctx context.Context, p string, r io.Reader, size int64) error {
	_, err := b.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key(p)),
		Body:          r,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return pathError("create", p, err)
	}
	return nil
}

// Delete removes one object.
func (b *BlobFS) Delete(ctx context.Context, k string) error {
	_, err := b.s3.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(b.bucket), Key: aws.String(k)})
	if err != nil {
		return fmt.Errorf("failed to delete object %s from bucket %s: %w", k, b.bucket, err)
	}
	return nil
}

// Rm removes p. A prefix requires recursive and removes every object below it.
func (b *BlobFS) Rm(ctx context.Context, p string, recursive bool) error {
	st, err := b.Stat(ctx, p)
	if err != nil {
		return err
	}
	if st.IsFile() {
		return b.Delete(ctx, key(p))
	}
	if !recursive {
		return &fs.PathError{Op: "rm", Path: p, Err: syscall.EISDIR}
	}
	blobs, _, err := b.ListBlobs(ctx, strings.TrimSuffix(key(p), "/")+"/", true)
	if err != nil {
		return err
	}
	for _, bl := range blobs {
		if err := b.Delete(ctx, bl.Key); err != nil {
			return err
		}
	}
	return nil
}

// Glob lazily yields objects and prefixes matching pattern.
func (b *BlobFS) Glob(ctx context.Context, pattern string) iter.Seq2[transfer.FileStatus, error] {
	return transfer.Glob(ctx, b, "/"+key(pattern))
}
