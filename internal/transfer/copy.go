package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"slices"
	"syscall"

	"github.com/go-logr/logr"

	"github.com/neuro-inc/apolo-cli/internal/metrics"
)

const (
	// DefaultChunkSize is the write unit for file systems that support appends.
	DefaultChunkSize = 4 << 20

	// DefaultOverlapWindow is how many bytes before a resume offset are
	// compared between source and destination.
	DefaultOverlapWindow = 64 << 10
)

// Options configure a transfer.
type Options struct {
	Policy Policy

	// ChunkSize defaults to DefaultChunkSize.
	ChunkSize int
	// OverlapWindow defaults to DefaultOverlapWindow.
	OverlapWindow int64

	// IgnoreFiles are the ignore file names read from each uploaded
	// directory. Nil means DefaultIgnoreFile; an empty slice disables them.
	// Downloads never read ignore files.
	IgnoreFiles []string
	Filters     []Filter

	Progress Progress
	Metrics  *metrics.Metrics
	Log      logr.Logger
}

type copier struct {
	src, dst    FileSystem
	op          string
	direction   string
	policy      Policy
	chunkSize   int
	overlap     int64
	ignoreFiles []string
	filters     []Filter
	progress    Progress
	metrics     *metrics.Metrics
	log         logr.Logger
}

func newCopier(src, dst FileSystem, direction string, opts Options) *copier {
	c := &copier{
		src:       src,
		dst:       dst,
		op:        direction,
		direction: direction,
		policy:    opts.Policy,
		chunkSize: opts.ChunkSize,
		overlap:   opts.OverlapWindow,
		filters:   opts.Filters,
		progress:  opts.Progress,
		metrics:   opts.Metrics,
		log:       opts.Log,
	}
	if c.chunkSize <= 0 {
		c.chunkSize = DefaultChunkSize
	}
	if c.overlap <= 0 {
		c.overlap = DefaultOverlapWindow
	}
	if c.progress == nil {
		c.progress = noProgress{}
	}
	if c.log.GetSink() == nil {
		c.log = logr.Discard()
	}
	if direction == metrics.Upload {
		c.ignoreFiles = opts.IgnoreFiles
		if c.ignoreFiles == nil {
			c.ignoreFiles = []string{DefaultIgnoreFile}
		}
	}
	return c
}

// UploadFile copies one local file to remote. It fails with an error
// matching fs.ErrNotExist when src is missing and syscall.EISDIR when src is
// a directory.
func UploadFile(ctx context.Context, local FileSystem, src string, remote FileSystem, dst string, opts Options) error {
	return newCopier(local, remote, metrics.Upload, opts).file(ctx, src, dst)
}

// UploadDir mirrors a local directory tree into remote.
func UploadDir(ctx context.Context, local FileSystem, src string, remote FileSystem, dst string, opts Options) error {
	return newCopier(local, remote, metrics.Upload, opts).dir(ctx, src, dst)
}

// DownloadFile copies one remote file to the local disk.
func DownloadFile(ctx context.Context, remote FileSystem, src string, local FileSystem, dst string, opts Options) error {
	return newCopier(remote, local, metrics.Download, opts).file(ctx, src, dst)
}

// DownloadDir mirrors a remote directory tree onto the local disk.
func DownloadDir(ctx context.Context, remote FileSystem, src string, local FileSystem, dst string, opts Options) error {
	return newCopier(remote, local, metrics.Download, opts).dir(ctx, src, dst)
}

func (c *copier) file(ctx context.Context, src, dst string) error {
	st, err := c.src.Stat(ctx, src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &fs.PathError{Op: c.op, Path: src, Err: fs.ErrNotExist}
		}
		return err
	}
	if st.IsDir() {
		return &fs.PathError{Op: c.op, Path: src, Err: syscall.EISDIR}
	}
	return c.copyFile(ctx, st, dst)
}

func (c *copier) dir(ctx context.Context, src, dst string) error {
	st, err := c.src.Stat(ctx, src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &fs.PathError{Op: c.op, Path: src, Err: fs.ErrNotExist}
		}
		return err
	}
	if !st.IsDir() {
		return &fs.PathError{Op: c.op, Path: src, Err: syscall.ENOTDIR}
	}
	return c.walk(ctx, src, dst, nil, newMatcher(c.filters))
}

// statDst returns nil when the destination does not exist.
func (c *copier) statDst(ctx context.Context, p string) (*FileStatus, error) {
	st, err := c.dst.Stat(ctx, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

func (c *copier) walk(ctx context.Context, src, dst string, rel []string, m *matcher) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.progress.Event(Event{Kind: EventEnterDir, Src: src, Dst: dst})

	dstSt, err := c.statDst(ctx, dst)
	if err != nil {
		return c.fail(src, dst, err)
	}
	if dstSt != nil && !dstSt.IsDir() {
		return c.fail(src, dst, &fs.PathError{Op: "mkdir", Path: dst, Err: syscall.ENOTDIR})
	}
	created := dstSt != nil
	ensure := func() error {
		if created {
			return nil
		}
		if err := c.dst.Mkdir(ctx, dst); err != nil {
			return err
		}
		created = true
		return nil
	}

	for _, name := range c.ignoreFiles {
		patterns, err := readIgnoreFile(ctx, c.src, src, name, slices.Clone(rel))
		if err != nil {
			return c.fail(src, dst, err)
		}
		m = m.scoped(patterns)
	}

	for child, err := range c.src.List(ctx, src) {
		if err != nil {
			return c.fail(src, dst, fmt.Errorf("failed to list %s: %w", src, err))
		}
		childRel := append(slices.Clone(rel), child.Name())
		dstChild := joinPath(dst, child.Name())

		if m.excluded(childRel, child.IsDir()) {
			c.log.V(1).Info("excluded", "path", child.Path)
			c.progress.Event(Event{Kind: EventSkip, Src: child.Path, Dst: dstChild, Reason: "excluded"})
			continue
		}

		switch {
		case child.IsDir():
			if err := ensure(); err != nil {
				return c.fail(src, dst, err)
			}
			if err := c.walk(ctx, child.Path, dstChild, childRel, m); err != nil {
				return err
			}
		case child.IsFile():
			if err := ensure(); err != nil {
				return c.fail(src, dst, err)
			}
			if err := c.copyFile(ctx, child, dstChild); err != nil {
				return err
			}
		default:
			c.progress.Event(Event{Kind: EventSkip, Src: child.Path, Dst: dstChild, Reason: "not a regular file"})
		}
	}

	if err := ensure(); err != nil {
		return c.fail(src, dst, err)
	}
	c.progress.Event(Event{Kind: EventLeaveDir, Src: src, Dst: dst})
	return nil
}

func (c *copier) copyFile(ctx context.Context, src FileStatus, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dstSt, err := c.statDst(ctx, dst)
	if err != nil {
		return c.fail(src.Path, dst, err)
	}
	if dstSt != nil && dstSt.IsDir() {
		return c.fail(src.Path, dst, &fs.PathError{Op: c.op, Path: dst, Err: syscall.EISDIR})
	}

	d := Decide(src, dstSt, c.policy)
	if d.Action == Resume {
		d = c.confirmResume(ctx, src, dst, d)
	}
	c.log.V(1).Info("transfer decision", "src", src.Path, "dst", dst, "action", d.Action.String(), "offset", d.Offset)

	if d.Action == Skip {
		c.metrics.CountFile(c.direction, metrics.ResultSkipped)
		c.progress.Event(Event{Kind: EventSkip, Src: src.Path, Dst: dst, Size: src.Size, Current: src.Size, Reason: "up to date"})
		return nil
	}

	c.progress.Event(Event{Kind: EventStart, Src: src.Path, Dst: dst, Size: src.Size, Current: d.Offset})
	if err := c.write(ctx, src, dst, d.Offset); err != nil {
		return c.fail(src.Path, dst, err)
	}

	result := metrics.ResultCopied
	if d.Action == Resume {
		result = metrics.ResultResumed
	}
	c.metrics.CountFile(c.direction, result)
	c.progress.Event(Event{Kind: EventComplete, Src: src.Path, Dst: dst, Size: src.Size, Current: src.Size})
	return nil
}

// confirmResume downgrades a resume to an overwrite when the destination
// cannot append or its tail differs from the source.
func (c *copier) confirmResume(ctx context.Context, src FileStatus, dst string, d Decision) Decision {
	if _, ok := c.dst.(Appender); !ok {
		return Decision{Action: Overwrite}
	}
	window := min(d.Offset, c.overlap)
	start := d.Offset - window

	want, err := readRange(ctx, c.src, src.Path, start, window)
	if err != nil {
		c.log.V(1).Info("cannot verify resume overlap, restarting", "src", src.Path, "error", err.Error())
		return Decision{Action: Overwrite}
	}
	got, err := readRange(ctx, c.dst, dst, start, window)
	if err != nil || !bytes.Equal(want, got) {
		c.log.V(1).Info("resume overlap mismatch, restarting", "dst", dst)
		return Decision{Action: Overwrite}
	}
	return d
}

func readRange(ctx context.Context, fsys FileSystem, p string, offset, n int64) ([]byte, error) {
	r, err := fsys.Open(ctx, p, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(io.LimitReader(r, n))
}

func (c *copier) write(ctx context.Context, src FileStatus, dst string, offset int64) error {
	r, err := c.src.Open(ctx, src.Path, offset)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	app, ok := c.dst.(Appender)
	if !ok {
		pr := &progressReader{r: r, c: c, src: src, dst: dst, current: offset}
		return c.dst.Create(ctx, dst, pr, src.Size-offset)
	}

	buf := make([]byte, c.chunkSize)
	pos := offset
	first := true
	for {
		n, readErr := io.ReadFull(r, buf)
		if n > 0 || (first && offset == 0) {
			chunk := bytes.NewReader(buf[:n])
			var err error
			if pos == 0 {
				err = c.dst.Create(ctx, dst, chunk, int64(n))
			} else {
				err = app.Append(ctx, dst, pos, chunk, int64(n))
			}
			if err != nil {
				return err
			}
			pos += int64(n)
			c.metrics.AddTransferBytes(c.direction, int64(n))
			c.progress.Event(Event{Kind: EventStep, Src: src.Path, Dst: dst, Size: src.Size, Current: pos})
		}
		first = false
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("failed to read %s: %w", src.Path, readErr)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (c *copier) fail(src, dst string, err error) error {
	c.progress.Event(Event{Kind: EventFail, Src: src, Dst: dst, Err: err})
	return err
}

// progressReader reports steps for streaming writes.
type progressReader struct {
	r       io.Reader
	c       *copier
	src     FileStatus
	dst     string
	current int64
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.current += int64(n)
		p.c.metrics.AddTransferBytes(p.c.direction, int64(n))
		p.c.progress.Event(Event{Kind: EventStep, Src: p.src.Path, Dst: p.dst, Size: p.src.Size, Current: p.current})
	}
	return n, err
}
