package transfer

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func writeTree(root string, files map[string]string) {
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		Expect(os.MkdirAll(filepath.Dir(p), 0o755)).To(Succeed())
		Expect(os.WriteFile(p, []byte(content), 0o644)).To(Succeed())
	}
}

func readTree(root string) map[string]string {
	out := map[string]string{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, p)
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	Expect(err).NotTo(HaveOccurred())
	return out
}

func randomBytes(n int) []byte {
	r := rand.New(rand.NewPCG(1, 2))
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(r.IntN(256))
	}
	return b
}

func slash(p string) string {
	return filepath.ToSlash(p)
}

type recorder struct {
	events []Event
}

func (r *recorder) Event(e Event) {
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []EventKind {
	var out []EventKind
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

var _ = ginkgo.Describe("Transfer", func() {
	var (
		ctx   context.Context
		local LocalFS
		tmp   string
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		tmp = ginkgo.GinkgoT().TempDir()
	})

	ginkgo.Describe("round trip", func() {
		tree := map[string]string{
			"README.md":           "# data\n",
			"train/a.csv":         "1,2,3\n4,5,6\n",
			"train/nested/b.json": `{"k": "v"}`,
			"empty.txt":           "",
		}

		ginkgo.DescribeTable("yields byte-identical trees",
			func(appendable bool, chunk int) {
				src := filepath.Join(tmp, "src")
				dst := filepath.Join(tmp, "dst")
				writeTree(src, tree)
				Expect(os.MkdirAll(filepath.Join(src, "empty-dir"), 0o755)).To(Succeed())

				mem := newMemFS()
				var remote FileSystem = mem
				if appendable {
					remote = memAppendFS{mem}
				}
				opts := Options{ChunkSize: chunk}

				Expect(UploadDir(ctx, local, slash(src), remote, "/proj/data", opts)).To(Succeed())
				Expect(mem.walkFiles("/proj/data")).To(Equal(tree))
				Expect(mem.has("/proj/data/empty-dir")).To(BeTrue())

				Expect(DownloadDir(ctx, remote, "/proj/data", local, slash(dst), opts)).To(Succeed())
				Expect(readTree(dst)).To(Equal(tree))
				Expect(filepath.Join(dst, "empty-dir")).To(BeADirectory())
			},
			ginkgo.Entry("storage with small chunks", true, 3),
			ginkgo.Entry("storage with default chunks", true, 0),
			ginkgo.Entry("blob store without appends", false, 0),
		)

		ginkgo.It("round trips a large binary file through chunked writes", func() {
			payload := randomBytes(300_000)
			src := filepath.Join(tmp, "model.bin")
			Expect(os.WriteFile(src, payload, 0o644)).To(Succeed())

			mem := newMemFS()
			remote := memAppendFS{mem}
			Expect(UploadFile(ctx, local, slash(src), remote, "/model.bin", Options{ChunkSize: 64 << 10})).To(Succeed())
			Expect(mem.writes).To(Equal(5))

			out := filepath.Join(tmp, "out.bin")
			Expect(DownloadFile(ctx, remote, "/model.bin", local, slash(out), Options{})).To(Succeed())
			got, err := os.ReadFile(out)
			Expect(err).NotTo(HaveOccurred())
			Expect(bytes.Equal(got, payload)).To(BeTrue())
		})
	})

	ginkgo.Describe("idempotence", func() {
		ginkgo.It("performs no writes when re-uploading an unchanged tree with update", func() {
			src := filepath.Join(tmp, "src")
			writeTree(src, map[string]string{"a.txt": "a", "d/b.txt": "b", "d/e/c.txt": "c"})

			mem := newMemFS()
			remote := memAppendFS{mem}
			opts := Options{Policy: Policy{Update: true}}

			Expect(UploadDir(ctx, local, slash(src), remote, "/dst", opts)).To(Succeed())
			writes, mkdirs := mem.writes, mem.mkdirs
			Expect(writes).To(Equal(3))

			rec := &recorder{}
			opts.Progress = rec
			Expect(UploadDir(ctx, local, slash(src), remote, "/dst", opts)).To(Succeed())
			Expect(mem.writes).To(Equal(writes))
			Expect(mem.mkdirs).To(Equal(mkdirs))
			Expect(rec.kinds()).NotTo(ContainElement(EventStart))
		})

		ginkgo.It("uploads only the changed file", func() {
			src := filepath.Join(tmp, "src")
			writeTree(src, map[string]string{"a.txt": "a", "b.txt": "b"})

			mem := newMemFS()
			opts := Options{Policy: Policy{Update: true}}
			Expect(UploadDir(ctx, local, slash(src), mem, "/dst", opts)).To(Succeed())

			future := time.Now().Add(time.Hour)
			Expect(os.WriteFile(filepath.Join(src, "b.txt"), []byte("b2"), 0o644)).To(Succeed())
			Expect(os.Chtimes(filepath.Join(src, "b.txt"), future, future)).To(Succeed())

			before := mem.writes
			Expect(UploadDir(ctx, local, slash(src), mem, "/dst", opts)).To(Succeed())
			Expect(mem.writes).To(Equal(before + 1))
			Expect(mem.content("/dst/b.txt")).To(Equal("b2"))
		})

		ginkgo.It("skips up-to-date downloads", func() {
			mem := newMemFSAt(time.Now().Add(-time.Hour))
			mem.put("/src/a.txt", "a")
			dst := filepath.Join(tmp, "dst")

			Expect(DownloadDir(ctx, mem, "/src", local, slash(dst), Options{Policy: Policy{Update: true}})).To(Succeed())

			rec := &recorder{}
			Expect(DownloadDir(ctx, mem, "/src", local, slash(dst), Options{Policy: Policy{Update: true}, Progress: rec})).To(Succeed())
			Expect(rec.kinds()).To(ContainElement(EventSkip))
			Expect(rec.kinds()).NotTo(ContainElement(EventStart))
		})
	})

	ginkgo.Describe("resume", func() {
		var payload []byte

		ginkgo.BeforeEach(func() {
			payload = randomBytes(200_000)
		})

		ginkgo.It("completes an interrupted download to the same bytes", func() {
			mem := newMemFSAt(time.Now().Add(-time.Hour))
			mem.put("/big.bin", string(payload))

			dst := filepath.Join(tmp, "big.bin")
			Expect(os.WriteFile(dst, payload[:123_456], 0o644)).To(Succeed())

			rec := &recorder{}
			Expect(DownloadFile(ctx, mem, "/big.bin", local, slash(dst), Options{Policy: Policy{Continue: true}, Progress: rec})).To(Succeed())

			got, err := os.ReadFile(dst)
			Expect(err).NotTo(HaveOccurred())
			Expect(bytes.Equal(got, payload)).To(BeTrue())
			Expect(rec.events[0].Kind).To(Equal(EventStart))
			Expect(rec.events[0].Current).To(Equal(int64(123_456)))
		})

		ginkgo.It("resumes an interrupted chunked upload", func() {
			src := filepath.Join(tmp, "big.bin")
			Expect(os.WriteFile(src, payload, 0o644)).To(Succeed())

			mem := newMemFS()
			remote := memAppendFS{mem}
			mem.failAfter = 100_000
			opts := Options{Policy: Policy{Continue: true}, ChunkSize: 64 << 10}

			err := UploadFile(ctx, local, slash(src), remote, "/big.bin", opts)
			Expect(err).To(HaveOccurred())
			Expect(mem.content("/big.bin")).To(HaveLen(100_000))

			mem.failAfter = 0
			rec := &recorder{}
			opts.Progress = rec
			Expect(UploadFile(ctx, local, slash(src), remote, "/big.bin", opts)).To(Succeed())
			Expect(mem.content("/big.bin")).To(Equal(string(payload)))
			Expect(rec.events[0].Current).To(Equal(int64(100_000)))
		})

		ginkgo.It("restarts from zero when the overlap window differs", func() {
			mem := newMemFSAt(time.Now().Add(-time.Hour))
			mem.put("/big.bin", string(payload))

			partial := bytes.Clone(payload[:150_000])
			partial[149_000] ^= 0xff
			dst := filepath.Join(tmp, "big.bin")
			Expect(os.WriteFile(dst, partial, 0o644)).To(Succeed())

			rec := &recorder{}
			Expect(DownloadFile(ctx, mem, "/big.bin", local, slash(dst), Options{Policy: Policy{Continue: true}, Progress: rec})).To(Succeed())

			got, err := os.ReadFile(dst)
			Expect(err).NotTo(HaveOccurred())
			Expect(bytes.Equal(got, payload)).To(BeTrue())
			Expect(rec.events[0].Current).To(BeZero())
		})

		ginkgo.It("overwrites on stores that cannot append", func() {
			src := filepath.Join(tmp, "big.bin")
			Expect(os.WriteFile(src, payload, 0o644)).To(Succeed())

			mem := newMemFS()
			mem.put("/big.bin", string(payload[:1000]))

			rec := &recorder{}
			Expect(UploadFile(ctx, local, slash(src), mem, "/big.bin", Options{Policy: Policy{Continue: true}, Progress: rec})).To(Succeed())
			Expect(mem.content("/big.bin")).To(Equal(string(payload)))
			Expect(rec.events[0].Current).To(BeZero())
		})
	})

	ginkgo.Describe("failures", func() {
		ginkgo.It("reports a missing source as not found", func() {
			err := UploadFile(ctx, local, slash(filepath.Join(tmp, "nope")), newMemFS(), "/x", Options{})
			Expect(errors.Is(err, fs.ErrNotExist)).To(BeTrue())
			var pe *fs.PathError
			Expect(errors.As(err, &pe)).To(BeTrue())
		})

		ginkgo.It("refuses a directory as a file source", func() {
			err := UploadFile(ctx, local, slash(tmp), newMemFS(), "/x", Options{})
			Expect(errors.Is(err, syscall.EISDIR)).To(BeTrue())
		})

		ginkgo.It("refuses a file as a directory source", func() {
			p := filepath.Join(tmp, "f.txt")
			Expect(os.WriteFile(p, []byte("x"), 0o644)).To(Succeed())
			err := UploadDir(ctx, local, slash(p), newMemFS(), "/x", Options{})
			Expect(errors.Is(err, syscall.ENOTDIR)).To(BeTrue())
		})

		ginkgo.It("emits a fail event when the destination directory is a file", func() {
			src := filepath.Join(tmp, "src")
			writeTree(src, map[string]string{"a.txt": "a"})
			mem := newMemFS()
			mem.put("/dst", "occupied")

			rec := &recorder{}
			err := UploadDir(ctx, local, slash(src), mem, "/dst", Options{Progress: rec})
			Expect(errors.Is(err, syscall.ENOTDIR)).To(BeTrue())
			Expect(rec.kinds()).To(ContainElement(EventFail))
		})
	})

	ginkgo.Describe("ignore files", func() {
		ginkgo.BeforeEach(func() {
			writeTree(filepath.Join(tmp, "src"), map[string]string{
				".apoloignore":      "*.tmp\n# comment\n\nbuild/\n",
				"a.tmp":             "x",
				"main.py":           "print()",
				"build/out.o":       "o",
				"sub/.apoloignore":  "!keep.tmp\n*.bin\n",
				"sub/keep.tmp":      "kept",
				"sub/drop.tmp":      "x",
				"sub/x.bin":         "x",
				"other/x.bin":       "kept",
				"other/y.tmp":       "x",
				"other/deep/z.tmp":  "x",
				"other/deep/ok.txt": "ok",
			})
		})

		ginkgo.It("scopes deeper rules to their own subtree", func() {
			mem := newMemFS()
			Expect(UploadDir(ctx, local, slash(filepath.Join(tmp, "src")), mem, "/dst", Options{})).To(Succeed())

			Expect(mem.walkFiles("/dst")).To(Equal(map[string]string{
				".apoloignore":      "*.tmp\n# comment\n\nbuild/\n",
				"main.py":           "print()",
				"sub/.apoloignore":  "!keep.tmp\n*.bin\n",
				"sub/keep.tmp":      "kept",
				"other/x.bin":       "kept",
				"other/deep/ok.txt": "ok",
			}))
		})

		ginkgo.It("lets command-line filters override ignore files", func() {
			mem := newMemFS()
			opts := Options{Filters: []Filter{
				{Pattern: "other/y.tmp", Include: true},
				{Pattern: "*.py"},
			}}
			Expect(UploadDir(ctx, local, slash(filepath.Join(tmp, "src")), mem, "/dst", opts)).To(Succeed())

			files := mem.walkFiles("/dst")
			Expect(files).To(HaveKey("other/y.tmp"))
			Expect(files).NotTo(HaveKey("main.py"))
		})

		ginkgo.It("can be disabled", func() {
			mem := newMemFS()
			Expect(UploadDir(ctx, local, slash(filepath.Join(tmp, "src")), mem, "/dst", Options{IgnoreFiles: []string{}})).To(Succeed())
			Expect(mem.walkFiles("/dst")).To(HaveKey("a.tmp"))
		})

		ginkgo.It("is not read on download", func() {
			mem := newMemFSAt(time.Now().Add(-time.Hour))
			mem.put("/src/.apoloignore", "*.tmp\n")
			mem.put("/src/a.tmp", "x")

			dst := filepath.Join(tmp, "dl")
			Expect(DownloadDir(ctx, mem, "/src", local, slash(dst), Options{})).To(Succeed())
			Expect(filepath.Join(dst, "a.tmp")).To(BeAnExistingFile())
		})
	})

	ginkgo.Describe("progress", func() {
		ginkgo.It("reports directory and file lifecycle in order", func() {
			src := filepath.Join(tmp, "src")
			writeTree(src, map[string]string{"a.txt": "abc"})

			rec := &recorder{}
			Expect(UploadDir(ctx, local, slash(src), memAppendFS{newMemFS()}, "/dst", Options{Progress: rec})).To(Succeed())
			Expect(rec.kinds()).To(Equal([]EventKind{EventEnterDir, EventStart, EventStep, EventComplete, EventLeaveDir}))
			Expect(rec.events[3].Size).To(Equal(int64(3)))
		})
	})
})
