package format

import (
	"fmt"

	"github.com/neuro-inc/apolo-cli/internal/platform/buckets"
	"github.com/neuro-inc/apolo-cli/internal/platform/storage"
	"github.com/neuro-inc/apolo-cli/internal/transfer"
)

func fileTypeMark(t transfer.FileType) string {
	switch t {
	case transfer.TypeDir:
		return "d"
	case transfer.TypeSymlink:
		return "l"
	case transfer.TypeFile:
		return "-"
	}
	return "?"
}

func (p *Printer) fileName(st transfer.FileStatus) string {
	if st.IsDir() {
		return p.style().Bold(true).Foreground(colorBlue).Render(st.Name())
	}
	return st.Name()
}

func (p *Printer) size(n int64, human bool) string {
	if human {
		return Size(n)
	}
	return fmt.Sprint(n)
}

// Files prints a storage listing. Short form is one name per line; long
// form adds type, permission, size and modification time.
func (p *Printer) Files(list []transfer.FileStatus, long, human bool) {
	if !long {
		for _, st := range list {
			p.Println(p.fileName(st))
		}
		return
	}
	rows := make([][]string, 0, len(list))
	for _, st := range list {
		rows = append(rows, []string{
			fileTypeMark(st.Type) + orDash(st.Permission),
			p.size(st.Size, human),
			formatTime(st.ModTime),
			p.fileName(st),
		})
	}
	p.table([]string{"MODE", "SIZE", "MODIFIED", "NAME"}, rows, nil)
}

// DiskUsage prints storage usage for 'storage df'.
func (p *Printer) DiskUsage(uri string, du storage.DiskUsage) {
	pct := ""
	if du.Total > 0 {
		pct = fmt.Sprintf("%.1f%%", float64(du.Used)*100/float64(du.Total))
	}
	p.table([]string{"STORAGE", "TOTAL", "USED", "FREE", "USE%"},
		[][]string{{uri, Size(du.Total), Size(du.Used), Size(du.Free), pct}}, nil)
}

// Buckets prints a bucket table.
func (p *Printer) Buckets(list []buckets.Bucket) {
	rows := make([][]string, 0, len(list))
	for _, b := range list {
		rows = append(rows, []string{
			b.ID, orDash(b.Name), string(b.Provider), formatTime(b.CreatedAt),
			yesNo(b.Imported), yesNo(b.Public), b.ProjectName,
		})
	}
	p.table([]string{"ID", "NAME", "PROVIDER", "CREATED", "IMPORTED", "PUBLIC", "PROJECT"}, rows, nil)
}

// Bucket prints the detail view of one bucket.
func (p *Printer) Bucket(b buckets.Bucket) {
	p.details([][2]string{
		{"Bucket", b.ID},
		{"Name", b.Name},
		{"Owner", b.Owner},
		{"Provider", string(b.Provider)},
		{"Created", formatTime(b.CreatedAt)},
		{"Imported", yesNo(b.Imported)},
		{"Public", yesNo(b.Public)},
		{"Organization", b.OrgName},
		{"Project", b.ProjectName},
	})
}

// PersistentCredentials prints a credentials table.
func (p *Printer) PersistentCredentials(list []buckets.PersistentCredentials) {
	rows := make([][]string, 0, len(list))
	for _, c := range list {
		ids := make([]string, 0, len(c.Credentials))
		for _, bc := range c.Credentials {
			ids = append(ids, bc.BucketID)
		}
		rows = append(rows, []string{c.ID, orDash(c.Name), c.Owner, yesNo(c.ReadOnly), fmt.Sprint(ids)})
	}
	p.table([]string{"ID", "NAME", "OWNER", "READ-ONLY", "BUCKETS"}, rows, nil)
}

// Credentials prints the secret values of freshly created credentials.
func (p *Printer) Credentials(c buckets.PersistentCredentials) {
	p.details([][2]string{
		{"Credentials", c.ID},
		{"Name", c.Name},
		{"Read-only", yesNo(c.ReadOnly)},
	})
	for _, bc := range c.Credentials {
		p.Println(p.section(fmt.Sprintf("Bucket %s (%s):", bc.BucketID, bc.Provider)))
		keys := sortedKeys(bc.Credentials)
		for _, k := range keys {
			p.Printf("  %s=%s\n", k, bc.Credentials[k])
		}
	}
}

// Blobs prints a bucket listing. Prefixes come first, as directories.
func (p *Printer) Blobs(bucket string, blobs []buckets.BlobListing, prefixes []buckets.PrefixListing, long, human bool) {
	dir := p.style().Bold(true).Foreground(colorBlue)
	if !long {
		for _, pr := range prefixes {
			p.Println(dir.Render("blob:" + bucket + "/" + pr.Prefix))
		}
		for _, b := range blobs {
			p.Println("blob:" + bucket + "/" + b.Key)
		}
		return
	}
	rows := make([][]string, 0, len(blobs)+len(prefixes))
	for _, pr := range prefixes {
		rows = append(rows, []string{"", "", dir.Render("blob:" + bucket + "/" + pr.Prefix)})
	}
	for _, b := range blobs {
		rows = append(rows, []string{p.size(b.Size, human), formatTime(b.ModTime), "blob:" + bucket + "/" + b.Key})
	}
	p.table([]string{"SIZE", "MODIFIED", "KEY"}, rows, nil)
}
