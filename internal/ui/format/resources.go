package format

import (
	"fmt"
	"sort"

	"k8s.io/apimachinery/pkg/util/duration"

	"github.com/neuro-inc/apolo-cli/internal/platform/disks"
	"github.com/neuro-inc/apolo-cli/internal/platform/images"
	"github.com/neuro-inc/apolo-cli/internal/platform/secrets"
)

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p *Printer) diskUsed(d disks.Disk) string {
	if d.UsedBytes == nil {
		return ""
	}
	return Size(*d.UsedBytes)
}

func diskTimeout(d disks.Disk) string {
	if t := d.TimeoutUnused(); t > 0 {
		return duration.HumanDuration(t)
	}
	return ""
}

// Disks prints a disk table. Long form adds usage and idle timeout.
func (p *Printer) Disks(list []disks.Disk, long bool) {
	headers := []string{"ID", "NAME", "STORAGE", "URI", "STATUS"}
	if long {
		headers = append(headers, "USED", "CREATED", "LAST USAGE", "TIMEOUT UNUSED")
	}
	rows := make([][]string, 0, len(list))
	for _, d := range list {
		row := []string{d.ID, orDash(d.Name), Size(d.Storage), diskURI(d), string(d.Status)}
		if long {
			var last string
			if d.LastUsage != nil {
				last = formatTime(*d.LastUsage)
			}
			row = append(row, orDash(p.diskUsed(d)), formatTime(d.CreatedAt), orDash(last), orDash(diskTimeout(d)))
		}
		rows = append(rows, row)
	}
	p.table(headers, rows, nil)
}

func diskURI(d disks.Disk) string {
	u := "disk://" + d.ClusterName + "/"
	if d.OrgName != "" {
		u += d.OrgName + "/"
	}
	return u + d.ProjectName + "/" + d.ID
}

// Disk prints the detail view of one disk.
func (p *Printer) Disk(d disks.Disk) {
	var last string
	if d.LastUsage != nil {
		last = formatTime(*d.LastUsage)
	}
	p.details([][2]string{
		{"Id", d.ID},
		{"Name", d.Name},
		{"Storage", Size(d.Storage)},
		{"Used", p.diskUsed(d)},
		{"Uri", diskURI(d)},
		{"Status", string(d.Status)},
		{"Owner", d.Owner},
		{"Created at", formatTime(d.CreatedAt)},
		{"Last used", last},
		{"Timeout unused", diskTimeout(d)},
	})
}

// Secrets prints secret keys. Values are never shown.
func (p *Printer) Secrets(list []secrets.Secret) {
	rows := make([][]string, 0, len(list))
	for _, s := range list {
		rows = append(rows, []string{s.Key, s.Owner, orDash(s.OrgName), s.ProjectName})
	}
	p.table([]string{"KEY", "OWNER", "ORG", "PROJECT"}, rows, nil)
}

// Images prints image URIs, with the full registry repository when long.
func (p *Printer) Images(list []images.Image, registry string, long bool) {
	if !long {
		for _, im := range list {
			p.Println(im.URI())
		}
		return
	}
	rows := make([][]string, 0, len(list))
	for _, im := range list {
		rows = append(rows, []string{im.URI(), fmt.Sprintf("%s/%s", registry, im.Repository)})
	}
	p.table([]string{"URI", "DOCKER IMAGE"}, rows, nil)
}

// Tags prints image tags, one per line.
func (p *Printer) Tags(image string, tags []string) {
	for _, t := range tags {
		p.Println(image + ":" + t)
	}
}
