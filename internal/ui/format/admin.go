package format

import (
	"fmt"
	"strings"

	"github.com/neuro-inc/apolo-cli/internal/config"
	"github.com/neuro-inc/apolo-cli/internal/platform/admin"
	"github.com/neuro-inc/apolo-cli/internal/util/ptr"
)

func credits(b admin.Balance) string {
	return ptr.Deref(b.Credits, "unlimited")
}

func jobsQuota(q admin.Quota) string {
	if q.TotalRunningJobs == nil {
		return "unlimited"
	}
	return fmt.Sprint(*q.TotalRunningJobs)
}

// Clusters prints the clusters known to the admin service.
func (p *Printer) Clusters(list []admin.Cluster) {
	rows := make([][]string, 0, len(list))
	for _, c := range list {
		presets := 0
		if c.Orchestrator != nil {
			presets = len(c.Orchestrator.ResourcePresets)
		}
		rows = append(rows, []string{c.Name, orDash(c.Status), fmt.Sprint(presets)})
	}
	p.table([]string{"NAME", "STATUS", "PRESETS"}, rows, nil)
}

// ClusterUsers prints cluster membership with quota and balance.
func (p *Printer) ClusterUsers(list []admin.ClusterUser) {
	rows := make([][]string, 0, len(list))
	for _, u := range list {
		rows = append(rows, []string{
			u.UserName, string(u.Role), orDash(u.OrgName),
			credits(u.Balance), orDash(u.Balance.SpentCredits), jobsQuota(u.Quota),
		})
	}
	p.table([]string{"NAME", "ROLE", "ORG", "CREDITS", "SPENT CREDITS", "MAX JOBS"}, rows, nil)
}

// ClusterUser prints one membership after it was changed.
func (p *Printer) ClusterUser(u admin.ClusterUser) {
	p.details([][2]string{
		{"User", u.UserName},
		{"Cluster", u.ClusterName},
		{"Organization", u.OrgName},
		{"Role", string(u.Role)},
		{"Credits", credits(u.Balance)},
		{"Spent credits", u.Balance.SpentCredits},
		{"Max running jobs", jobsQuota(u.Quota)},
	})
}

// Orgs prints organizations.
func (p *Printer) Orgs(list []admin.Org) {
	rows := make([][]string, 0, len(list))
	for _, o := range list {
		rows = append(rows, []string{o.Name, credits(o.Balance), orDash(o.Balance.SpentCredits)})
	}
	p.table([]string{"NAME", "CREDITS", "SPENT CREDITS"}, rows, nil)
}

// OrgUsers prints org membership.
func (p *Printer) OrgUsers(list []admin.OrgUser) {
	rows := make([][]string, 0, len(list))
	for _, u := range list {
		rows = append(rows, []string{u.UserName, string(u.Role), u.OrgName, credits(u.Balance)})
	}
	p.table([]string{"NAME", "ROLE", "ORG", "CREDITS"}, rows, nil)
}

// Projects prints projects.
func (p *Printer) Projects(list []admin.Project) {
	rows := make([][]string, 0, len(list))
	for _, pr := range list {
		rows = append(rows, []string{pr.Name, pr.ClusterName, orDash(pr.OrgName), string(pr.DefaultRole), yesNo(pr.IsDefault)})
	}
	p.table([]string{"NAME", "CLUSTER", "ORG", "DEFAULT ROLE", "DEFAULT"}, rows, nil)
}

// ProjectUsers prints project membership.
func (p *Printer) ProjectUsers(list []admin.ProjectUser) {
	rows := make([][]string, 0, len(list))
	for _, u := range list {
		rows = append(rows, []string{u.UserName, string(u.Role), u.ProjectName})
	}
	p.table([]string{"NAME", "ROLE", "PROJECT"}, rows, nil)
}

func presetRow(name string, pr config.Preset) []string {
	gpu := "-"
	if pr.GPU > 0 {
		gpu = fmt.Sprintf("%d x %s", pr.GPU, orDash(pr.GPUModel))
	}
	tpu := "-"
	if pr.TPUType != "" {
		tpu = pr.TPUType + "/" + pr.TPUSoftwareVersion
	}
	return []string{
		name, fmt.Sprint(pr.CPU), Size(pr.Memory), gpu, tpu,
		yesNo(pr.SchedulerEnabled), yesNo(pr.Preemptible),
		strings.Join(pr.ResourcePools, ","), orDash(pr.CreditsPerHour),
	}
}

var presetHeaders = []string{"NAME", "CPU", "MEMORY", "GPU", "TPU", "SCHEDULED", "PREEMPTIBLE", "POOLS", "CREDITS/H"}

// Presets prints resource presets in name order.
func (p *Printer) Presets(presets map[string]config.Preset) {
	rows := make([][]string, 0, len(presets))
	for _, name := range sortedKeys(presets) {
		rows = append(rows, presetRow(name, presets[name]))
	}
	p.table(presetHeaders, rows, nil)
}

// ResourcePresets prints presets as returned by the admin service.
func (p *Printer) ResourcePresets(list []admin.ResourcePreset) {
	rows := make([][]string, 0, len(list))
	for _, pr := range list {
		rows = append(rows, presetRow(pr.Name, pr.Preset))
	}
	p.table(presetHeaders, rows, nil)
}
