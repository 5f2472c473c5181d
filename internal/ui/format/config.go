package format

import (
	"strings"

	"github.com/neuro-inc/apolo-cli/internal/config"
)

// Config prints the user's current selection and the presets available
// to them, as shown by 'config show'.
func (p *Printer) Config(cfg *config.Config) {
	p.Println(p.section("User Configuration:"))
	org := cfg.OrgName
	if org == "" {
		org = config.NoOrg
	}

	pairs := [][2]string{
		{"User Name", cfg.Username},
		{"Current Cluster", cfg.ClusterName},
		{"Current Org", org},
		{"Current Project", orDash(cfg.ProjectName)},
		{"API URL", cfg.URL},
	}
	if cl, err := cfg.ClusterConfig(); err == nil {
		pairs = append(pairs,
			[2]string{"Docker Registry URL", cl.RegistryURL},
			[2]string{"Available Orgs", strings.Join(cl.Orgs, ", ")},
		)
	}
	var projects []string
	for _, pr := range cfg.AvailableProjects() {
		projects = append(projects, pr.Name)
	}
	pairs = append(pairs, [2]string{"Available Projects", strings.Join(projects, ", ")})
	p.details(pairs)

	if presets := cfg.Presets(); len(presets) > 0 {
		p.Println(p.section("Resource Presets:"))
		p.Presets(presets)
	}
}

// ClusterChoices prints the clusters the user can switch to, marking the
// current one.
func (p *Printer) ClusterChoices(cfg *config.Config) {
	for _, name := range cfg.ClusterNames() {
		mark := "  "
		if name == cfg.ClusterName {
			mark = p.success("* ")
		}
		p.Println(mark + name)
	}
}
