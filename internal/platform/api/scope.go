package api

import "net/url"

// Scope selects the org and project a resource belongs to. An empty Org
// addresses the cluster's org-less namespace.
type Scope struct {
	Org     string
	Project string
}

// Query returns the org_name and project_name parameters for non-empty fields.
func (s Scope) Query() url.Values {
	q := url.Values{}
	if s.Org != "" {
		q.Set("org_name", s.Org)
	}
	if s.Project != "" {
		q.Set("project_name", s.Project)
	}
	return q
}
