package jobs

import (
	"fmt"
	"io"

	"sigs.k8s.io/yaml"
)

// JobSpec is the file form of "job run -f job.yaml". Field names follow the
// command-line flags; flags given explicitly take precedence.
type JobSpec struct {
	Image            string            `json:"image"`
	Command          []string          `json:"command,omitempty"`
	Entrypoint       string            `json:"entrypoint,omitempty"`
	Name             string            `json:"name,omitempty"`
	Description      string            `json:"description,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
	Preset           string            `json:"preset,omitempty"`
	Volumes          []string          `json:"volumes,omitempty"`
	Env              map[string]string `json:"env,omitempty"`
	WorkDir          string            `json:"workdir,omitempty"`
	HTTPPort         int               `json:"http_port,omitempty"`
	HTTPAuth         *bool             `json:"http_auth,omitempty"`
	LifeSpan         string            `json:"life_span,omitempty"`
	ScheduleTimeout  string            `json:"schedule_timeout,omitempty"`
	RestartPolicy    JobRestartPolicy  `json:"restart,omitempty"`
	PassConfig       bool              `json:"pass_config,omitempty"`
	Privileged       bool              `json:"privileged,omitempty"`
	WaitForJobsQuota bool              `json:"wait_for_jobs_quota,omitempty"`
	Priority         string            `json:"priority,omitempty"`
}

// LoadSpec decodes a job spec, rejecting unknown fields.
func LoadSpec(r io.Reader) (JobSpec, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return JobSpec{}, fmt.Errorf("failed to read job spec: %w", err)
	}
	var spec JobSpec
	if err := yaml.UnmarshalStrict(data, &spec); err != nil {
		return JobSpec{}, fmt.Errorf("failed to parse job spec: %w", err)
	}
	if spec.Image == "" {
		return JobSpec{}, fmt.Errorf("job spec: image is required")
	}
	switch spec.RestartPolicy {
	case "", RestartNever, RestartOnFailure, RestartAlways:
	default:
		return JobSpec{}, fmt.Errorf("job spec: unknown restart policy %q", spec.RestartPolicy)
	}
	return spec, nil
}
