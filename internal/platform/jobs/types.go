package jobs

import (
	"time"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

// Job states.
const (
	StatusPending   JobStatus = "pending"
	StatusSuspended JobStatus = "suspended"
	StatusRunning   JobStatus = "running"
	StatusSucceeded JobStatus = "succeeded"
	StatusCancelled JobStatus = "cancelled"
	StatusFailed    JobStatus = "failed"
	StatusUnknown   JobStatus = "unknown"
)

// AllStatuses lists every known state in lifecycle order.
var AllStatuses = []JobStatus{
	StatusPending, StatusSuspended, StatusRunning,
	StatusSucceeded, StatusCancelled, StatusFailed,
}

// IsPending reports whether the job has not started yet.
func (s JobStatus) IsPending() bool {
	return s == StatusPending || s == StatusSuspended
}

// IsFinished reports whether the job reached a terminal state.
func (s JobStatus) IsFinished() bool {
	return s == StatusSucceeded || s == StatusCancelled || s == StatusFailed
}

// ParseStatus validates a status name from the command line.
func ParseStatus(s string) (JobStatus, error) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", &ParseError{Kind: "status", Value: s, Reason: "unknown job status"}
}

// JobRestartPolicy controls restarts of a finished container.
type JobRestartPolicy string

// Restart policies.
const (
	RestartNever     JobRestartPolicy = "never"
	RestartOnFailure JobRestartPolicy = "on-failure"
	RestartAlways    JobRestartPolicy = "always"
)

// Resources requested by a container.
type Resources struct {
	CPU            float64 `json:"cpu"`
	Memory         int64   `json:"memory"`
	GPU            int     `json:"nvidia_gpu,omitempty"`
	GPUModel       string  `json:"nvidia_gpu_model,omitempty"`
	SharedMemory   bool    `json:"shm,omitempty"`
	TPUType        string  `json:"tpu_type,omitempty"`
	TPUSoftware    string  `json:"tpu_software_version,omitempty"`
	ResourcePreset string  `json:"-"`
}

// Volume mounts a storage path into the container.
type Volume struct {
	StorageURI string `json:"src_storage_uri"`
	MountPath  string `json:"dst_path"`
	ReadOnly   bool   `json:"read_only"`
}

// DiskVolume mounts a persistent disk into the container.
type DiskVolume struct {
	DiskURI   string `json:"src_disk_uri"`
	MountPath string `json:"dst_path"`
	ReadOnly  bool   `json:"read_only"`
}

// SecretFile mounts one secret as a file.
type SecretFile struct {
	SecretURI string `json:"src_secret_uri"`
	MountPath string `json:"dst_path"`
}

// HTTPPort exposes a container port through the platform ingress.
type HTTPPort struct {
	Port         int  `json:"port"`
	RequiresAuth bool `json:"requires_auth"`
}

// Container is the runnable part of a job.
type Container struct {
	Image       string            `json:"image"`
	Entrypoint  string            `json:"entrypoint,omitempty"`
	Command     string            `json:"command,omitempty"`
	WorkingDir  string            `json:"working_dir,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	SecretEnv   map[string]string `json:"secret_env,omitempty"`
	Volumes     []Volume          `json:"volumes,omitempty"`
	DiskVolumes []DiskVolume      `json:"disk_volumes,omitempty"`
	SecretFiles []SecretFile      `json:"secret_volumes,omitempty"`
	HTTP        *HTTPPort         `json:"http,omitempty"`
	TTY         bool              `json:"tty,omitempty"`
	Resources   Resources         `json:"resources"`
}

// JobStatusHistory tracks state transitions.
type JobStatusHistory struct {
	Status      JobStatus  `json:"status"`
	Reason      string     `json:"reason,omitempty"`
	Description string     `json:"description,omitempty"`
	ExitCode    *int       `json:"exit_code,omitempty"`
	Restarts    int        `json:"restarts,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// JobDescription is the platform's view of a job.
type JobDescription struct {
	ID                  string           `json:"id"`
	Owner               string           `json:"owner"`
	ClusterName         string           `json:"cluster_name"`
	OrgName             string           `json:"org_name,omitempty"`
	ProjectName         string           `json:"project_name"`
	Name                string           `json:"name,omitempty"`
	Tags                []string         `json:"tags,omitempty"`
	Description         string           `json:"description,omitempty"`
	Status              JobStatus        `json:"status"`
	History             JobStatusHistory `json:"history"`
	Container           Container        `json:"container"`
	PresetName          string           `json:"preset_name,omitempty"`
	SchedulerEnabled    bool             `json:"scheduler_enabled"`
	Preemptible         bool             `json:"preemptible_node"`
	PassConfig          bool             `json:"pass_config"`
	Privileged          bool             `json:"privileged,omitempty"`
	RestartPolicy       JobRestartPolicy `json:"restart_policy,omitempty"`
	LifeSpan            *float64         `json:"life_span,omitempty"`
	HTTPURL             string           `json:"http_url,omitempty"`
	InternalHostname    string           `json:"internal_hostname,omitempty"`
	InternalHostnameNmd string           `json:"internal_hostname_named,omitempty"`
	URI                 string           `json:"uri"`
	PriceCreditsPerHour string           `json:"price_credits_per_hour,omitempty"`
	TotalPriceCredits   string           `json:"total_price_credits,omitempty"`
	Priority            string           `json:"priority,omitempty"`
}

// DisplayName is the job name when set, otherwise its id.
func (j JobDescription) DisplayName() string {
	if j.Name != "" {
		return j.Name
	}
	return j.ID
}

// JobTelemetry is one sample of a running job's resource usage.
type JobTelemetry struct {
	Timestamp    float64  `json:"timestamp"`
	CPU          float64  `json:"cpu"`
	Memory       float64  `json:"memory"`
	GPUDutyCycle *int     `json:"gpu_duty_cycle,omitempty"`
	GPUMemory    *float64 `json:"gpu_memory,omitempty"`
}

// Time returns the sample time.
func (t JobTelemetry) Time() time.Time {
	sec := int64(t.Timestamp)
	return time.Unix(sec, int64((t.Timestamp-float64(sec))*1e9))
}

// StartRequest describes a job to run.
type StartRequest struct {
	Container         Container        `json:"container"`
	Name              string           `json:"name,omitempty"`
	Tags              []string         `json:"tags,omitempty"`
	Description       string           `json:"description,omitempty"`
	PresetName        string           `json:"preset_name,omitempty"`
	ScheduleTimeout   float64          `json:"schedule_timeout,omitempty"`
	MaxRunTimeMinutes int              `json:"max_run_time_minutes,omitempty"`
	RestartPolicy     JobRestartPolicy `json:"restart_policy,omitempty"`
	LifeSpan          float64          `json:"life_span,omitempty"`
	PassConfig        bool             `json:"pass_config,omitempty"`
	Privileged        bool             `json:"privileged,omitempty"`
	WaitForJobsQuota  bool             `json:"wait_for_jobs_quota,omitempty"`
	SchedulerEnabled  bool             `json:"scheduler_enabled,omitempty"`
	PreemptibleNode   bool             `json:"preemptible_node,omitempty"`
	Priority          string           `json:"priority,omitempty"`
	ClusterName       string           `json:"cluster_name,omitempty"`
	OrgName           string           `json:"org_name,omitempty"`
	ProjectName       string           `json:"project_name,omitempty"`
}
