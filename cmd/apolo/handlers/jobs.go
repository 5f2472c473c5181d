package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/neuro-inc/apolo-cli/internal/config"
	"github.com/neuro-inc/apolo-cli/internal/platform"
	"github.com/neuro-inc/apolo-cli/internal/platform/jobs"
	"github.com/neuro-inc/apolo-cli/internal/ui/format"
	"github.com/neuro-inc/apolo-cli/internal/util/async"
)

// RunOptions are the job run flags.
type RunOptions struct {
	// SpecFile is a YAML job spec; flags set explicitly override it.
	SpecFile string

	Image       string
	Command     []string
	Entrypoint  string
	Preset      string
	Name        string
	Description string
	Tags        []string
	Volumes     []string
	Env         []string
	EnvFiles    []string
	WorkDir     string
	HTTPPort    string
	NoHTTPAuth  bool
	// LifeSpan is a 1d2h3m4s duration; "0" disables the limit.
	LifeSpan         string
	ScheduleTimeout  string
	RestartPolicy    string
	PassConfig       bool
	Privileged       bool
	WaitForJobsQuota bool
	Priority         string
	TTY              bool

	// WaitStart blocks until the job leaves the pending states.
	WaitStart bool
	// Wait follows the logs until the job finishes and exits with its code.
	Wait bool
}

// mergeSpec fills options not given on the command line from a spec file.
func mergeSpec(opts RunOptions, spec jobs.JobSpec) RunOptions {
	if opts.Image == "" {
		opts.Image = spec.Image
	}
	if len(opts.Command) == 0 {
		opts.Command = spec.Command
	}
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&opts.Entrypoint, spec.Entrypoint)
	fill(&opts.Name, spec.Name)
	fill(&opts.Description, spec.Description)
	fill(&opts.Preset, spec.Preset)
	fill(&opts.WorkDir, spec.WorkDir)
	fill(&opts.LifeSpan, spec.LifeSpan)
	fill(&opts.ScheduleTimeout, spec.ScheduleTimeout)
	fill(&opts.RestartPolicy, string(spec.RestartPolicy))
	fill(&opts.Priority, spec.Priority)
	if opts.HTTPPort == "" && spec.HTTPPort > 0 {
		opts.HTTPPort = fmt.Sprint(spec.HTTPPort)
	}
	if spec.HTTPAuth != nil && !*spec.HTTPAuth {
		opts.NoHTTPAuth = true
	}
	opts.Tags = append(slices.Clone(spec.Tags), opts.Tags...)
	opts.Volumes = append(slices.Clone(spec.Volumes), opts.Volumes...)
	var env []string
	for _, k := range slices.Sorted(maps.Keys(spec.Env)) {
		env = append(env, k+"="+spec.Env[k])
	}
	opts.Env = append(env, opts.Env...)
	opts.PassConfig = opts.PassConfig || spec.PassConfig
	opts.Privileged = opts.Privileged || spec.Privileged
	opts.WaitForJobsQuota = opts.WaitForJobsQuota || spec.WaitForJobsQuota
	return opts
}

// defaultPreset is the first preset by name.
func defaultPreset(cfg *config.Config) (string, error) {
	presets := cfg.Presets()
	if len(presets) == 0 {
		return "", fmt.Errorf("cluster %s has no resource presets", cfg.ClusterName)
	}
	return slices.Sorted(maps.Keys(presets))[0], nil
}

// buildStartRequest turns run options into the API request.
func buildStartRequest(client *platform.Client, opts RunOptions) (jobs.StartRequest, error) {
	cfg := client.Config
	uctx := client.URIContext()
	if opts.Image == "" {
		return jobs.StartRequest{}, errors.New("an image is required")
	}

	var err error
	presetName := opts.Preset
	if presetName == "" {
		if presetName, err = defaultPreset(cfg); err != nil {
			return jobs.StartRequest{}, err
		}
	}
	preset, ok := cfg.Presets()[presetName]
	if !ok {
		return jobs.StartRequest{}, fmt.Errorf("unknown preset %q; run 'apolo config show' to list presets", presetName)
	}

	image := opts.Image
	if strings.HasPrefix(image, "image:") {
		ic, err := client.Images()
		if err != nil {
			return jobs.StartRequest{}, err
		}
		if image, err = jobs.ParseImage(image, uctx, ic.Host()); err != nil {
			return jobs.StartRequest{}, err
		}
	} else if image, err = jobs.ParseImage(image, uctx, ""); err != nil {
		return jobs.StartRequest{}, err
	}

	mounts, err := jobs.ParseMounts(opts.Volumes, uctx)
	if err != nil {
		return jobs.StartRequest{}, err
	}

	envValues := []string{}
	for _, f := range opts.EnvFiles {
		values, err := readEnvFile(f)
		if err != nil {
			return jobs.StartRequest{}, err
		}
		envValues = append(envValues, values...)
	}
	envValues = append(envValues, opts.Env...)
	env, secretEnv, err := jobs.ParseEnvs(envValues, uctx)
	if err != nil {
		return jobs.StartRequest{}, err
	}

	httpPort, err := jobs.ParseHTTPPort(opts.HTTPPort, !opts.NoHTTPAuth)
	if err != nil {
		return jobs.StartRequest{}, err
	}

	req := jobs.StartRequest{
		Container: jobs.Container{
			Image:       image,
			Entrypoint:  opts.Entrypoint,
			Command:     joinCommand(opts.Command),
			WorkingDir:  opts.WorkDir,
			Env:         env,
			SecretEnv:   secretEnv,
			Volumes:     mounts.Volumes,
			DiskVolumes: mounts.DiskVolumes,
			SecretFiles: mounts.SecretFiles,
			HTTP:        httpPort,
			TTY:         opts.TTY,
			Resources: jobs.Resources{
				CPU:            preset.CPU,
				Memory:         preset.Memory,
				GPU:            preset.GPU,
				GPUModel:       preset.GPUModel,
				TPUType:        preset.TPUType,
				TPUSoftware:    preset.TPUSoftwareVersion,
				SharedMemory:   true,
				ResourcePreset: presetName,
			},
		},
		Name:             opts.Name,
		Tags:             opts.Tags,
		Description:      opts.Description,
		PresetName:       presetName,
		PassConfig:       opts.PassConfig,
		Privileged:       opts.Privileged,
		WaitForJobsQuota: opts.WaitForJobsQuota,
		SchedulerEnabled: preset.SchedulerEnabled,
		PreemptibleNode:  preset.Preemptible,
		Priority:         opts.Priority,
		ClusterName:      cfg.ClusterName,
		OrgName:          cfg.OrgName,
		ProjectName:      cfg.ProjectName,
	}

	if opts.LifeSpan != "" && opts.LifeSpan != "0" {
		d, err := parseDuration(opts.LifeSpan)
		if err != nil {
			return jobs.StartRequest{}, err
		}
		req.LifeSpan = d.Seconds()
	}
	if opts.ScheduleTimeout != "" {
		d, err := parseDuration(opts.ScheduleTimeout)
		if err != nil {
			return jobs.StartRequest{}, err
		}
		req.ScheduleTimeout = d.Seconds()
	}
	switch p := jobs.JobRestartPolicy(opts.RestartPolicy); p {
	case "":
	case jobs.RestartNever, jobs.RestartOnFailure, jobs.RestartAlways:
		req.RestartPolicy = p
	default:
		return jobs.StartRequest{}, fmt.Errorf("invalid restart policy %q, expected never, on-failure or always", opts.RestartPolicy)
	}
	return req, nil
}

// joinCommand renders argv as a shell command line the platform splits again.
func joinCommand(argv []string) string {
	if len(argv) == 1 {
		return argv[0]
	}
	quoted := make([]string, 0, len(argv))
	for _, a := range argv {
		if a == "" || strings.ContainsAny(a, " \t\n'\"\\$`") {
			a = "'" + strings.ReplaceAll(a, "'", `'"'"'`) + "'"
		}
		quoted = append(quoted, a)
	}
	return strings.Join(quoted, " ")
}

func readEnvFile(p string) ([]string, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open env file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return jobs.ParseEnvFile(f)
}

// JobRun starts a job and optionally waits for it.
func JobRun(ctx context.Context, opts RunOptions) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	if opts.SpecFile != "" {
		f, err := os.Open(opts.SpecFile)
		if err != nil {
			return fmt.Errorf("failed to open job spec: %w", err)
		}
		spec, err := jobs.LoadSpec(f)
		_ = f.Close()
		if err != nil {
			return err
		}
		opts = mergeSpec(opts, spec)
	}
	req, err := buildStartRequest(client, opts)
	if err != nil {
		return err
	}
	jc, err := client.Jobs()
	if err != nil {
		return err
	}
	job, err := jc.Start(ctx, req)
	if err != nil {
		return err
	}
	env.Log.Info("job started", zap.String("id", job.ID))
	if env.Settings.Quiet {
		env.Print.Println(job.ID)
	} else {
		env.Print.JobStarted(job)
	}

	if !opts.WaitStart && !opts.Wait {
		return nil
	}
	id := job.ID
	waitCtx, cancel := context.WithTimeout(ctx, env.Timeouts.JobStart)
	job, err = jc.WaitStart(waitCtx, id, func(j jobs.JobDescription) {
		if !env.Settings.Quiet {
			env.Print.Printf("Status: %s %s\n", j.Status, j.History.Reason)
		}
	})
	cancel()
	if err != nil {
		return fmt.Errorf("job %s did not start: %w", id, err)
	}
	if !opts.Wait {
		return nil
	}
	return followJob(ctx, env, jc, job)
}

// followJob streams the logs of a started job until it finishes and maps a
// non-zero exit code to an ExitError.
func followJob(ctx context.Context, env *Env, jc *jobs.Client, job jobs.JobDescription) error {
	if !job.Status.IsFinished() {
		rc, err := jc.Logs(ctx, job.ID, jobs.LogOptions{})
		if err != nil {
			return err
		}
		_, err = io.Copy(env.Out, rc)
		_ = rc.Close()
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("log stream of job %s: %w", job.ID, err)
		}
	}

	job, err := jc.WaitFinish(ctx, job.ID)
	if err != nil {
		return err
	}
	if job.Status != jobs.StatusSucceeded {
		env.Print.Warn("Job %s %s: %s", job.ID, job.Status, job.History.Reason)
	}
	if code := job.History.ExitCode; code != nil && *code != 0 {
		return &ExitError{Code: *code}
	}
	if job.Status == jobs.StatusFailed {
		return &ExitError{Code: 1}
	}
	return nil
}

// resolveJob accepts a job id, a job: URI or a job name; a name picks the
// most recent job carrying it.
func resolveJob(ctx context.Context, jc *jobs.Client, ref string) (string, error) {
	ref = strings.TrimPrefix(ref, "job:")
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		ref = ref[i+1:]
	}
	if strings.HasPrefix(ref, "job-") {
		return ref, nil
	}
	for job, err := range jc.List(ctx, jobs.ListFilter{Name: ref, Reverse: true, Limit: 1}) {
		if err != nil {
			return "", err
		}
		return job.ID, nil
	}
	return "", fmt.Errorf("job %q not found", ref)
}

// LsOptions are the job ls flags.
type LsOptions struct {
	Statuses    []string
	All         bool
	Name        string
	Owners      []string
	Tags        []string
	Since       string
	Until       string
	RecentFirst bool
	Limit       int
	AllProjects bool
	AllOrgs     bool
	Wide        bool
	Output      string
}

// defaultStatuses are listed when neither --status nor --all is given.
var defaultStatuses = []jobs.JobStatus{jobs.StatusPending, jobs.StatusSuspended, jobs.StatusRunning}

// JobLs lists jobs.
func JobLs(ctx context.Context, opts LsOptions) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	out, err := format.ParseOutput(opts.Output)
	if err != nil {
		return err
	}

	filter := jobs.ListFilter{
		Name:        opts.Name,
		Tags:        opts.Tags,
		Reverse:     opts.RecentFirst,
		Limit:       opts.Limit,
		AllProjects: opts.AllProjects,
		AllOrgs:     opts.AllOrgs,
	}
	for _, s := range opts.Statuses {
		st, err := jobs.ParseStatus(s)
		if err != nil {
			return err
		}
		filter.Statuses = append(filter.Statuses, st)
	}
	if len(filter.Statuses) == 0 && !opts.All {
		filter.Statuses = defaultStatuses
	}
	for _, o := range opts.Owners {
		if o == "ME" {
			o = client.Config.Username
		}
		filter.Owners = append(filter.Owners, o)
	}
	now := time.Now()
	if filter.Since, err = parseTime(opts.Since, now); err != nil {
		return err
	}
	if filter.Until, err = parseTime(opts.Until, now); err != nil {
		return err
	}

	jc, err := client.Jobs()
	if err != nil {
		return err
	}
	var list []jobs.JobDescription
	for job, err := range jc.List(ctx, filter) {
		if err != nil {
			return err
		}
		list = append(list, job)
	}
	if out != format.OutputTable {
		return env.Print.Encode(out, list)
	}
	env.Print.Jobs(list, opts.Wide)
	return nil
}

// JobStatus prints the details of a job.
func JobStatus(ctx context.Context, ref, output string) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	out, err := format.ParseOutput(output)
	if err != nil {
		return err
	}
	jc, err := client.Jobs()
	if err != nil {
		return err
	}
	id, err := resolveJob(ctx, jc, ref)
	if err != nil {
		return err
	}
	job, err := jc.Status(ctx, id)
	if err != nil {
		return err
	}
	if out != format.OutputTable {
		return env.Print.Encode(out, job)
	}
	env.Print.JobStatus(job)
	return nil
}

// JobKill stops jobs given by id or name, concurrently.
func JobKill(ctx context.Context, refs []string) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	jc, err := client.Jobs()
	if err != nil {
		return err
	}
	killed := make([]string, len(refs))
	tasks := make([]async.Task, 0, len(refs))
	for i, ref := range refs {
		tasks = append(tasks, async.Task{Name: ref, Func: func(ctx context.Context) error {
			id, err := resolveJob(ctx, jc, ref)
			if err != nil {
				return err
			}
			if err := jc.Kill(ctx, id); err != nil {
				return err
			}
			killed[i] = id
			return nil
		}})
	}
	err = async.RunParallel(ctx, tasks, false)
	for _, id := range killed {
		if id != "" {
			env.Print.Println(id)
		}
	}
	return err
}

// JobLogs streams a job's output to stdout.
func JobLogs(ctx context.Context, ref, since string, timestamps bool) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	jc, err := client.Jobs()
	if err != nil {
		return err
	}
	id, err := resolveJob(ctx, jc, ref)
	if err != nil {
		return err
	}
	opts := jobs.LogOptions{Timestamps: timestamps}
	if opts.Since, err = parseTime(since, time.Now()); err != nil {
		return err
	}
	rc, err := jc.Logs(ctx, id, opts)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	if _, err := io.Copy(env.Out, rc); err != nil && ctx.Err() == nil {
		return fmt.Errorf("log stream of job %s: %w", id, err)
	}
	return nil
}

// JobTop shows live resource usage of a running job: a dashboard on a
// terminal, one line per sample otherwise.
func JobTop(ctx context.Context, ref string) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	jc, err := client.Jobs()
	if err != nil {
		return err
	}
	id, err := resolveJob(ctx, jc, ref)
	if err != nil {
		return err
	}
	job, err := jc.Status(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.IsFinished() {
		return fmt.Errorf("job %s is %s", job.ID, job.Status)
	}

	samples := jc.Top(ctx, id)
	if isTerminal(env.Out) {
		return runTop(ctx, job, samples)
	}
	header := true
	for s, err := range samples {
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		env.Print.JobTelemetry(job, s, header)
		header = false
	}
	return nil
}

// JobBumpLifeSpan extends a job's life span by a 1d2h3m4s duration.
func JobBumpLifeSpan(ctx context.Context, ref, extra string) error {
	env, client, err := session(ctx)
	if err != nil {
		return err
	}
	d, err := parseDuration(extra)
	if err != nil {
		return err
	}
	jc, err := client.Jobs()
	if err != nil {
		return err
	}
	id, err := resolveJob(ctx, jc, ref)
	if err != nil {
		return err
	}
	if err := jc.BumpLifeSpan(ctx, id, d); err != nil {
		return err
	}
	env.Print.Success("Life span of %s increased by %s", id, extra)
	return nil
}
