package commands

import (
	"github.com/spf13/cobra"

	"github.com/neuro-inc/apolo-cli/cmd/apolo/handlers"
)

// Job returns the job command group.
func Job() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Job operations",
	}

	ls := JobPs()
	ls.Use = "ls"
	ls.Aliases = []string{"ps", "list"}

	cmd.AddCommand(
		JobRun(),
		ls,
		JobStatus(),
		JobKill(),
		JobLogs(),
		JobTop(),
		jobBumpLifeSpan(),
	)

	return cmd
}

// JobRun returns the job run command.
func JobRun() *cobra.Command {
	var opts handlers.RunOptions

	cmd := &cobra.Command{
		Use:   "run [flags] IMAGE [CMD...]",
		Short: "Run a job",
		Long: `Run a job with the given image and command.

IMAGE is a public image such as ubuntu:22.04 or a project image such as
image:train:v1. Everything after the image is the container command.
Flags not given on the command line are taken from --spec when set.

Examples:
  apolo run -s gpu-small --volume storage:data:/data:ro image:train:v1 python train.py
  apolo run --wait ubuntu echo hello`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.Image = args[0]
				opts.Command = args[1:]
			}
			return handlers.JobRun(cmd.Context(), opts)
		},
	}
	cmd.Flags().SetInterspersed(false)

	f := cmd.Flags()
	f.StringVar(&opts.SpecFile, "spec", "", "YAML job spec file")
	f.StringVar(&opts.Entrypoint, "entrypoint", "", "Override the image entrypoint")
	f.StringVarP(&opts.Preset, "preset", "s", "", "Resource preset; defaults to the first preset")
	f.StringVarP(&opts.Name, "name", "n", "", "Job name")
	f.StringVarP(&opts.Description, "description", "d", "", "Job description")
	f.StringArrayVar(&opts.Tags, "tag", nil, "Job tag; may be repeated")
	f.StringArrayVar(&opts.Volumes, "volume", nil, "Mount storage:PATH:MOUNT[:ro], disk:ID:MOUNT or secret:KEY:MOUNT; may be repeated")
	f.StringArrayVarP(&opts.Env, "env", "e", nil, "Environment variable NAME=VALUE; may be repeated")
	f.StringArrayVar(&opts.EnvFiles, "env-file", nil, "File with NAME=VALUE lines; may be repeated")
	f.StringVarP(&opts.WorkDir, "workdir", "w", "", "Working directory inside the container")
	f.StringVar(&opts.HTTPPort, "http-port", "", "Expose this container port over HTTP")
	f.BoolVar(&opts.NoHTTPAuth, "no-http-auth", false, "Disable authentication of the exposed port")
	f.StringVar(&opts.LifeSpan, "life-span", "", "Maximum run time such as 1d2h; 0 disables the limit")
	f.StringVar(&opts.ScheduleTimeout, "schedule-timeout", "", "Fail when the job is not scheduled in time")
	f.StringVar(&opts.RestartPolicy, "restart", "", "Restart policy: never, on-failure or always")
	f.BoolVar(&opts.PassConfig, "pass-config", false, "Upload the local config into the job")
	f.BoolVar(&opts.Privileged, "privileged", false, "Run the container in privileged mode")
	f.BoolVar(&opts.WaitForJobsQuota, "wait-for-seat", false, "Wait for a free jobs quota slot instead of failing")
	f.StringVar(&opts.Priority, "priority", "", "Job priority: low, normal or high")
	f.BoolVarP(&opts.TTY, "tty", "t", false, "Allocate a TTY")
	f.BoolVar(&opts.WaitStart, "wait-start", false, "Wait until the job starts running")
	f.BoolVar(&opts.Wait, "wait", false, "Follow the logs and exit with the job's exit code")

	return cmd
}

// JobPs returns the job listing command.
func JobPs() *cobra.Command {
	var opts handlers.LsOptions

	cmd := &cobra.Command{
		Use:   "ps",
		Short: "List jobs",
		Long: `List jobs.

Without --status or --all only pending, suspended and running jobs are
shown. --owner ME stands for the current user.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.JobLs(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&opts.Statuses, "status", "s", nil, "Filter by status; may be repeated")
	f.BoolVarP(&opts.All, "all", "a", false, "Show jobs in every status")
	f.StringVarP(&opts.Name, "name", "n", "", "Filter by job name")
	f.StringSliceVar(&opts.Owners, "owner", nil, "Filter by owner; ME is the current user")
	f.StringSliceVarP(&opts.Tags, "tag", "t", nil, "Filter by tag; may be repeated")
	f.StringVar(&opts.Since, "since", "", "Show jobs created after a date or a duration ago")
	f.StringVar(&opts.Until, "until", "", "Show jobs created before a date or a duration ago")
	f.BoolVar(&opts.RecentFirst, "recent-first", false, "Show newer jobs first")
	f.IntVar(&opts.Limit, "limit", 0, "Show at most this many jobs")
	f.BoolVar(&opts.AllProjects, "all-projects", false, "Show jobs of every project")
	f.BoolVar(&opts.AllOrgs, "all-orgs", false, "Show jobs of every org")
	f.BoolVarP(&opts.Wide, "wide", "w", false, "Do not cut long columns")
	f.StringVar(&opts.Output, "output", "", "Output format: table, json or yaml")

	return cmd
}

// JobStatus returns the job status command.
func JobStatus() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status JOB",
		Short: "Show job details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.JobStatus(cmd.Context(), args[0], output)
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "Output format: table, json or yaml")

	return cmd
}

// JobKill returns the job kill command.
func JobKill() *cobra.Command {
	return &cobra.Command{
		Use:   "kill JOB...",
		Short: "Kill jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.JobKill(cmd.Context(), args)
		},
	}
}

// JobLogs returns the job logs command.
func JobLogs() *cobra.Command {
	var (
		since      string
		timestamps bool
	)

	cmd := &cobra.Command{
		Use:   "logs JOB",
		Short: "Print the logs of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.JobLogs(cmd.Context(), args[0], since, timestamps)
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "Only lines after a date or a duration ago")
	cmd.Flags().BoolVar(&timestamps, "timestamps", false, "Prefix lines with timestamps")

	return cmd
}

// JobTop returns the job top command.
func JobTop() *cobra.Command {
	return &cobra.Command{
		Use:   "top JOB",
		Short: "Show resource usage of a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.JobTop(cmd.Context(), args[0])
		},
	}
}

func jobBumpLifeSpan() *cobra.Command {
	return &cobra.Command{
		Use:   "bump-life-span JOB DURATION",
		Short: "Extend the maximum run time of a job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.JobBumpLifeSpan(cmd.Context(), args[0], args[1])
		},
	}
}
