package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/neuro-inc/apolo-cli/cmd/apolo/handlers"
	"github.com/neuro-inc/apolo-cli/internal/util/ptr"
)

// Admin returns the admin command group.
//
// Cluster scoped commands take the cluster as their first argument. The
// org defaults to the current one and follows the global --org flag.
func Admin() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Cluster, org and project administration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get-clusters",
			Short: "List clusters",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return handlers.AdminGetClusters(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "get-cluster-users [CLUSTER]",
			Short: "List users of a cluster",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return handlers.AdminGetClusterUsers(cmd.Context(), handlers.Scope{Cluster: optionalArg(args)})
			},
		},
		adminAddClusterUser(),
		&cobra.Command{
			Use:   "remove-cluster-user CLUSTER USER",
			Short: "Remove a user from a cluster",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return handlers.AdminRemoveClusterUser(cmd.Context(), handlers.Scope{Cluster: args[0]}, args[1], yesFlag(cmd))
			},
		},
		adminSetUserQuota(),
		adminSetUserCredits(),
		adminAddUserCredits(),

		&cobra.Command{
			Use:   "get-orgs",
			Short: "List orgs",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return handlers.AdminGetOrgs(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "add-org ORG",
			Short: "Create an org",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return handlers.AdminAddOrg(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "remove-org ORG",
			Short: "Remove an org",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return handlers.AdminRemoveOrg(cmd.Context(), args[0], yesFlag(cmd))
			},
		},
		&cobra.Command{
			Use:   "get-org-users ORG",
			Short: "List users of an org",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return handlers.AdminGetOrgUsers(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "add-org-user ORG USER [ROLE]",
			Short: "Add a user to an org",
			Long:  "Add a user to an org. ROLE is user (the default), manager or admin.",
			Args:  cobra.RangeArgs(2, 3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return handlers.AdminAddOrgUser(cmd.Context(), args[0], args[1], optionalArg(args[2:]))
			},
		},
		&cobra.Command{
			Use:   "remove-org-user ORG USER",
			Short: "Remove a user from an org",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return handlers.AdminRemoveOrgUser(cmd.Context(), args[0], args[1], yesFlag(cmd))
			},
		},

		&cobra.Command{
			Use:   "get-projects [CLUSTER]",
			Short: "List projects of a cluster",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return handlers.AdminGetProjects(cmd.Context(), handlers.Scope{Cluster: optionalArg(args)})
			},
		},
		adminAddProject(),
		&cobra.Command{
			Use:   "remove-project CLUSTER PROJECT",
			Short: "Remove a project",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return handlers.AdminRemoveProject(cmd.Context(), handlers.Scope{Cluster: args[0]}, args[1], yesFlag(cmd))
			},
		},
		&cobra.Command{
			Use:   "get-project-users CLUSTER PROJECT",
			Short: "List users of a project",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return handlers.AdminGetProjectUsers(cmd.Context(), handlers.Scope{Cluster: args[0]}, args[1])
			},
		},
		&cobra.Command{
			Use:   "add-project-user CLUSTER PROJECT USER [ROLE]",
			Short: "Add a user to a project",
			Long:  "Add a user to a project. ROLE is reader, writer (the default), manager or admin.",
			Args:  cobra.RangeArgs(3, 4),
			RunE: func(cmd *cobra.Command, args []string) error {
				return handlers.AdminAddProjectUser(cmd.Context(), handlers.Scope{Cluster: args[0]}, args[1], args[2], optionalArg(args[3:]))
			},
		},
		&cobra.Command{
			Use:   "remove-project-user CLUSTER PROJECT USER",
			Short: "Remove a user from a project",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return handlers.AdminRemoveProjectUser(cmd.Context(), handlers.Scope{Cluster: args[0]}, args[1], args[2], yesFlag(cmd))
			},
		},

		&cobra.Command{
			Use:   "get-resource-presets",
			Short: "List resource presets of the current cluster",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return handlers.AdminGetResourcePresets(cmd.Context(), "")
			},
		},
		presetCommand("add-resource-preset", "Add a resource preset to the current cluster", handlers.AdminAddResourcePreset),
		presetCommand("update-resource-preset", "Replace a resource preset of the current cluster", handlers.AdminUpdateResourcePreset),
		&cobra.Command{
			Use:   "remove-resource-preset PRESET",
			Short: "Remove a resource preset from the current cluster",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return handlers.AdminRemoveResourcePreset(cmd.Context(), "", args[0], yesFlag(cmd))
			},
		},
	)

	// Destructive commands confirm unless --yes is given.
	for _, sub := range cmd.Commands() {
		switch sub.Name() {
		case "remove-cluster-user", "remove-org", "remove-org-user",
			"remove-project", "remove-project-user", "remove-resource-preset":
			sub.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
		}
	}

	return cmd
}

func optionalArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func yesFlag(cmd *cobra.Command) bool {
	yes, _ := cmd.Flags().GetBool("yes")
	return yes
}

// limitFlags binds --credits and --jobs; unset flags leave the limit nil.
func limitFlags(cmd *cobra.Command) func() handlers.Limits {
	var (
		credits string
		jobs    int
	)
	cmd.Flags().StringVarP(&credits, "credits", "c", "", "Credits limit; unlimited when omitted")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "Running jobs quota; unlimited when omitted")

	return func() handlers.Limits {
		var l handlers.Limits
		if cmd.Flags().Changed("credits") {
			l.Credits = ptr.To(credits)
		}
		if cmd.Flags().Changed("jobs") {
			l.Jobs = ptr.To(jobs)
		}
		return l
	}
}

func adminAddClusterUser() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-cluster-user CLUSTER USER [ROLE]",
		Short: "Add a user to a cluster",
		Long:  "Add a user to a cluster. ROLE is user (the default), member, manager or admin.",
		Args:  cobra.RangeArgs(2, 3),
	}
	limits := limitFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return handlers.AdminAddClusterUser(cmd.Context(), handlers.Scope{Cluster: args[0]}, args[1], optionalArg(args[2:]), limits())
	}
	return cmd
}

func adminSetUserQuota() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-user-quota CLUSTER USER",
		Short: "Set the running jobs quota of a cluster user",
		Args:  cobra.ExactArgs(2),
	}
	limits := limitFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return handlers.AdminSetUserQuota(cmd.Context(), handlers.Scope{Cluster: args[0]}, args[1], limits().Jobs)
	}
	return cmd
}

func adminSetUserCredits() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-user-credits CLUSTER USER",
		Short: "Set the credits of a cluster user",
		Args:  cobra.ExactArgs(2),
	}
	limits := limitFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return handlers.AdminSetUserCredits(cmd.Context(), handlers.Scope{Cluster: args[0]}, args[1], limits().Credits)
	}
	return cmd
}

func adminAddUserCredits() *cobra.Command {
	var amount string

	cmd := &cobra.Command{
		Use:   "add-user-credits CLUSTER USER",
		Short: "Add credits to a cluster user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.AdminAddUserCredits(cmd.Context(), handlers.Scope{Cluster: args[0]}, args[1], amount)
		},
	}

	cmd.Flags().StringVarP(&amount, "credits", "c", "", "Credits to add; negative values subtract")
	_ = cmd.MarkFlagRequired("credits")

	return cmd
}

func adminAddProject() *cobra.Command {
	var (
		defaultRole string
		isDefault   bool
	)

	cmd := &cobra.Command{
		Use:   "add-project CLUSTER PROJECT",
		Short: "Create a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.AdminAddProject(cmd.Context(), handlers.Scope{Cluster: args[0]}, args[1], defaultRole, isDefault)
		},
	}

	cmd.Flags().StringVar(&defaultRole, "default-role", "", "Role of users added to the project by default")
	cmd.Flags().BoolVar(&isDefault, "default", false, "Add new org members to this project")

	return cmd
}

func presetCommand(use, short string, run func(ctx context.Context, cluster, name string, opts handlers.PresetOptions) error) *cobra.Command {
	var opts handlers.PresetOptions

	cmd := &cobra.Command{
		Use:   use + " PRESET",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), "", args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.CreditsPerHour, "credits-per-hour", "0", "Price in credits per hour")
	f.Float64Var(&opts.CPU, "cpu", 0.1, "Number of CPUs")
	f.StringVarP(&opts.Memory, "memory", "m", "1G", "Memory size such as 4G or 512Mi")
	f.IntVarP(&opts.GPU, "gpu", "g", 0, "Number of GPUs")
	f.StringVar(&opts.GPUModel, "gpu-model", "", "GPU model")
	f.StringVar(&opts.TPUType, "tpu-type", "", "TPU type")
	f.StringVar(&opts.TPUVersion, "tpu-sw-version", "", "TPU software version")
	f.BoolVar(&opts.SchedulerEnabled, "scheduler", false, "Use the round robin scheduler for jobs")
	f.BoolVar(&opts.Preemptible, "preemptible-node", false, "Run on preemptible nodes")
	f.StringArrayVarP(&opts.ResourcePools, "resource-pool", "r", nil, "Resource pool the preset may use; may be repeated")

	return cmd
}
