package shipwatchctl

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	platformgrpc "github.com/louisbranch/shipwatch/internal/platform/grpc"
	"github.com/louisbranch/shipwatch/internal/platform/timeouts"
	readiness "github.com/louisbranch/shipwatch/internal/services/readiness/app"
	"github.com/louisbranch/shipwatch/internal/services/readiness/push"
)

func newProjectsCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List the catalog merged with the deploy host listing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withComponents(cmd, opts, func(ctx context.Context, components *readiness.Components) (any, error) {
				return components.Projects(ctx), nil
			})
		},
	}
}

func newEvaluateCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate <project>",
		Short: "Gather and assess one project without notifying",
		Long: `Gather facts for a project and print its snapshot.
No state is written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.remote != "" {
				return withRemote(cmd, opts, func(ctx context.Context, remote *readiness.Remote) (any, error) {
					return remote.Evaluate(ctx, args[0])
				})
			}
			return withComponents(cmd, opts, func(ctx context.Context, components *readiness.Components) (any, error) {
				project, err := lookupProject(ctx, components, args[0])
				if err != nil {
					return nil, err
				}
				return components.Service.Evaluate(ctx, project)
			})
		},
	}
}

func newNotifyCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "notify <project>",
		Short: "Run the notification decision for one project",
		Long: `Evaluate a project and notify when its state changed or a
pending recommendation was verified. Skips are reported, not errors.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.remote != "" {
				return withRemote(cmd, opts, func(ctx context.Context, remote *readiness.Remote) (any, error) {
					return remote.DecideAndNotify(ctx, args[0])
				})
			}
			return withComponents(cmd, opts, func(ctx context.Context, components *readiness.Components) (any, error) {
				project, err := lookupProject(ctx, components, args[0])
				if err != nil {
					return nil, err
				}
				return components.Service.DecideAndNotify(ctx, project)
			})
		},
	}
}

func newPushCmd(opts *globalOpts) *cobra.Command {
	var commit push.Commit

	cmd := &cobra.Command{
		Use:   "push <project>",
		Short: "Classify a push against the project's profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.remote != "" {
				return withRemote(cmd, opts, func(ctx context.Context, remote *readiness.Remote) (any, error) {
					return remote.RecordPush(ctx, args[0], []push.Commit{commit})
				})
			}
			return withComponents(cmd, opts, func(ctx context.Context, components *readiness.Components) (any, error) {
				project, err := lookupProject(ctx, components, args[0])
				if err != nil {
					return nil, err
				}
				return components.Service.RecordPush(ctx, project, []push.Commit{commit})
			})
		},
	}

	cmd.Flags().StringVar(&commit.SHA, "sha", "", "pushed commit sha")
	cmd.Flags().StringSliceVar(&commit.Added, "added", nil, "added file paths")
	cmd.Flags().StringSliceVar(&commit.Removed, "removed", nil, "removed file paths")
	cmd.Flags().StringSliceVar(&commit.Modified, "modified", nil, "modified file paths")

	return cmd
}

type unlockResult struct {
	Released string `json:"released"`
}

func newUnlockCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <key>",
		Short: "Release an idempotency lock left by a crashed run",
		Long: `Release an idempotency lock.

Arguments:
  key    <project>:evaluating or <project>:<commit sha>`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, opts, func(ctx context.Context, components *readiness.Components) (any, error) {
				if err := components.Service.Unlock(ctx, args[0]); err != nil {
					return nil, err
				}
				return unlockResult{Released: args[0]}, nil
			})
		},
	}
}

type healthResult struct {
	Addr   string `json:"addr"`
	Status string `json:"status"`
}

func newHealthCmd(opts *globalOpts) *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the service gRPC health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := platformgrpc.CheckHealth(ctx, addr, timeout); err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), opts.output, healthResult{Addr: addr, Status: "SERVING"})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8089", "health server address")
	cmd.Flags().DurationVar(&timeout, "timeout", timeouts.HealthDial, "health check timeout")

	return cmd
}
