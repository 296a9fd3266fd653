// Package shipwatchctl provides the operator command tree for re-running
// readiness evaluations, pushes and lock cleanup by hand.
package shipwatchctl

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	shipwatchcmd "github.com/louisbranch/shipwatch/internal/cmd/shipwatch"
	entrypoint "github.com/louisbranch/shipwatch/internal/platform/cmd"
	apperrors "github.com/louisbranch/shipwatch/internal/platform/errors"
	readiness "github.com/louisbranch/shipwatch/internal/services/readiness/app"
	"github.com/louisbranch/shipwatch/internal/services/readiness/domain"
)

// globalOpts holds flags shared by every subcommand.
type globalOpts struct {
	output string
	remote string
	cfg    shipwatchcmd.Config
}

// NewRootCmd creates the root command. env carries the SHIPWATCH_*
// configuration the service binary would use; persistent flags override it.
func NewRootCmd(env shipwatchcmd.Config) *cobra.Command {
	opts := &globalOpts{output: outputJSON, cfg: env}

	rootCmd := &cobra.Command{
		Use:   entrypoint.ServiceShipwatchCtl,
		Short: "Re-run shipwatch readiness evaluations by hand",
		Long: `shipwatchctl - operator tool for shipwatch

Evaluates projects, forces a notification decision, classifies pushes and
clears idempotency locks against the same state store the service uses.
With --remote, evaluate, notify and push run on a live service instead.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return validateOutput(opts.output)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.output, "output", "o", opts.output, "output format (json or yaml)")
	flags.StringVar(&opts.cfg.CatalogPath, "catalog", opts.cfg.CatalogPath, "project catalog TOML path")
	flags.StringVar(&opts.cfg.StoreBackend, "store", opts.cfg.StoreBackend, "state store backend (sqlite or bbolt)")
	flags.StringVar(&opts.cfg.StorePath, "db-path", opts.cfg.StorePath, "state store file path")
	flags.StringVar(&opts.cfg.Locale, "locale", opts.cfg.Locale, "notification language tag")
	flags.StringVar(&opts.cfg.NotifyURL, "notify-url", opts.cfg.NotifyURL, "notification delivery webhook URL")
	flags.StringVar(&opts.remote, "remote", "", "run evaluate, notify and push on a shipwatch gRPC address instead of the local store")

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(
		newProjectsCmd(opts),
		newEvaluateCmd(opts),
		newNotifyCmd(opts),
		newPushCmd(opts),
		newUnlockCmd(opts),
		newHealthCmd(opts),
	)
	return rootCmd
}

// Execute loads env configuration and runs the command tree with args.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var env shipwatchcmd.Config
	if err := entrypoint.ParseConfig(&env); err != nil {
		return err
	}
	rootCmd := NewRootCmd(env)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceShipwatchCtl, rootCmd.ExecuteContext)
}

// withComponents builds the runtime graph, runs fn and writes its result.
func withComponents(cmd *cobra.Command, opts *globalOpts, fn func(context.Context, *readiness.Components) (any, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	components, err := readiness.Build(ctx, opts.cfg.RuntimeConfig())
	if err != nil {
		return err
	}
	defer components.Close()

	result, err := fn(ctx, components)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), opts.output, result)
}

// withRemote dials the service at opts.remote, runs fn and writes its result.
func withRemote(cmd *cobra.Command, opts *globalOpts, fn func(context.Context, *readiness.Remote) (any, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	remote, err := readiness.DialRemote(opts.remote)
	if err != nil {
		return err
	}
	defer remote.Close()

	result, err := fn(ctx, remote)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), opts.output, result)
}

func lookupProject(ctx context.Context, components *readiness.Components, name string) (domain.Project, error) {
	project, ok := components.Project(ctx, name)
	if !ok {
		return domain.Project{}, apperrors.WithMetadata(apperrors.CodeProjectUnknown, "project not found", map[string]string{"project": name})
	}
	return project, nil
}
