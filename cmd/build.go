package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/minipack/minipack/internal/builder"
	"github.com/minipack/minipack/internal/logging"
	"github.com/minipack/minipack/internal/stats"
)

type buildCommandParams struct {
	buildParams
	check      bool
	json       bool
	noProgress bool
	watch      bool
}

func init() {
	params := buildCommandParams{buildParams: buildParams{logLevel: logging.Info}}

	build := &cobra.Command{
		Use:   "build",
		Short: "Build one bundle per configured entry",
		Long: `Build resolves every configured entry into its module graph and writes one
bundle per entry to the output directory. Nothing is written if any module
fails to read, resolve, transform or parse.

With --watch, or watch: true in the configuration, the build keeps running and
rebuilds like the watch command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runBuild(ctx, cmd, &params)
		},
	}

	params.addFlags(build.Flags())
	build.Flags().BoolVar(&params.check, "check", false, "compare freshly built assets with the ones on disk instead of writing them")
	build.Flags().BoolVar(&params.json, "json", false, "print build statistics as JSON")
	build.Flags().BoolVar(&params.noProgress, "no-progress", false, "do not render a progress bar")
	build.Flags().BoolVar(&params.watch, "watch", false, "keep rebuilding when files of the build change")

	RootCommand.AddCommand(build)
}

func runBuild(ctx context.Context, cmd *cobra.Command, params *buildCommandParams) error {
	log := params.logger()
	c, root, err := params.compiler(log)
	if err != nil {
		return err
	}

	if params.check {
		diffs, err := c.Check(ctx)
		if err != nil {
			return err
		}
		for _, d := range diffs {
			fmt.Fprint(cmd.OutOrStdout(), d.Diff)
		}
		if len(diffs) > 0 {
			return fmt.Errorf("%d assets differ from the build", len(diffs))
		}
		return nil
	}

	if params.watch || root.Watch {
		return watchBuilds(ctx, log, c, "")
	}

	if !params.noProgress && !params.json {
		c.WithProgress(cmd.ErrOrStderr())
	}

	return c.Run(ctx, func(err error, result *builder.Result, _ []string) {
		if err != nil {
			return
		}
		s := stats.New(result)
		if params.json {
			err = s.WriteJSON(cmd.OutOrStdout())
		} else {
			err = s.WriteTable(cmd.OutOrStdout())
		}
		if err != nil {
			log.Warnf("failed to print build statistics: %v", err)
		}
	})
}
