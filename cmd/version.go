package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version is set at link time with -ldflags "-X github.com/minipack/minipack/cmd.Version=...".
var Version = ""

func version() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}

func init() {
	RootCommand.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version of minipack",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "minipack %s %s/%s (%s)\n", version(), runtime.GOOS, runtime.GOARCH, runtime.Version())
		},
	})
}
