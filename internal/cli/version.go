package cli

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/rshade/ghgfocus/pkg/version"
)

// newVersionCmd creates the version command.
func newVersionCmd(ver string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ghgfocus version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Printf("ghgfocus %s\n", ver)
			if commit := version.GetCommit(); commit != "" {
				cmd.Printf("commit: %s\n", commit)
			}
			cmd.Printf("go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
