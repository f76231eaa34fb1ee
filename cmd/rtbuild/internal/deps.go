package internal

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goplus/rtbuild/internal/build"
)

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "List the files that trigger a rebuild",
	Long:  `Deps resolves the project layout and scans the include directory without compiling.`,
	Args:  cobra.NoArgs,
	RunE:  runDeps,
}

func init() {
	addLayoutFlags(depsCmd.Flags())
	rootCmd.AddCommand(depsCmd)
}

func runDeps(cmd *cobra.Command, args []string) error {
	res, err := build.NewBuilder(builderOptions(cmd)).Plan(cmd.Context())
	if err != nil {
		return err
	}
	for _, p := range res.Watched {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	return nil
}
