package internal

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/goplus/rtbuild/internal/ctxlog"
	"github.com/goplus/rtbuild/internal/report"
)

var (
	logLevel   string
	logFormat  string
	startDir   string
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "rtbuild",
	Short: "rtbuild compiles a C runtime stub into a static library",
	Long: `rtbuild is a build step that compiles a single C source file against the
project's include directory into a static library, and tells the host build
tool which files should trigger a rebuild.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger := ctxlog.New(logLevel, logFormat, os.Stderr)
		cmd.SetContext(ctxlog.WithLogger(cmd.Context(), logger))
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	flags.StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	flags.StringVarP(&startDir, "dir", "C", "", "Directory to start the component root search from (default: working directory)")
	flags.StringVar(&configFile, "config", "", "Config file (default: rtbuild.hcl in the component root, if present)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// Any error is written to the diagnostic channel and the process exits 1.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		report.New(os.Stdout, os.Stderr).Fatal(err)
		os.Exit(1)
	}
}
