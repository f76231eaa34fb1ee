package internal

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/goplus/rtbuild/internal/build"
	"github.com/goplus/rtbuild/internal/config"
	"github.com/goplus/rtbuild/internal/report"
)

var (
	buildOutDir       string
	buildStubLocation string
	buildStub         string
	buildLib          string
	buildRecursive    bool
	buildPrefix       string
	buildSeparator    string
	buildNoLink       bool
	buildMinCCVersion string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Compile the stub source into a static library",
	Long: `Build resolves the project layout, reports every header in the include
directory as a rebuild trigger and compiles the stub source into lib<name>.a.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	flags := buildCmd.Flags()
	flags.StringVarP(&buildOutDir, "out-dir", "o", "", "Output directory (default: $OUT_DIR)")
	addLayoutFlags(flags)
	flags.StringVar(&buildLib, "lib", config.DefaultLibrary, "Name of the static library")
	flags.StringVar(&buildPrefix, "prefix", report.DefaultPrefix, "Prefix of the directives written to stdout")
	flags.StringVar(&buildSeparator, "separator", "=", "Separator between a directive and its value")
	flags.BoolVar(&buildNoLink, "no-link", false, "Do not write link directives")
	flags.StringVar(&buildMinCCVersion, "min-cc-version", "", "Minimum compiler version (compared against -dumpversion)")
	rootCmd.AddCommand(buildCmd)
}

// addLayoutFlags registers the flags shared by the commands that resolve the layout.
func addLayoutFlags(flags *pflag.FlagSet) {
	flags.StringVar(&buildStubLocation, "stub-location", "project", `Root the stub source is relative to: "project" or "component"`)
	flags.StringVar(&buildStub, "stub", "", "Stub source path, relative to the stub location root")
	flags.BoolVarP(&buildRecursive, "recursive", "r", false, "Watch headers in subdirectories of the include directory")
}

func runBuild(cmd *cobra.Command, args []string) error {
	b := build.NewBuilder(builderOptions(cmd))
	_, err := b.Run(cmd.Context())
	return err
}

func builderOptions(cmd *cobra.Command) build.Options {
	return build.Options{
		StartDir:   startDir,
		ConfigFile: configFile,
		Overrides:  overrides(cmd.Flags()),
		OutDir:     buildOutDir,
		Meta:       cmd.OutOrStdout(),
		Diag:       cmd.ErrOrStderr(),
	}
}

// overrides returns the settings given explicitly on the command line.
// Flags left at their default do not override the config file.
func overrides(flags *pflag.FlagSet) *config.Settings {
	s := &config.Settings{}
	str := func(name string, v string) *string {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			return nil
		}
		return &v
	}
	boolean := func(name string, v bool) *bool {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			return nil
		}
		return &v
	}
	s.StubLocation = str("stub-location", buildStubLocation)
	s.Stub = str("stub", buildStub)
	s.Library = str("lib", buildLib)
	s.Recursive = boolean("recursive", buildRecursive)
	s.Prefix = str("prefix", buildPrefix)
	s.Separator = str("separator", buildSeparator)
	s.MinCCVersion = str("min-cc-version", buildMinCCVersion)
	if v := boolean("no-link", buildNoLink); v != nil {
		link := !*v
		s.LinkDirectives = &link
	}
	return s
}
