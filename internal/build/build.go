// Package build runs one build invocation: resolve paths, scan headers,
// compile. Each stage's output is the precondition of the next and any
// failure ends the invocation.
package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goplus/rtbuild/internal/config"
	"github.com/goplus/rtbuild/internal/ctxlog"
	"github.com/goplus/rtbuild/internal/env"
	"github.com/goplus/rtbuild/internal/paths"
	"github.com/goplus/rtbuild/internal/report"
	"github.com/goplus/rtbuild/internal/scan"
	"github.com/goplus/rtbuild/internal/toolchain"
)

// Stage identifies a step of the build.
type Stage string

const (
	StageResolvePaths Stage = "resolve paths"
	StageScanHeaders  Stage = "scan headers"
	StageCompile      Stage = "compile"
)

// StageError wraps the error that ended a build with the stage it ended in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Options configures a Builder.
type Options struct {
	// StartDir is where the component root search starts; defaults to the
	// working directory.
	StartDir string

	// Descriptors overrides paths.DefaultDescriptors.
	Descriptors []string

	// ConfigFile is an explicit config file. When empty, rtbuild.hcl in the
	// component root is used if present.
	ConfigFile string

	// Overrides are applied on top of the config file.
	Overrides *config.Settings

	// OutDir receives the artifact; defaults to env.OutDir().
	OutDir string

	// Toolchain compiles the unit; defaults to a toolchain.CC configured
	// from the environment.
	Toolchain toolchain.Toolchain

	// Meta and Diag are the metadata and diagnostic channels; default to
	// os.Stdout and os.Stderr.
	Meta io.Writer
	Diag io.Writer
}

// Result describes a build.
type Result struct {
	Layout     *paths.Layout
	Config     config.Config
	ConfigFile string   // config file that was loaded, empty if none
	Headers    []string // entries of the include directory
	Watched    []string // every path reported as a rebuild trigger
	Artifact   *toolchain.Artifact
}

// Builder runs builds. A Builder holds no state between runs.
type Builder struct {
	opts Options
}

// NewBuilder creates a Builder.
func NewBuilder(opts Options) *Builder {
	if opts.Meta == nil {
		opts.Meta = os.Stdout
	}
	if opts.Diag == nil {
		opts.Diag = os.Stderr
	}
	return &Builder{opts: opts}
}

// Run performs a full build. Rebuild triggers for the source and headers are
// written before compilation starts, so they remain visible to the host
// build tool when compilation fails.
func (b *Builder) Run(ctx context.Context) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	res, err := b.resolve(ctx)
	if err != nil {
		return nil, err
	}
	rep := report.New(b.opts.Meta, b.opts.Diag,
		report.WithPrefix(res.Config.Prefix),
		report.WithSeparator(res.Config.Separator))
	for _, p := range res.Watched {
		rep.RerunIfChanged(p)
	}

	if err := b.scan(ctx, res); err != nil {
		return nil, err
	}
	for _, h := range res.Headers {
		rep.RerunIfChanged(h)
	}

	art, err := b.compile(ctx, res)
	if err != nil {
		return nil, err
	}
	res.Artifact = art

	if res.Config.LinkDirectives {
		rep.LinkSearch(art.Dir)
		rep.LinkLib(art.Name)
	}
	if err := writeManifest(manifestPath(art), newManifest(res)); err != nil {
		logger.Warn("failed to write build manifest", "error", err)
	}
	rep.Notice("Rebuilt `%s` library...", filepath.Base(res.Layout.SourceFile))
	logger.Info("build finished", "artifact", art.Path)
	return res, nil
}

// Plan resolves paths and scans headers without compiling or reporting.
// Its Watched list is what Run would report as rebuild triggers.
func (b *Builder) Plan(ctx context.Context) (*Result, error) {
	res, err := b.resolve(ctx)
	if err != nil {
		return nil, err
	}
	if err := b.scan(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (b *Builder) resolve(ctx context.Context) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	fail := func(err error) (*Result, error) {
		return nil, &StageError{Stage: StageResolvePaths, Err: err}
	}

	layout, err := paths.Resolve(paths.Options{
		StartDir:    b.opts.StartDir,
		Descriptors: b.opts.Descriptors,
	})
	if err != nil {
		return fail(err)
	}

	cfg := config.Default()
	configFile := b.opts.ConfigFile
	if configFile == "" {
		configFile = filepath.Join(layout.ComponentRoot, config.FileName)
	}
	settings, err := config.Load(configFile, config.Vars(layout))
	switch {
	case err == nil:
		logger.Debug("loaded config", "file", configFile)
	case os.IsNotExist(err) && b.opts.ConfigFile == "":
		configFile = ""
	default:
		return fail(err)
	}
	if err := cfg.Apply(settings); err != nil {
		return fail(fmt.Errorf("%s: %w", configFile, err))
	}
	if err := cfg.Apply(b.opts.Overrides); err != nil {
		return fail(err)
	}
	if err := layout.SetStub(cfg.StubLocation, cfg.Stub); err != nil {
		return fail(err)
	}

	watched := []string{layout.SourceFile}
	if configFile != "" {
		watched = append(watched, configFile)
	}
	for _, p := range watched {
		if err := scan.CheckEncodable(p); err != nil {
			return fail(err)
		}
	}

	logger.Debug("resolved paths",
		"component", layout.ComponentName,
		"project_root", layout.ProjectRoot,
		"source", layout.SourceFile,
		"include", layout.IncludeDir)
	return &Result{
		Layout:     layout,
		Config:     cfg,
		ConfigFile: configFile,
		Watched:    watched,
	}, nil
}

func (b *Builder) scan(ctx context.Context, res *Result) error {
	headers, err := scan.Headers(ctx, res.Layout.IncludeDir, scan.Options{Recursive: res.Config.Recursive})
	if err != nil {
		return &StageError{Stage: StageScanHeaders, Err: err}
	}
	res.Headers = headers
	res.Watched = append(res.Watched, headers...)
	return nil
}

func (b *Builder) compile(ctx context.Context, res *Result) (*toolchain.Artifact, error) {
	fail := func(err error) (*toolchain.Artifact, error) {
		return nil, &StageError{Stage: StageCompile, Err: err}
	}

	outDir := b.opts.OutDir
	if outDir == "" {
		dir, err := env.OutDir()
		if err != nil {
			return fail(fmt.Errorf("failed to get output dir: %w", err))
		}
		outDir = dir
	}
	if err := removeManifest(outDir, res.Config.Library); err != nil {
		return fail(err)
	}

	tc := b.opts.Toolchain
	if tc == nil {
		var opts []toolchain.Option
		if res.Config.MinCCVersion != "" {
			opts = append(opts, toolchain.WithMinVersion(res.Config.MinCCVersion))
		}
		tc = toolchain.New(env.ToolsFromEnv(), opts...)
	}

	unit := toolchain.Unit{
		Source:     res.Layout.SourceFile,
		IncludeDir: res.Layout.IncludeDir,
		Library:    res.Config.Library,
		OutDir:     outDir,
	}
	art, err := tc.Compile(ctx, unit)
	if err != nil {
		return fail(err)
	}
	return art, nil
}
