package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/goplus/rtbuild/internal/ctxlog"
	"github.com/goplus/rtbuild/internal/env"
)

// CC drives a gcc/clang compatible compiler and an ar compatible archiver.
type CC struct {
	tools      env.Tools
	goos       string
	minVersion string
}

var _ Toolchain = (*CC)(nil)

// Option configures CC.
type Option func(*CC)

// WithMinVersion rejects compilers whose -dumpversion is older than v
// (e.g. "9" or "11.2").
func WithMinVersion(v string) Option {
	return func(c *CC) {
		c.minVersion = v
	}
}

// WithGOOS overrides the operating system the flag policy is chosen for.
func WithGOOS(goos string) Option {
	return func(c *CC) {
		c.goos = goos
	}
}

// New returns a CC using the given tools.
func New(tools env.Tools, opts ...Option) *CC {
	c := &CC{tools: tools, goos: runtime.GOOS}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile runs the object and archive steps for u.
func (c *CC) Compile(ctx context.Context, u Unit) (*Artifact, error) {
	if err := u.Validate(); err != nil {
		return nil, &CompileError{Step: StepConfigure, Err: err}
	}
	if c.minVersion != "" {
		if err := c.checkVersion(ctx); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(u.OutDir, 0o755); err != nil {
		return nil, &CompileError{Step: StepConfigure, Err: err}
	}

	// Outputs of an earlier build must not survive a failed one.
	obj, lib := u.ObjectPath(), u.LibraryPath()
	for _, p := range []string{lib, obj} {
		if err := removeStale(p); err != nil {
			return nil, &CompileError{Step: StepConfigure, Err: err}
		}
	}

	if _, err := c.run(ctx, StepCompile, c.tools.CC, c.CompileArgs(u)...); err != nil {
		return nil, err
	}
	if _, err := c.run(ctx, StepArchive, c.tools.AR, "crs", lib, obj); err != nil {
		return nil, err
	}
	if _, err := os.Stat(lib); err != nil {
		return nil, &CompileError{Step: StepArchive, Err: fmt.Errorf("archive not produced: %w", err)}
	}

	return &Artifact{Name: u.Library, Path: lib, Dir: u.OutDir}, nil
}

// CompileArgs returns the compiler arguments for the object step. Everything
// besides the source, include path and output comes from the environment's
// defaults policy.
func (c *CC) CompileArgs(u Unit) []string {
	var args []string
	if c.goos != "windows" {
		args = append(args, "-fPIC")
	}
	switch lvl := c.tools.OptLevel; lvl {
	case "":
	case "s", "z":
		args = append(args, "-Os")
	default:
		args = append(args, "-O"+lvl)
	}
	if c.tools.Debug {
		args = append(args, "-g")
	}
	if c.tools.Target != "" && strings.Contains(filepath.Base(c.tools.CC), "clang") {
		args = append(args, "--target="+c.tools.Target)
	}
	args = append(args, c.tools.CFlags...)
	if u.IncludeDir != "" {
		args = append(args, "-I", u.IncludeDir)
	}
	return append(args, "-c", u.Source, "-o", u.ObjectPath())
}

// Version returns the compiler's -dumpversion output.
func (c *CC) Version(ctx context.Context) (string, error) {
	out, err := c.run(ctx, StepVersion, c.tools.CC, "-dumpversion")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (c *CC) checkVersion(ctx context.Context) error {
	want := "v" + strings.TrimPrefix(c.minVersion, "v")
	if !semver.IsValid(want) {
		return &CompileError{Step: StepVersion, Err: fmt.Errorf("invalid minimum compiler version %q", c.minVersion)}
	}
	got, err := c.Version(ctx)
	if err != nil {
		return err
	}
	v := "v" + got
	if !semver.IsValid(v) {
		return &CompileError{Step: StepVersion, Err: fmt.Errorf("cannot parse compiler version %q", got)}
	}
	if semver.Compare(v, want) < 0 {
		return &CompileError{
			Step: StepVersion,
			Err:  fmt.Errorf("%s version %s is older than required %s", c.tools.CC, got, c.minVersion),
		}
	}
	return nil
}

// run executes bin and returns its stdout. On failure the combined
// diagnostics are kept in the returned *CompileError.
func (c *CC) run(ctx context.Context, step Step, bin string, args ...string) (string, error) {
	logger := ctxlog.FromContext(ctx)
	command := append([]string{bin}, args...)
	logger.Debug("running toolchain", "step", string(step), "command", strings.Join(command, " "))

	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &CompileError{
			Step:    step,
			Command: command,
			Output:  stderr.String() + stdout.String(),
			Err:     err,
		}
	}
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		logger.Warn("toolchain diagnostics", "step", string(step), "output", msg)
	}
	return stdout.String(), nil
}
