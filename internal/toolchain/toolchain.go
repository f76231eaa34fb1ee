// Package toolchain drives the native C compiler and archiver that turn the
// stub source into a static library.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Unit describes one compilation: a single source file, a single include
// search path and the name of the library to produce.
type Unit struct {
	Source     string
	IncludeDir string
	Library    string // "rt" produces librt.a
	OutDir     string
}

// Validate checks the descriptor before any tool runs.
func (u Unit) Validate() error {
	if u.Source == "" {
		return errors.New("no source file")
	}
	if u.OutDir == "" {
		return errors.New("no output directory")
	}
	if u.Library == "" || strings.ContainsAny(u.Library, `/\`) || u.Library == "." || u.Library == ".." {
		return fmt.Errorf("invalid library name %q", u.Library)
	}
	return nil
}

// ObjectPath returns where the object file for u is written.
func (u Unit) ObjectPath() string {
	base := strings.TrimSuffix(filepath.Base(u.Source), filepath.Ext(u.Source))
	return filepath.Join(u.OutDir, u.Library+"-"+base+".o")
}

// LibraryPath returns where the static library for u is written.
func (u Unit) LibraryPath() string {
	return filepath.Join(u.OutDir, "lib"+u.Library+".a")
}

// Artifact is a static library produced by a Toolchain.
type Artifact struct {
	Name string // library name as passed to the linker
	Path string // path of the archive
	Dir  string // directory to add to the link search path
}

// Toolchain compiles a Unit into a static library. Compile blocks until the
// toolchain finishes; there is no retry and no partial artifact on failure.
type Toolchain interface {
	Compile(ctx context.Context, u Unit) (*Artifact, error)
}

// Step names the toolchain invocation that failed.
type Step string

const (
	StepConfigure Step = "configure"
	StepVersion   Step = "version"
	StepCompile   Step = "compile"
	StepArchive   Step = "archive"
)

// CompileError reports a failed toolchain invocation. Output holds the
// tool's diagnostics verbatim.
type CompileError struct {
	Step    Step
	Command []string
	Output  string
	Err     error
}

func (e *CompileError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed", e.Step)
	if len(e.Command) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(e.Command, " "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		b.WriteString("\n")
		b.WriteString(out)
	}
	return b.String()
}

func (e *CompileError) Unwrap() error { return e.Err }

func removeStale(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
