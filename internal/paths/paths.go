// Package paths locates the component and project roots of a build and
// derives the stub source and include directory from them.
//
// Layout assumed on disk:
//
//	<project-root>/
//	  include/          # headers, flat
//	  src/rt.c          # stub source, ProjectShared
//	  <component>/      # the component being built
//	    go.mod          # build descriptor
//	    interface/stub.c  # stub source, ComponentLocal
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"
)

// IncludeDirName is the include directory, always directly under the project root.
const IncludeDirName = "include"

// DefaultDescriptors are the build descriptors that mark a component root.
var DefaultDescriptors = []string{"go.mod", "Cargo.toml"}

var (
	// ErrNoDescriptor is reported when no build descriptor is found between
	// the start directory and the filesystem root.
	ErrNoDescriptor = errors.New("no build descriptor found")

	// ErrNoParent is reported when the component root has no parent.
	ErrNoParent = errors.New("component root has no parent directory")
)

// ResolutionError reports that the project or component root could not be
// determined.
type ResolutionError struct {
	Path string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve project root from %s: %v", e.Path, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// StubLocation selects which root the stub source is relative to.
type StubLocation int

const (
	// ProjectShared places the stub under the project root (src/rt.c).
	ProjectShared StubLocation = iota
	// ComponentLocal places the stub inside the component (interface/stub.c).
	ComponentLocal
)

func (l StubLocation) String() string {
	switch l {
	case ProjectShared:
		return "project"
	case ComponentLocal:
		return "component"
	}
	return fmt.Sprintf("StubLocation(%d)", int(l))
}

// DefaultStub returns the stub source path used when none is configured.
func (l StubLocation) DefaultStub() string {
	if l == ComponentLocal {
		return filepath.Join("interface", "stub.c")
	}
	return filepath.Join("src", "rt.c")
}

// ParseStubLocation parses "project" or "component".
func ParseStubLocation(s string) (StubLocation, error) {
	switch s {
	case "project":
		return ProjectShared, nil
	case "component":
		return ComponentLocal, nil
	}
	return 0, fmt.Errorf("invalid stub location %q, want \"project\" or \"component\"", s)
}

// Options controls Resolve.
type Options struct {
	StartDir    string   // defaults to the working directory
	Descriptors []string // defaults to DefaultDescriptors
	Location    StubLocation
	Stub        string // relative to the root chosen by Location; defaults to Location.DefaultStub()
}

// Layout is the set of paths one build works with.
type Layout struct {
	ComponentRoot string
	ProjectRoot   string
	Descriptor    string // path of the build descriptor found
	ComponentName string // module path from go.mod, otherwise the directory name
	SourceFile    string
	IncludeDir    string
}

// Resolve finds the component root and the project root one level above it,
// then derives the source file and include directory. Neither the source file
// nor the include directory is touched.
func Resolve(opts Options) (*Layout, error) {
	start := opts.StartDir
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, &ResolutionError{Path: ".", Err: err}
		}
		start = wd
	}
	start, err := filepath.Abs(start)
	if err != nil {
		return nil, &ResolutionError{Path: opts.StartDir, Err: err}
	}

	names := opts.Descriptors
	if len(names) == 0 {
		names = DefaultDescriptors
	}
	componentRoot, descriptor, err := FindComponentRoot(start, names)
	if err != nil {
		return nil, &ResolutionError{Path: start, Err: err}
	}

	projectRoot := filepath.Dir(componentRoot)
	if projectRoot == componentRoot {
		return nil, &ResolutionError{Path: componentRoot, Err: ErrNoParent}
	}

	name, err := componentName(descriptor)
	if err != nil {
		return nil, &ResolutionError{Path: descriptor, Err: err}
	}

	layout := &Layout{
		ComponentRoot: componentRoot,
		ProjectRoot:   projectRoot,
		Descriptor:    descriptor,
		ComponentName: name,
		IncludeDir:    filepath.Join(projectRoot, IncludeDirName),
	}
	if err := layout.SetStub(opts.Location, opts.Stub); err != nil {
		return nil, err
	}
	return layout, nil
}

// SetStub recomputes SourceFile for the given location. An empty stub selects
// loc.DefaultStub().
func (l *Layout) SetStub(loc StubLocation, stub string) error {
	if stub == "" {
		stub = loc.DefaultStub()
	}
	if !filepath.IsLocal(stub) {
		return &ResolutionError{Path: stub, Err: errors.New("stub path must be relative and stay inside its root")}
	}
	base := l.ProjectRoot
	if loc == ComponentLocal {
		base = l.ComponentRoot
	}
	l.SourceFile = filepath.Join(base, stub)
	return nil
}

// FindComponentRoot walks upward from start to the first directory that
// contains one of the descriptor names. It returns that directory and the
// descriptor's path.
func FindComponentRoot(start string, names []string) (dir, descriptor string, err error) {
	dir = start
	for {
		for _, name := range names {
			p := filepath.Join(dir, name)
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return dir, p, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", "", ErrNoDescriptor
		}
		dir = parent
	}
}

// componentName reads the module path out of a go.mod descriptor. Other
// descriptors are named after their directory.
func componentName(descriptor string) (string, error) {
	if filepath.Base(descriptor) != "go.mod" {
		return filepath.Base(filepath.Dir(descriptor)), nil
	}
	data, err := os.ReadFile(descriptor)
	if err != nil {
		return "", err
	}
	f, err := modfile.ParseLax(descriptor, data, nil)
	if err != nil {
		return "", err
	}
	if f.Module == nil {
		return "", fmt.Errorf("%s: no module directive", descriptor)
	}
	return f.Module.Mod.Path, nil
}
