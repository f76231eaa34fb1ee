package toolchain

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goplus/rtbuild/internal/env"
)

func TestUnitValidate(t *testing.T) {
	ok := Unit{Source: "/p/src/rt.c", IncludeDir: "/p/include", Library: "rt", OutDir: "/out"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	for name, u := range map[string]Unit{
		"no source":  {Library: "rt", OutDir: "/out"},
		"no out dir": {Source: "rt.c", Library: "rt"},
		"no library": {Source: "rt.c", OutDir: "/out"},
		"separator":  {Source: "rt.c", Library: "a/b", OutDir: "/out"},
		"dotdot":     {Source: "rt.c", Library: "..", OutDir: "/out"},
	} {
		if err := u.Validate(); err == nil {
			t.Errorf("%s: Validate() = nil, want error", name)
		}
	}
}

func TestUnitPaths(t *testing.T) {
	u := Unit{Source: filepath.Join("p", "src", "rt.c"), Library: "rt", OutDir: "out"}
	if got, want := u.ObjectPath(), filepath.Join("out", "rt-rt.o"); got != want {
		t.Errorf("ObjectPath() = %q, want %q", got, want)
	}
	if got, want := u.LibraryPath(), filepath.Join("out", "librt.a"); got != want {
		t.Errorf("LibraryPath() = %q, want %q", got, want)
	}
}

func TestCompileArgs(t *testing.T) {
	u := Unit{Source: "/p/src/rt.c", IncludeDir: "/p/include", Library: "rt", OutDir: "/out"}

	tests := []struct {
		name  string
		tools env.Tools
		goos  string
		want  []string
	}{
		{
			name:  "defaults",
			tools: env.Tools{CC: "cc", AR: "ar"},
			goos:  "linux",
			want:  []string{"-fPIC", "-I", "/p/include", "-c", "/p/src/rt.c", "-o", u.ObjectPath()},
		},
		{
			name:  "windows has no fPIC",
			tools: env.Tools{CC: "gcc", AR: "ar"},
			goos:  "windows",
			want:  []string{"-I", "/p/include", "-c", "/p/src/rt.c", "-o", u.ObjectPath()},
		},
		{
			name:  "opt debug cflags",
			tools: env.Tools{CC: "cc", OptLevel: "2", Debug: true, CFlags: []string{"-Wall"}},
			goos:  "linux",
			want:  []string{"-fPIC", "-O2", "-g", "-Wall", "-I", "/p/include", "-c", "/p/src/rt.c", "-o", u.ObjectPath()},
		},
		{
			name:  "size opt",
			tools: env.Tools{CC: "cc", OptLevel: "z"},
			goos:  "darwin",
			want:  []string{"-fPIC", "-Os", "-I", "/p/include", "-c", "/p/src/rt.c", "-o", u.ObjectPath()},
		},
		{
			name:  "clang target",
			tools: env.Tools{CC: "/usr/bin/clang-17", Target: "aarch64-unknown-linux-gnu"},
			goos:  "linux",
			want:  []string{"-fPIC", "--target=aarch64-unknown-linux-gnu", "-I", "/p/include", "-c", "/p/src/rt.c", "-o", u.ObjectPath()},
		},
		{
			name:  "gcc ignores target",
			tools: env.Tools{CC: "gcc", Target: "aarch64-unknown-linux-gnu"},
			goos:  "linux",
			want:  []string{"-fPIC", "-I", "/p/include", "-c", "/p/src/rt.c", "-o", u.ObjectPath()},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.tools, WithGOOS(tt.goos)).CompileArgs(u)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("CompileArgs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompileErrorMessage(t *testing.T) {
	err := &CompileError{
		Step:    StepCompile,
		Command: []string{"cc", "-c", "rt.c"},
		Output:  "rt.c:1:1: error: expected ';'\n",
		Err:     errors.New("exit status 1"),
	}
	msg := err.Error()
	for _, want := range []string{"compile failed", "cc -c rt.c", "exit status 1", "rt.c:1:1: error: expected ';'"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestCompileInvalidUnit(t *testing.T) {
	_, err := New(env.Tools{CC: "cc", AR: "ar"}).Compile(context.Background(), Unit{})
	var cerr *CompileError
	if !errors.As(err, &cerr) || cerr.Step != StepConfigure {
		t.Fatalf("expected configure *CompileError, got %v", err)
	}
}

func TestCompileMissingCompiler(t *testing.T) {
	tmp := t.TempDir()
	u := Unit{Source: filepath.Join(tmp, "rt.c"), Library: "rt", OutDir: filepath.Join(tmp, "out")}
	tools := env.Tools{CC: filepath.Join(tmp, "no-such-cc"), AR: "ar"}

	// Outputs of an earlier build.
	if err := os.MkdirAll(u.OutDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{u.LibraryPath(), u.ObjectPath()} {
		if err := os.WriteFile(f, []byte("old"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	_, err := New(tools).Compile(context.Background(), u)
	var cerr *CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *CompileError, got %T: %v", err, err)
	}
	if cerr.Step != StepCompile {
		t.Errorf("Step = %q, want %q", cerr.Step, StepCompile)
	}
	for _, f := range []string{u.LibraryPath(), u.ObjectPath()} {
		if _, err := os.Stat(f); !os.IsNotExist(err) {
			t.Errorf("%s should not exist, stat err = %v", f, err)
		}
	}
}

func requireTools(t *testing.T) env.Tools {
	t.Helper()
	tools := env.ToolsFromEnv()
	if _, err := exec.LookPath(tools.CC); err != nil {
		t.Skipf("%s not found in PATH", tools.CC)
	}
	if _, err := exec.LookPath(tools.AR); err != nil {
		t.Skipf("%s not found in PATH", tools.AR)
	}
	return tools
}

func writeProject(t *testing.T, src string) Unit {
	t.Helper()
	tmp := t.TempDir()
	include := filepath.Join(tmp, "include")
	if err := os.MkdirAll(include, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(include, "rt.h"), []byte("int rt_answer(void);\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	source := filepath.Join(tmp, "rt.c")
	if err := os.WriteFile(source, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return Unit{Source: source, IncludeDir: include, Library: "rt", OutDir: filepath.Join(tmp, "out")}
}

func TestCompileE2E(t *testing.T) {
	tools := requireTools(t)
	u := writeProject(t, "#include \"rt.h\"\nint rt_answer(void) { return 42; }\n")

	art, err := New(tools).Compile(context.Background(), u)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if art.Name != "rt" || art.Dir != u.OutDir || art.Path != u.LibraryPath() {
		t.Errorf("unexpected artifact: %+v", art)
	}
	if _, err := os.Stat(art.Path); err != nil {
		t.Fatalf("library missing: %v", err)
	}

	// A second build replaces the archive instead of appending to it.
	if _, err := New(tools).Compile(context.Background(), u); err != nil {
		t.Fatalf("second Compile failed: %v", err)
	}
}

func TestCompileSyntaxError(t *testing.T) {
	tools := requireTools(t)
	u := writeProject(t, "#include \"rt.h\"\nint rt_answer(void) { return 42 }\n")

	_, err := New(tools).Compile(context.Background(), u)
	var cerr *CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *CompileError, got %T: %v", err, err)
	}
	if cerr.Step != StepCompile {
		t.Errorf("Step = %q, want %q", cerr.Step, StepCompile)
	}
	if !strings.Contains(cerr.Output, "rt.c") {
		t.Errorf("Output should carry the compiler diagnostic, got %q", cerr.Output)
	}
	if _, err := os.Stat(u.LibraryPath()); !os.IsNotExist(err) {
		t.Errorf("library should not exist, stat err = %v", err)
	}
}

func TestCompileMissingHeader(t *testing.T) {
	tools := requireTools(t)
	u := writeProject(t, "#include \"missing.h\"\nint x;\n")

	_, err := New(tools).Compile(context.Background(), u)
	var cerr *CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *CompileError, got %T: %v", err, err)
	}
	if !strings.Contains(cerr.Output, "missing.h") {
		t.Errorf("Output = %q, want mention of missing.h", cerr.Output)
	}
}

func TestCompileMinVersion(t *testing.T) {
	tools := requireTools(t)
	u := writeProject(t, "int rt_answer(void) { return 42; }\n")

	_, err := New(tools, WithMinVersion("999")).Compile(context.Background(), u)
	var cerr *CompileError
	if !errors.As(err, &cerr) || cerr.Step != StepVersion {
		t.Fatalf("expected version *CompileError, got %v", err)
	}

	_, err = New(tools, WithMinVersion("not-a-version")).Compile(context.Background(), u)
	if !errors.As(err, &cerr) || cerr.Step != StepVersion {
		t.Fatalf("expected version *CompileError, got %v", err)
	}
}

func TestCompileFailureRemovesPreviousArtifact(t *testing.T) {
	tools := requireTools(t)
	u := writeProject(t, "int rt_answer(void) { return 42; }\n")

	if _, err := New(tools).Compile(context.Background(), u); err != nil {
		t.Fatalf("first Compile failed: %v", err)
	}
	if err := os.WriteFile(u.Source, []byte("int rt_answer(void) { return 42 }\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := New(tools).Compile(context.Background(), u)
	var cerr *CompileError
	if !errors.As(err, &cerr) || cerr.Step != StepCompile {
		t.Fatalf("expected compile *CompileError, got %v", err)
	}
	for _, f := range []string{u.LibraryPath(), u.ObjectPath()} {
		if _, err := os.Stat(f); !os.IsNotExist(err) {
			t.Errorf("%s left over from the previous build, stat err = %v", f, err)
		}
	}
}
