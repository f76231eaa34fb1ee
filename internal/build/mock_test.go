package build

import (
	"context"
	"os"

	"github.com/goplus/rtbuild/internal/toolchain"
)

// mockToolchain implements toolchain.Toolchain for testing.
type mockToolchain struct {
	units []toolchain.Unit
	err   error
}

func (m *mockToolchain) Compile(ctx context.Context, u toolchain.Unit) (*toolchain.Artifact, error) {
	m.units = append(m.units, u)
	if m.err != nil {
		return nil, m.err
	}
	if err := os.MkdirAll(u.OutDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(u.LibraryPath(), []byte("!<arch>\n"), 0o644); err != nil {
		return nil, err
	}
	return &toolchain.Artifact{Name: u.Library, Path: u.LibraryPath(), Dir: u.OutDir}, nil
}
