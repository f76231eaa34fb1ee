package build

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/goplus/rtbuild/internal/toolchain"
)

// Output directory layout:
//
//	outDir/
//	  lib<name>.a               # the artifact
//	  <name>-<source>.o         # its single object
//	  <name>.manifest.json      # what was built from what
//
// The manifest is informational. Builds never read it back: whether to
// rebuild is decided by the host build tool from the rebuild triggers.
const manifestSuffix = ".manifest.json"

type manifest struct {
	Component  string    `json:"component"`
	Library    string    `json:"library"`
	Artifact   string    `json:"artifact"`
	Source     string    `json:"source"`
	IncludeDir string    `json:"include_dir"`
	Watched    []string  `json:"watched"`
	BuildTime  time.Time `json:"build_time"`
}

func newManifest(res *Result) *manifest {
	return &manifest{
		Component:  res.Layout.ComponentName,
		Library:    res.Artifact.Name,
		Artifact:   res.Artifact.Path,
		Source:     res.Layout.SourceFile,
		IncludeDir: res.Layout.IncludeDir,
		Watched:    res.Watched,
		BuildTime:  time.Now(),
	}
}

func manifestPath(art *toolchain.Artifact) string {
	return filepath.Join(art.Dir, art.Name+manifestSuffix)
}

// removeManifest deletes the manifest of an earlier build of library, so a
// failed build leaves no description of an artifact that no longer exists.
func removeManifest(outDir, library string) error {
	err := os.Remove(filepath.Join(outDir, library+manifestSuffix))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func writeManifest(path string, m *manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
