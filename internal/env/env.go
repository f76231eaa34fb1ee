package env

import (
	"os"
	"path/filepath"
	"strings"
)

// WorkDir returns the per-user working directory, <UserCacheDir>/.rtbuild.
func WorkDir() (string, error) {
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userCacheDir, ".rtbuild"), nil
}

// OutDir returns the directory artifacts are written to. The host build
// tool normally provides it through OUT_DIR; otherwise <WorkDir>/out is used.
// The directory is created with 0700 permissions if it doesn't exist.
func OutDir() (string, error) {
	dir := os.Getenv("OUT_DIR")
	if dir == "" {
		workDir, err := WorkDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(workDir, "out")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

// Tools describes the native toolchain selected by the environment.
type Tools struct {
	CC       string   // C compiler driver, $CC or "cc"
	AR       string   // archiver, $AR or "ar"
	CFlags   []string // extra compiler flags from $CFLAGS
	OptLevel string   // $OPT_LEVEL, empty if unset
	Debug    bool     // $DEBUG is "true" or "1"
	Target   string   // $TARGET, empty for the host
}

// ToolsFromEnv reads the toolchain selection from the process environment.
func ToolsFromEnv() Tools {
	t := Tools{
		CC:       lookup("CC", "cc"),
		AR:       lookup("AR", "ar"),
		CFlags:   strings.Fields(os.Getenv("CFLAGS")),
		OptLevel: os.Getenv("OPT_LEVEL"),
		Target:   os.Getenv("TARGET"),
	}
	switch os.Getenv("DEBUG") {
	case "true", "1":
		t.Debug = true
	}
	return t
}

func lookup(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
