// Package scan enumerates the files under the include directory that the
// host build must watch.
package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/goplus/rtbuild/internal/ctxlog"
)

// DirectoryReadError reports that the include directory could not be opened
// or listed.
type DirectoryReadError struct {
	Dir string
	Err error
}

func (e *DirectoryReadError) Error() string {
	return fmt.Sprintf("read include directory %s: %v", e.Dir, e.Err)
}

func (e *DirectoryReadError) Unwrap() error { return e.Err }

// EncodingError reports a path that cannot be written as a rebuild trigger.
type EncodingError struct {
	Path string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("path %q cannot be represented as a rebuild trigger", e.Path)
}

// Options controls Headers.
type Options struct {
	// Recursive descends into subdirectories. Off by default: only direct
	// children of the include directory are reported.
	Recursive bool
}

// Headers lists the entries of dir. The result is sorted and free of
// duplicates. Entries whose metadata cannot be read are skipped; a directory
// that cannot be listed is a *DirectoryReadError, and a path that cannot be
// encoded is an *EncodingError.
func Headers(ctx context.Context, dir string, opts Options) ([]string, error) {
	logger := ctxlog.FromContext(ctx)

	entries, err := readDir(dir)
	if err != nil {
		return nil, &DirectoryReadError{Dir: dir, Err: err}
	}

	seen := make(map[string]struct{}, len(entries))
	var walk func(dir string, entries []os.DirEntry) error
	walk = func(dir string, entries []os.DirEntry) error {
		for _, entry := range entries {
			p := filepath.Join(dir, entry.Name())
			if _, err := lstat(p); err != nil {
				logger.Debug("skipping unreadable entry", "path", p, "error", err)
				continue
			}
			if err := CheckEncodable(p); err != nil {
				return err
			}
			seen[p] = struct{}{}

			if !opts.Recursive || !entry.IsDir() {
				continue
			}
			children, err := readDir(p)
			if err != nil {
				logger.Warn("skipping unreadable subdirectory", "path", p, "error", err)
				continue
			}
			if err := walk(p, children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(dir, entries); err != nil {
		return nil, err
	}

	headers := make([]string, 0, len(seen))
	for p := range seen {
		headers = append(headers, p)
	}
	sort.Strings(headers)
	logger.Debug("scanned include directory", "dir", dir, "count", len(headers), "recursive", opts.Recursive)
	return headers, nil
}

// CheckEncodable reports whether p can be written on one line of the
// rebuild-trigger protocol.
func CheckEncodable(p string) error {
	if !utf8.ValidString(p) || strings.ContainsAny(p, "\r\n") {
		return &EncodingError{Path: p}
	}
	return nil
}

// lstat reads the metadata of a listed entry. Tests replace it.
var lstat = os.Lstat

func readDir(dir string) ([]os.DirEntry, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.ReadDir(-1)
}
