// Package report writes the signals a build step hands to its host build
// tool: rebuild triggers and link directives on the metadata channel, fatal
// diagnostics on a separate diagnostic channel.
package report

import (
	"fmt"
	"io"
	"strings"
)

// DefaultPrefix is the sentinel cargo recognizes on build script output.
const DefaultPrefix = "cargo:"

// Reporter is a sink for build signals. It makes no decisions.
type Reporter struct {
	meta io.Writer
	diag io.Writer

	prefix string
	sep    string
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithPrefix sets the sentinel written before every directive. An empty
// prefix produces bare "rerun-if-changed=<path>" lines.
func WithPrefix(prefix string) Option {
	return func(r *Reporter) {
		r.prefix = prefix
	}
}

// WithSeparator sets the separator between a directive and its value,
// "=" by default.
func WithSeparator(sep string) Option {
	return func(r *Reporter) {
		r.sep = sep
	}
}

// New returns a Reporter writing directives to meta and diagnostics to diag.
func New(meta, diag io.Writer, opts ...Option) *Reporter {
	r := &Reporter{meta: meta, diag: diag, prefix: DefaultPrefix, sep: "="}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reporter) directive(key, value string) {
	fmt.Fprintf(r.meta, "%s%s%s%s\n", r.prefix, key, r.sep, value)
}

// RerunIfChanged asks the host to re-run the step when path changes.
func (r *Reporter) RerunIfChanged(path string) {
	r.directive("rerun-if-changed", path)
}

// LinkSearch adds dir to the host's native library search path.
func (r *Reporter) LinkSearch(dir string) {
	r.directive("rustc-link-search", "native="+dir)
}

// LinkLib asks the host to link the static library name.
func (r *Reporter) LinkLib(name string) {
	r.directive("rustc-link-lib", "static="+name)
}

// Notice writes an advisory line. It carries no prefix, so host tools
// ignore it.
func (r *Reporter) Notice(format string, args ...any) {
	fmt.Fprintf(r.meta, format+"\n", args...)
}

// Fatal writes err to the diagnostic channel. Multi-line errors (toolchain
// output) are indented under the first line.
func (r *Reporter) Fatal(err error) {
	lines := strings.Split(strings.TrimRight(err.Error(), "\n"), "\n")
	fmt.Fprintf(r.diag, "Build Error: %s\n", lines[0])
	for _, line := range lines[1:] {
		fmt.Fprintf(r.diag, "    %s\n", line)
	}
}
