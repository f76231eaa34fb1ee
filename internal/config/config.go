// Package config merges the build settings from their sources. Later
// sources win: defaults, then the rtbuild.hcl file in the component root,
// then command line overrides.
//
// Example rtbuild.hcl:
//
//	stub_location = "component"
//	stub          = "interface/stub.c"
//	library       = "rt"
//	recursive     = false
//	prefix        = "cargo:"
//
// Expressions may refer to component_dir and project_dir.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/goplus/rtbuild/internal/paths"
	"github.com/goplus/rtbuild/internal/report"
)

// FileName is the config file looked up in the component root.
const FileName = "rtbuild.hcl"

// DefaultLibrary is the name of the static library built by default.
const DefaultLibrary = "rt"

// Settings is one source of configuration. Nil fields are unset.
type Settings struct {
	StubLocation   *string `hcl:"stub_location,optional"`
	Stub           *string `hcl:"stub,optional"`
	Library        *string `hcl:"library,optional"`
	Recursive      *bool   `hcl:"recursive,optional"`
	MinCCVersion   *string `hcl:"min_cc_version,optional"`
	Prefix         *string `hcl:"prefix,optional"`
	Separator      *string `hcl:"separator,optional"`
	LinkDirectives *bool   `hcl:"link_directives,optional"`
}

// Config is the effective configuration of one build.
type Config struct {
	StubLocation   paths.StubLocation
	Stub           string // empty selects StubLocation.DefaultStub()
	Library        string
	Recursive      bool
	MinCCVersion   string
	Prefix         string
	Separator      string
	LinkDirectives bool
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		StubLocation:   paths.ProjectShared,
		Library:        DefaultLibrary,
		Prefix:         report.DefaultPrefix,
		Separator:      "=",
		LinkDirectives: true,
	}
}

// Apply overlays the set fields of s onto c.
func (c *Config) Apply(s *Settings) error {
	if s == nil {
		return nil
	}
	if s.StubLocation != nil {
		loc, err := paths.ParseStubLocation(*s.StubLocation)
		if err != nil {
			return err
		}
		c.StubLocation = loc
	}
	if s.Stub != nil {
		c.Stub = *s.Stub
	}
	if s.Library != nil {
		c.Library = *s.Library
	}
	if s.Recursive != nil {
		c.Recursive = *s.Recursive
	}
	if s.MinCCVersion != nil {
		c.MinCCVersion = *s.MinCCVersion
	}
	if s.Prefix != nil {
		c.Prefix = *s.Prefix
	}
	if s.Separator != nil {
		c.Separator = *s.Separator
	}
	if s.LinkDirectives != nil {
		c.LinkDirectives = *s.LinkDirectives
	}
	return nil
}

// Vars returns the variables visible to config expressions.
func Vars(layout *paths.Layout) map[string]cty.Value {
	return map[string]cty.Value{
		"component_dir": cty.StringVal(layout.ComponentRoot),
		"project_dir":   cty.StringVal(layout.ProjectRoot),
	}
}

// Load parses the HCL file at path. A missing file is reported with an
// error satisfying os.IsNotExist.
func Load(path string, vars map[string]cty.Value) (*Settings, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %w", path, diags)
	}

	evalCtx := &hcl.EvalContext{Variables: vars}
	var s Settings
	if diags := gohcl.DecodeBody(file.Body, evalCtx, &s); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode %s: %w", path, diags)
	}
	return &s, nil
}
