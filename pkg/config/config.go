package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config defines all configuration options available to be set through the
// config file. Every option can also be given on the command line, which
// takes precedence.
type Config struct {
	// Syntax is the assembly syntax used to print instructions: gnu, intel
	// or go.
	Syntax string `yaml:"syntax,omitempty" json:"syntax,omitempty" jsonschema:"title=Syntax,description=Assembly syntax used to print instructions,enum=gnu,enum=intel,enum=go,default=gnu"`

	// Color selects when instructions are syntax highlighted: auto, always
	// or never.
	Color string `yaml:"color,omitempty" json:"color,omitempty" jsonschema:"title=Color,description=When to syntax highlight instructions,enum=auto,enum=always,enum=never,default=auto"`

	// LineCapacity is the maximum length of the text of one instruction.
	LineCapacity *int `yaml:"line-capacity,omitempty" json:"line-capacity,omitempty" jsonschema:"title=Line capacity,description=Maximum length of the text of one instruction,minimum=4,default=128"`

	// DecodeCache is the number of decoded instructions to remember. Zero
	// disables the cache.
	DecodeCache *int `yaml:"decode-cache,omitempty" json:"decode-cache,omitempty" jsonschema:"title=Decode cache,description=Number of decoded instructions to remember (0 disables),minimum=0,default=4096"`

	// DecodeErrors reports instructions that could not be decoded on
	// standard error instead of skipping them silently.
	DecodeErrors bool `yaml:"decode-errors,omitempty" json:"decode-errors,omitempty" jsonschema:"title=Decode errors,description=Report instructions that could not be decoded"`

	// FromEntry suppresses output until the program reaches its own entry
	// point, skipping the dynamic loader.
	FromEntry bool `yaml:"from-entry,omitempty" json:"from-entry,omitempty" jsonschema:"title=From entry,description=Only print instructions from the program entry point on"`
}

// LoadConfig reads the configuration file at path. An empty path returns
// an empty Config: insdump never looks for a configuration file on its own.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file: %v", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML configuration and validates it.
func ParseConfig(data []byte) (*Config, error) {
	var c Config
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, fmt.Errorf("unable to decode config file: %v", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the values of c.
func (c *Config) Validate() error {
	switch c.Syntax {
	case "", "gnu", "att", "intel", "go":
	default:
		return fmt.Errorf("invalid syntax %q (must be one of gnu, intel, go)", c.Syntax)
	}
	switch c.Color {
	case "", "auto", "always", "never":
	default:
		return fmt.Errorf("invalid color %q (must be one of auto, always, never)", c.Color)
	}
	if c.LineCapacity != nil && *c.LineCapacity < 4 {
		return fmt.Errorf("line-capacity must be at least 4, got %d", *c.LineCapacity)
	}
	if c.DecodeCache != nil && *c.DecodeCache < 0 {
		return fmt.Errorf("decode-cache must not be negative, got %d", *c.DecodeCache)
	}
	return nil
}

// String returns the configuration in YAML form.
func (c *Config) String() string {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(out)
}

// DefaultConfigText is an annotated example configuration file.
const DefaultConfigText = `# Configuration file for insdump.
# Pass it with --config; command line flags override these values.

# Assembly syntax: gnu (AT&T, like objdump), intel or go.
# syntax: gnu

# Syntax highlighting: auto (only on a terminal), always or never.
# color: auto

# Maximum length of the text of one instruction; longer text ends in "...".
# line-capacity: 128

# Number of decoded instructions to remember, 0 disables the cache.
# decode-cache: 4096

# Report instructions that could not be decoded on standard error.
# decode-errors: false

# Skip the dynamic loader, start printing at the program entry point.
# from-entry: false
`
