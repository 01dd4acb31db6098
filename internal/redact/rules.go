package redact

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// ErrInvalidRules is returned when a rules file cannot be parsed.
var ErrInvalidRules = errors.New("invalid redaction rules")

// File is the on-disk rules format:
//
//	use_defaults = true
//
//	[[rules]]
//	id = "nhs-number"
//	pattern = '\b\d{3} \d{3} \d{4}\b'
//
//	[allowlist]
//	regexes = ['support@companion\.app']
type File struct {
	UseDefaults *bool  `toml:"use_defaults"`
	Rules       []Rule `toml:"rules"`
	Allowlist   struct {
		Regexes []string `toml:"regexes"`
	} `toml:"allowlist"`
}

// LoadFile builds a Scrubber from a rules file. Built-in rules are kept
// unless use_defaults is false.
func LoadFile(path string) (*Scrubber, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRules, path, err)
	}

	var rules []Rule
	if f.UseDefaults == nil || *f.UseDefaults {
		rules = DefaultRules()
	}
	rules = append(rules, f.Rules...)
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: %s: no rules", ErrInvalidRules, path)
	}

	s, err := NewWithAllowlist(rules, f.Allowlist.Regexes)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRules, path, err)
	}
	return s, nil
}
