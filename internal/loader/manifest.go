package loader

import (
	"fmt"
	"os"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/tabload/internal/core"
)

// Manifest describes where each record set lives and how its file is written.
//
//	delimiter: ","
//	comment_prefix: "#"
//	sets:
//	  zones:
//	    file: world/zones.tsv
//	    delimiter: "\t"
type Manifest struct {
	Delimiter     string              `yaml:"delimiter"`
	CommentPrefix string              `yaml:"comment_prefix"`
	Sets          map[string]SetEntry `yaml:"sets"`
}

// SetEntry overrides the file and conventions of one set.
type SetEntry struct {
	File          string `yaml:"file"`
	Delimiter     string `yaml:"delimiter"`
	CommentPrefix string `yaml:"comment_prefix"`
}

// ReadManifest parses a YAML manifest file.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest parses manifest YAML and validates its delimiters.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if _, err := delimiterRune(m.Delimiter, ','); err != nil {
		return nil, fmt.Errorf("manifest delimiter: %w", err)
	}
	for key, e := range m.Sets {
		if _, err := delimiterRune(e.Delimiter, ','); err != nil {
			return nil, fmt.Errorf("manifest set %s: %w", key, err)
		}
	}
	return &m, nil
}

// entry returns the file name and tokenizer for key, applying defaults in
// order: set entry, manifest, fallback.
func (m *Manifest) entry(key string, fallback core.Tokenizer) (string, core.Tokenizer) {
	file := key + ".csv"
	tok := fallback
	if m == nil {
		return file, tok
	}

	if r, err := delimiterRune(m.Delimiter, tok.Delimiter); err == nil {
		tok.Delimiter = r
	}
	if m.CommentPrefix != "" {
		tok.CommentPrefix = m.CommentPrefix
	}

	e, ok := m.Sets[key]
	if !ok {
		return file, tok
	}
	if e.File != "" {
		file = e.File
	}
	if r, err := delimiterRune(e.Delimiter, tok.Delimiter); err == nil {
		tok.Delimiter = r
	}
	if e.CommentPrefix != "" {
		tok.CommentPrefix = e.CommentPrefix
	}
	return file, tok
}

// delimiterRune converts a one-character setting; empty yields def and the
// escape \t yields a tab.
func delimiterRune(s string, def rune) (rune, error) {
	switch s {
	case "":
		return def, nil
	case `\t`:
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter %q must be a single character", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

// DelimiterRune is delimiterRune for configuration values.
func DelimiterRune(s string) (rune, error) {
	return delimiterRune(s, ',')
}
