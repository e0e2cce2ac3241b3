package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/tabload/internal/core"
)

func TestParseManifest(t *testing.T) {
	data := []byte(`
delimiter: ";"
comment_prefix: "//"
sets:
  zones:
    file: world/zones.tsv
    delimiter: "\t"
  spawns:
    comment_prefix: "--"
`)

	m, err := ParseManifest(data)
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}

	tests := []struct {
		key        string
		wantFile   string
		wantDelim  rune
		wantPrefix string
	}{
		{"zones", "world/zones.tsv", '\t', "//"},
		{"spawns", "spawns.csv", ';', "--"},
		{"other", "other.csv", ';', "//"},
	}

	for _, tt := range tests {
		file, tok := m.entry(tt.key, core.DefaultTokenizer())
		if file != tt.wantFile || tok.Delimiter != tt.wantDelim || tok.CommentPrefix != tt.wantPrefix {
			t.Errorf("entry(%q) = %q, %q, %q; want %q, %q, %q",
				tt.key, file, tok.Delimiter, tok.CommentPrefix, tt.wantFile, tt.wantDelim, tt.wantPrefix)
		}
		if tok.Quote != '"' {
			t.Errorf("entry(%q) quote = %q, want fallback", tt.key, tok.Quote)
		}
	}
}

func TestParseManifest_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", "sets: [unclosed"},
		{"long delimiter", `delimiter: "::"`},
		{"long set delimiter", "sets:\n  zones:\n    delimiter: ab\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseManifest([]byte(tt.data)); err == nil {
				t.Error("ParseManifest() expected error")
			}
		})
	}
}

func TestManifestEntry_Nil(t *testing.T) {
	var m *Manifest
	file, tok := m.entry("zones", core.Tokenizer{Delimiter: '|'})
	if file != "zones.csv" || tok.Delimiter != '|' {
		t.Errorf("nil manifest entry = %q, %q", file, tok.Delimiter)
	}
}

func TestReadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	if err := os.WriteFile(path, []byte("sets:\n  zones:\n    file: z.csv\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	if m.Sets["zones"].File != "z.csv" {
		t.Errorf("Sets = %+v", m.Sets)
	}

	if _, err := ReadManifest(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("ReadManifest() of a missing file should fail")
	}
}

func TestDelimiterRune(t *testing.T) {
	tests := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{"", ',', false},
		{",", ',', false},
		{"|", '|', false},
		{`\t`, '\t', false},
		{"\t", '\t', false},
		{"§", '§', false},
		{"ab", 0, true},
	}

	for _, tt := range tests {
		got, err := DelimiterRune(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("DelimiterRune(%q) = %q, %v; want %q, err=%v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}
