package loader

import (
	"reflect"
	"strings"
	"testing"

	"github.com/JonMunkholm/tabload/internal/core"
)

func TestReadTable(t *testing.T) {
	input := "# comment\r\n\r\nid,name\r\n1,\"a, b\"\r\n   \r\n2,c\r\n"

	table, err := ReadTable(strings.NewReader(input), core.DefaultTokenizer())
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}

	if !reflect.DeepEqual(table.Header, []string{"id", "name"}) {
		t.Errorf("Header = %q", table.Header)
	}
	want := [][]string{{"1", "a, b"}, {"2", "c"}}
	if !reflect.DeepEqual(table.Rows, want) {
		t.Errorf("Rows = %q, want %q", table.Rows, want)
	}
	if table.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3", table.Skipped)
	}
	if table.BytesRead != int64(len(input)) {
		t.Errorf("BytesRead = %d, want %d", table.BytesRead, len(input))
	}
}

func TestReadTable_BOM(t *testing.T) {
	input := "\xEF\xBB\xBFid,name\n1,x\n"

	table, err := ReadTable(strings.NewReader(input), core.DefaultTokenizer())
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if table.Header[0] != "id" {
		t.Errorf("Header[0] = %q, BOM not stripped", table.Header[0])
	}
}

func TestReadTable_InvalidUTF8(t *testing.T) {
	input := "id,name\n1,caf\xe9\n"

	table, err := ReadTable(strings.NewReader(input), core.DefaultTokenizer())
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if got := table.Rows[0][1]; got != "caf\uFFFD" {
		t.Errorf("Rows[0][1] = %q, want replacement character", got)
	}
}

func TestReadTable_CustomTokenizer(t *testing.T) {
	input := "// exported\nid\tlabel\n1\thello, world\n// trailing\n"
	tok := core.Tokenizer{Delimiter: '\t', Quote: '"', CommentPrefix: "//"}

	table, err := ReadTable(strings.NewReader(input), tok)
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if !reflect.DeepEqual(table.Rows, [][]string{{"1", "hello, world"}}) {
		t.Errorf("Rows = %q", table.Rows)
	}
	if table.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", table.Skipped)
	}
}

func TestReadTable_Empty(t *testing.T) {
	for _, input := range []string{"", "# only a comment\n\n"} {
		table, err := ReadTable(strings.NewReader(input), core.DefaultTokenizer())
		if err != nil {
			t.Fatalf("ReadTable(%q) error = %v", input, err)
		}
		if table.Header != nil || len(table.Rows) != 0 {
			t.Errorf("ReadTable(%q) = %+v, want empty table", input, table)
		}
	}
}

func TestReadTable_LineTooLong(t *testing.T) {
	input := "id\n" + strings.Repeat("x", maxLineBytes+1) + "\n"
	if _, err := ReadTable(strings.NewReader(input), core.DefaultTokenizer()); err == nil {
		t.Error("ReadTable() should fail on an oversized line")
	}
}
