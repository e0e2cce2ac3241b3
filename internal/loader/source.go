package loader

// source.go reads a delimited text file into a header and rows.
//
// Files written by spreadsheet tools carry a few artifacts that are handled
// before tokenizing:
//   - A UTF-8 BOM (0xEF 0xBB 0xBF) at the start of the file is dropped
//   - Invalid UTF-8 sequences are replaced with U+FFFD
//   - CRLF line endings are normalized
//
// Blank lines and comment lines are skipped; the first remaining line is
// the header.

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/tabload/internal/core"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// maxLineBytes bounds a single line so a corrupt file cannot exhaust memory.
const maxLineBytes = 4 * 1024 * 1024

// Table is the tokenized content of one file.
type Table struct {
	Header    []string
	Rows      [][]string
	BytesRead int64
	Skipped   int // Blank and comment lines
}

// countingReader tracks bytes read for load diagnostics.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// ReadTable tokenizes r with tok. A file with no header line yields an empty Table.
func ReadTable(r io.Reader, tok core.Tokenizer) (*Table, error) {
	counter := &countingReader{r: r}
	br := bufio.NewReader(counter)

	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, fmt.Errorf("skipping BOM: %w", err)
		}
	}

	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	table := &Table{}
	for scanner.Scan() {
		line := strings.ToValidUTF8(strings.TrimSuffix(scanner.Text(), "\r"), "\uFFFD")

		if core.IsBlank(line) || tok.IsComment(line) {
			table.Skipped++
			continue
		}
		if table.Header == nil {
			table.Header = tok.ParseHeader(line)
			continue
		}
		table.Rows = append(table.Rows, tok.ParseRow(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading lines: %w", err)
	}

	table.BytesRead = counter.n
	return table, nil
}
