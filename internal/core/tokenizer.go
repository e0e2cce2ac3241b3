package core

// tokenizer.go splits single lines of delimited text into fields.
//
// The rules are intentionally forgiving so one bad row never aborts a file:
//   - A quoted region makes the delimiter literal
//   - A doubled quote inside a quoted region is one literal quote
//   - An unterminated quote absorbs the rest of the line
//   - Every field is trimmed of surrounding whitespace

import (
	"strconv"
	"strings"
)

// DefaultCommentPrefix marks a line that the Loader should skip.
const DefaultCommentPrefix = "#"

// Tokenizer holds the delimiter, quote and comment conventions of one file.
type Tokenizer struct {
	Delimiter     rune
	Quote         rune
	CommentPrefix string
}

// DefaultTokenizer returns the comma-separated, double-quoted, #-commented convention.
func DefaultTokenizer() Tokenizer {
	return Tokenizer{Delimiter: ',', Quote: '"', CommentPrefix: DefaultCommentPrefix}
}

// ParseRow splits line on delimiter using double quotes.
func ParseRow(line string, delimiter rune) []string {
	return Tokenizer{Delimiter: delimiter, Quote: '"'}.ParseRow(line)
}

// ParseHeader splits a header line on delimiter. See Tokenizer.ParseHeader.
func ParseHeader(line string, delimiter rune) []string {
	return Tokenizer{Delimiter: delimiter, Quote: '"'}.ParseHeader(line)
}

// ParseRow splits one line into trimmed fields.
func (t Tokenizer) ParseRow(line string) []string {
	delim, quote := t.runes()

	fields := make([]string, 0, strings.Count(line, string(delim))+1)
	var field strings.Builder
	inQuotes := false

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == quote:
			if inQuotes && i+1 < len(runes) && runes[i+1] == quote {
				field.WriteRune(quote)
				i++
				continue
			}
			inQuotes = !inQuotes
		case r == delim && !inQuotes:
			fields = append(fields, strings.TrimSpace(field.String()))
			field.Reset()
		default:
			field.WriteRune(r)
		}
	}

	// An unterminated quote lands here too: whatever was collected is the field.
	fields = append(fields, strings.TrimSpace(field.String()))
	return fields
}

// ParseHeader splits a header line and guarantees every column has a name.
// Stray quote and whitespace padding is stripped; blank cells become
// Column_<index>, counting from zero.
func (t Tokenizer) ParseHeader(line string) []string {
	_, quote := t.runes()
	cutset := " \t" + string(quote)

	fields := t.ParseRow(line)
	for i, f := range fields {
		f = strings.Trim(f, cutset)
		if f == "" {
			f = "Column_" + strconv.Itoa(i)
		}
		fields[i] = f
	}
	return fields
}

// IsComment reports whether line starts with the tokenizer's comment prefix.
func (t Tokenizer) IsComment(line string) bool {
	return IsComment(line, t.CommentPrefix)
}

func (t Tokenizer) runes() (delim, quote rune) {
	delim, quote = t.Delimiter, t.Quote
	if delim == 0 {
		delim = ','
	}
	if quote == 0 {
		quote = '"'
	}
	return delim, quote
}

// IsBlank reports whether line holds only whitespace.
func IsBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// IsComment reports whether line, ignoring leading whitespace, starts with
// prefix. An empty prefix means DefaultCommentPrefix.
func IsComment(line, prefix string) bool {
	if prefix == "" {
		prefix = DefaultCommentPrefix
	}
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), prefix)
}
