package core

// convert_pgtype.go registers the pgtype column types as built-in
// destinations. They give schemas that feed a database a nullable target
// that is not a pointer: blank or invalid text produces Valid=false.

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers and decimals; pgtype rejects exponents on Scan.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

func init() {
	builtinConverters[reflect.TypeFor[pgtype.Text]()] = func(s string) (any, error) { return ToPgText(s), nil }
	builtinConverters[reflect.TypeFor[pgtype.Bool]()] = func(s string) (any, error) { return ToPgBool(s), nil }
	builtinConverters[reflect.TypeFor[pgtype.Date]()] = func(s string) (any, error) { return strict(ToPgDate(s), s) }
	builtinConverters[reflect.TypeFor[pgtype.Numeric]()] = func(s string) (any, error) { return strict(ToPgNumeric(s), s) }
	builtinConverters[reflect.TypeFor[pgtype.Int8]()] = func(s string) (any, error) { return strict(ToPgInt8(s), s) }
	builtinConverters[reflect.TypeFor[pgtype.Float8]()] = func(s string) (any, error) { return strict(ToPgFloat8(s), s) }
	builtinConverters[reflect.TypeFor[pgtype.UUID]()] = func(s string) (any, error) { return strict(ToPgUUID(s), s) }
}

// strict reports an invalid pgtype result for non-blank text as an error so
// the cell is counted and logged as malformed.
func strict[T any](v T, text string) (any, error) {
	if !reflect.ValueOf(v).FieldByName("Valid").Bool() && strings.TrimSpace(text) != "" {
		return v, fmt.Errorf("invalid %T value %q", v, text)
	}
	return v, nil
}

// ToPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgBool converts a string to pgtype.Bool using the engine's boolean vocabulary.
// Returns invalid only for blank input.
func ToPgBool(s string) pgtype.Bool {
	if strings.TrimSpace(s) == "" {
		return pgtype.Bool{Valid: false}
	}
	return pgtype.Bool{Bool: parseBool(s), Valid: true}
}

// ToPgDate converts a string to pgtype.Date.
// Supports the same layouts as time.Time destinations.
func ToPgDate(s string) pgtype.Date {
	if strings.TrimSpace(s) == "" {
		return pgtype.Date{Valid: false}
	}
	t, err := parseTime(s)
	if err != nil {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: t, Valid: true}
}

// ToPgNumeric converts a string to pgtype.Numeric.
// Handles currency symbols, thousands separators, and accounting format (parentheses for negative).
func ToPgNumeric(s string) pgtype.Numeric {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Numeric{Valid: false}
	}

	// Detect negative accounting format "(123.45)"
	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return pgtype.Numeric{Valid: false}
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}

// ToPgInt8 converts a string to pgtype.Int8.
func ToPgInt8(s string) pgtype.Int8 {
	var n pgtype.Int8
	if err := n.Scan(strings.TrimSpace(s)); err != nil || strings.TrimSpace(s) == "" {
		return pgtype.Int8{Valid: false}
	}
	return n
}

// ToPgFloat8 converts a string to pgtype.Float8.
func ToPgFloat8(s string) pgtype.Float8 {
	var f pgtype.Float8
	if err := f.Scan(strings.TrimSpace(s)); err != nil || strings.TrimSpace(s) == "" {
		return pgtype.Float8{Valid: false}
	}
	return f
}

// ToPgUUID converts a string to pgtype.UUID.
// Returns invalid if the string is empty or not a valid UUID.
func ToPgUUID(s string) pgtype.UUID {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.UUID{Valid: false}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}
