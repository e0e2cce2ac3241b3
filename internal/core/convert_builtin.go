package core

// convert_builtin.go holds the exact-type built-in converters.
//
// These handle the messy reality of hand-edited data files:
//   - Several date layouts (ISO, US, EU) with 2-digit year pivoting
//   - Loose boolean vocabularies (yes/on/enabled)
//   - Vectors, colors and rotations written as comma lists, optionally in parentheses
//   - Hex, float-list or named colors

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		time.RFC3339Nano, time.RFC3339,
		"2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02 15:04",
		"1/2/2006 15:04:05", "1/2/2006 15:04",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"2006-01-02", "2006/01/02", "2006.01.02",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
	}
)

var errBadComponents = errors.New("wrong number of components")

// builtinConverters is the exact-type table. pgtype entries are added by
// convert_pgtype.go.
var builtinConverters = map[reflect.Type]Converter{
	reflect.TypeFor[string]():        func(s string) (any, error) { return s, nil },
	reflect.TypeFor[bool]():          func(s string) (any, error) { return parseBool(s), nil },
	reflect.TypeFor[time.Time]():     func(s string) (any, error) { return parseTime(s) },
	reflect.TypeFor[time.Duration](): func(s string) (any, error) { return parseDuration(s) },
	reflect.TypeFor[uuid.UUID]():     func(s string) (any, error) { return uuid.Parse(s) },
	reflect.TypeFor[Vector2]():       func(s string) (any, error) { return parseVector2(s) },
	reflect.TypeFor[Vector3]():       func(s string) (any, error) { return parseVector3(s) },
	reflect.TypeFor[Vector4]():       func(s string) (any, error) { return parseVector4(s) },
	reflect.TypeFor[Color]():         func(s string) (any, error) { return parseColor(s) },
	reflect.TypeFor[Quaternion]():    func(s string) (any, error) { return parseQuaternion(s) },
}

// compositeTypes are written as comma lists and so use ';' between
// elements of a collection.
var compositeTypes = map[reflect.Type]bool{
	reflect.TypeFor[Vector2]():    true,
	reflect.TypeFor[Vector3]():    true,
	reflect.TypeFor[Vector4]():    true,
	reflect.TypeFor[Color]():      true,
	reflect.TypeFor[Quaternion](): true,
}

// parseBool accepts true/1/yes/on/enabled in any case. Everything else is false.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on", "enabled":
		return true
	default:
		return false
	}
}

// parseTime tries the 4-digit year layouts, then the 2-digit ones with the pivot.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// parseDuration accepts Go duration syntax or a bare number of seconds.
func parseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// parseComponents splits "1, 2, 3" or "(1, 2, 3)" into floats.
func parseComponents(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")

	parts := strings.Split(s, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

func parseExactly(s string, n int) ([]float32, error) {
	c, err := parseComponents(s)
	if err != nil {
		return nil, err
	}
	if len(c) != n {
		return nil, fmt.Errorf("%w: got %d, want %d", errBadComponents, len(c), n)
	}
	return c, nil
}

func parseVector2(s string) (Vector2, error) {
	c, err := parseExactly(s, 2)
	if err != nil {
		return Vector2{}, err
	}
	return Vector2{c[0], c[1]}, nil
}

func parseVector3(s string) (Vector3, error) {
	c, err := parseExactly(s, 3)
	if err != nil {
		return Vector3{}, err
	}
	return Vector3{c[0], c[1], c[2]}, nil
}

func parseVector4(s string) (Vector4, error) {
	c, err := parseExactly(s, 4)
	if err != nil {
		return Vector4{}, err
	}
	return Vector4{c[0], c[1], c[2], c[3]}, nil
}

// parseQuaternion takes x,y,z,w directly or x,y,z Euler angles in degrees.
func parseQuaternion(s string) (Quaternion, error) {
	c, err := parseComponents(s)
	if err != nil {
		return Quaternion{}, err
	}
	switch len(c) {
	case 4:
		return Quaternion{c[0], c[1], c[2], c[3]}, nil
	case 3:
		return QuaternionFromEuler(c[0], c[1], c[2]), nil
	default:
		return Quaternion{}, fmt.Errorf("%w: got %d, want 3 or 4", errBadComponents, len(c))
	}
}

// parseColor accepts #hex, comma-separated RGB/RGBA floats or a color name.
func parseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "#") {
		return parseHexColor(s[1:])
	}

	if strings.Contains(s, ",") {
		c, err := parseComponents(s)
		if err != nil {
			return Color{}, err
		}
		switch len(c) {
		case 3:
			return Color{c[0], c[1], c[2], 1}, nil
		case 4:
			return Color{c[0], c[1], c[2], c[3]}, nil
		default:
			return Color{}, fmt.Errorf("%w: got %d, want 3 or 4", errBadComponents, len(c))
		}
	}

	if named, ok := namedColors[strings.ToLower(s)]; ok {
		return named, nil
	}
	return Color{}, fmt.Errorf("unknown color %q", s)
}

// parseHexColor decodes RGB, RGBA, RRGGBB or RRGGBBAA.
func parseHexColor(hex string) (Color, error) {
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid hex color %q", hex)
	}

	channel := func(shift, bits uint) float32 {
		mask := uint64(1)<<bits - 1
		return float32((n>>shift)&mask) / float32(mask)
	}

	switch len(hex) {
	case 3:
		return Color{channel(8, 4), channel(4, 4), channel(0, 4), 1}, nil
	case 4:
		return Color{channel(12, 4), channel(8, 4), channel(4, 4), channel(0, 4)}, nil
	case 6:
		return Color{channel(16, 8), channel(8, 8), channel(0, 8), 1}, nil
	case 8:
		return Color{channel(24, 8), channel(16, 8), channel(8, 8), channel(0, 8)}, nil
	default:
		return Color{}, fmt.Errorf("invalid hex color length %d", len(hex))
	}
}
