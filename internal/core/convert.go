package core

// convert.go turns one cell of text into a value of a destination type.
//
// Resolution order for a single call:
//  1. Blank text yields the zero value without trying anything else
//  2. The column's own FieldConverter, if it accepts the type
//  3. A custom converter registered for exactly that type
//  4. The built-in exact-type table (convert_builtin.go, convert_pgtype.go)
//  5. Registered enumeration names, matched case-insensitively
//  6. Kind-based built-ins: integers, floats, strings, bools, slices, arrays
//  7. encoding.TextUnmarshaler
//  8. Pointer destinations: unwrap, convert, re-wrap
//
// Failures never escape Convert: they are logged and replaced by the zero value.

import (
	"encoding"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// Converter converts text into a value of one destination type.
// The returned value must be assignable or convertible to that type.
type Converter func(text string) (any, error)

// FieldConverter is a per-column converter declared by a ColumnMapping.
// It is consulted before any registered or built-in converter.
type FieldConverter interface {
	CanConvert(t reflect.Type) bool
	Convert(text string, t reflect.Type) (any, error)
}

// FieldConverterFunc adapts a function to FieldConverter for a single type.
type FieldConverterFunc struct {
	Type reflect.Type
	Func Converter
}

// CanConvert reports whether t is the type this converter was built for.
func (f FieldConverterFunc) CanConvert(t reflect.Type) bool {
	return f.Type == t && f.Func != nil
}

// Convert calls the wrapped function.
func (f FieldConverterFunc) Convert(text string, _ reflect.Type) (any, error) {
	return f.Func(text)
}

var textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

// Converters is a conversion registry: built-in coverage plus caller-registered
// converters and enumeration names. It is safe for concurrent use; registration
// takes a write lock, conversions only read.
type Converters struct {
	mu     sync.RWMutex
	custom map[reflect.Type]Converter
	enums  map[reflect.Type]map[string]reflect.Value
	logger *slog.Logger
}

// NewConverters creates an empty registry. A nil logger uses slog.Default.
func NewConverters(logger *slog.Logger) *Converters {
	return &Converters{
		custom: make(map[reflect.Type]Converter),
		enums:  make(map[reflect.Type]map[string]reflect.Value),
		logger: logger,
	}
}

var defaultConverters = NewConverters(nil)

// DefaultConverters returns the process-wide registry.
func DefaultConverters() *Converters {
	return defaultConverters
}

// RegisterConverter registers conv for t on the process-wide registry.
// It applies to every later conversion to t made through DefaultConverters.
func RegisterConverter(t reflect.Type, conv Converter) {
	defaultConverters.Register(t, conv)
}

// Register installs conv as the converter for t, replacing any earlier one.
func (c *Converters) Register(t reflect.Type, conv Converter) {
	if t == nil || conv == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.custom[t] = conv
}

// Unregister removes a custom converter for t.
func (c *Converters) Unregister(t reflect.Type) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.custom, t)
}

// RegisterFunc registers a typed conversion function for T.
func RegisterFunc[T any](c *Converters, fn func(string) (T, error)) {
	c.Register(reflect.TypeFor[T](), func(text string) (any, error) {
		return fn(text)
	})
}

// RegisterEnum installs the name table for an enumeration type. Names match
// case-insensitively. Each value must be convertible to t.
func (c *Converters) RegisterEnum(t reflect.Type, names map[string]any) error {
	table := make(map[string]reflect.Value, len(names))
	for name, v := range names {
		rv := reflect.ValueOf(v)
		if !rv.IsValid() || !rv.Type().ConvertibleTo(t) {
			return fmt.Errorf("enum %s: value for %q is %T", t, name, v)
		}
		table[strings.ToLower(strings.TrimSpace(name))] = rv.Convert(t)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.enums[t] = table
	return nil
}

// RegisterEnumValues installs the name table for enumeration type E.
func RegisterEnumValues[E any](c *Converters, values map[string]E) {
	t := reflect.TypeFor[E]()
	table := make(map[string]reflect.Value, len(values))
	for name, v := range values {
		table[strings.ToLower(strings.TrimSpace(name))] = reflect.ValueOf(v)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.enums[t] = table
}

// ConvertTo converts text to T using c.
func ConvertTo[T any](c *Converters, text string) T {
	v, _ := c.Convert(text, reflect.TypeFor[T](), nil).(T)
	return v
}

// Convert converts text to a value of type t. field is the column's own
// converter and may be nil. On any failure the zero value of t is returned
// and a warning is logged.
func (c *Converters) Convert(text string, t reflect.Type, field FieldConverter) any {
	v, err := c.ConvertValue(text, t, field)
	if err != nil {
		c.log().Warn("conversion failed, using zero value",
			"type", typeName(t),
			"text", text,
			"error", err,
		)
	}
	if !v.IsValid() {
		return nil
	}
	return v.Interface()
}

// ConvertValue converts text to a reflect.Value of type t and reports the
// failure instead of logging it. The returned value is always valid for a
// non-nil t: on error it is the zero value.
func (c *Converters) ConvertValue(text string, t reflect.Type, field FieldConverter) (v reflect.Value, err error) {
	if t == nil {
		return reflect.Value{}, &ConversionError{Text: text, Err: fmt.Errorf("nil destination type")}
	}

	defer func() {
		if r := recover(); r != nil {
			v = reflect.Zero(t)
			err = &ConversionError{Type: t, Text: text, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	v, err = c.convert(text, t, field)
	if err != nil {
		return reflect.Zero(t), &ConversionError{Type: t, Text: text, Err: err}
	}
	return v, nil
}

func (c *Converters) convert(text string, t reflect.Type, field FieldConverter) (reflect.Value, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return reflect.Zero(t), nil
	}

	if field != nil && field.CanConvert(t) {
		return coerce(field.Convert(text, t))(t)
	}

	c.mu.RLock()
	custom, hasCustom := c.custom[t]
	enum, hasEnum := c.enums[t]
	c.mu.RUnlock()

	if hasCustom {
		return coerce(custom(text))(t)
	}

	if builtin, ok := builtinConverters[t]; ok {
		return coerce(builtin(text))(t)
	}

	if hasEnum {
		return convertEnum(text, t, enum)
	}

	if v, ok, err := c.convertKind(text, t); ok {
		return v, err
	}

	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		ptr := reflect.New(t)
		if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(text)); err != nil {
			return reflect.Value{}, err
		}
		return ptr.Elem(), nil
	}

	if t.Kind() == reflect.Pointer {
		inner, err := c.convert(text, t.Elem(), field)
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(inner)
		return ptr, nil
	}

	return reflect.Value{}, fmt.Errorf("no converter for %s", t)
}

// coerce adapts a converter's (any, error) result to a value of type t.
func coerce(out any, err error) func(reflect.Type) (reflect.Value, error) {
	return func(t reflect.Type) (reflect.Value, error) {
		if err != nil {
			return reflect.Value{}, err
		}
		v := reflect.ValueOf(out)
		switch {
		case !v.IsValid():
			return reflect.Zero(t), nil
		case v.Type().AssignableTo(t):
			return v, nil
		case v.Type().ConvertibleTo(t):
			return v.Convert(t), nil
		default:
			return reflect.Value{}, fmt.Errorf("converter returned %s, want %s", v.Type(), t)
		}
	}
}

func convertEnum(text string, t reflect.Type, names map[string]reflect.Value) (reflect.Value, error) {
	if v, ok := names[strings.ToLower(text)]; ok {
		return v, nil
	}

	// A numeric literal is taken as the raw value, like a cast.
	switch kind := t.Kind(); {
	case isIntKind(kind):
		if n, err := strconv.ParseInt(text, 10, t.Bits()); err == nil {
			return reflect.ValueOf(n).Convert(t), nil
		}
	case isUintKind(kind):
		if n, err := strconv.ParseUint(text, 10, t.Bits()); err == nil {
			return reflect.ValueOf(n).Convert(t), nil
		}
	}

	return reflect.Value{}, fmt.Errorf("unknown %s name %q", t, text)
}

// convertKind handles destinations by their underlying kind. ok is false when
// the kind is not one it knows.
func (c *Converters) convertKind(text string, t reflect.Type) (v reflect.Value, ok bool, err error) {
	v = reflect.New(t).Elem()
	kind := t.Kind()

	switch {
	case kind == reflect.String:
		v.SetString(text)
	case kind == reflect.Bool:
		v.SetBool(parseBool(text))
	case isIntKind(kind):
		n, err := strconv.ParseInt(text, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, true, err
		}
		v.SetInt(n)
	case isUintKind(kind):
		n, err := strconv.ParseUint(text, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, true, err
		}
		v.SetUint(n)
	case kind == reflect.Float32 || kind == reflect.Float64:
		f, err := strconv.ParseFloat(text, t.Bits())
		if err != nil {
			return reflect.Value{}, true, err
		}
		v.SetFloat(f)
	case kind == reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			v.SetBytes([]byte(text))
			return v, true, nil
		}
		parts := c.splitElements(text, t.Elem())
		v = reflect.MakeSlice(t, len(parts), len(parts))
		c.fillElements(v, parts, t.Elem())
	case kind == reflect.Array:
		parts := c.splitElements(text, t.Elem())
		if len(parts) > t.Len() {
			return reflect.Value{}, true, fmt.Errorf("%d elements for %s", len(parts), t)
		}
		c.fillElements(v, parts, t.Elem())
	default:
		return reflect.Value{}, false, nil
	}

	return v, true, nil
}

// splitElements splits collection text. Elements that are themselves
// comma-separated composites are separated by ';' instead.
func (c *Converters) splitElements(text string, elem reflect.Type) []string {
	sep := ","
	if c.isComposite(elem) {
		sep = ";"
	}
	return strings.Split(text, sep)
}

// fillElements converts each part independently; a bad element becomes the
// element zero value without failing the collection.
func (c *Converters) fillElements(dst reflect.Value, parts []string, elem reflect.Type) {
	for i, part := range parts {
		ev, err := c.ConvertValue(part, elem, nil)
		if err != nil {
			c.log().Warn("collection element conversion failed",
				"type", elem.String(),
				"index", i,
				"text", part,
				"error", err,
			)
		}
		dst.Index(i).Set(ev)
	}
}

// isComposite reports whether values of t are written as comma lists.
func (c *Converters) isComposite(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if compositeTypes[t] {
		return true
	}
	c.mu.RLock()
	_, custom := c.custom[t]
	c.mu.RUnlock()
	if custom {
		return false
	}
	switch t.Kind() {
	case reflect.Slice:
		return t.Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return true
	}
	return false
}

func (c *Converters) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}

func isIntKind(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUintKind(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}
