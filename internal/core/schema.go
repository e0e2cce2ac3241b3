package core

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// ColumnMapping pairs a source column with a destination struct field.
type ColumnMapping struct {
	Column    string         // Header name in the source file (case-insensitive)
	Field     string         // Destination struct field name
	Converter FieldConverter // Optional per-column converter

	index []int // Resolved field index, set by SchemaRegistry.Register
	ftype reflect.Type
}

// FieldType returns the destination type resolved at registration.
// It is nil for a mapping that has not been registered.
func (m ColumnMapping) FieldType() reflect.Type {
	return m.ftype
}

// Cardinality is how many target records a relationship assigns.
type Cardinality int

const (
	One Cardinality = iota
	Many
)

func (c Cardinality) String() string {
	if c == Many {
		return "many"
	}
	return "one"
}

// Timing controls whether Resolve populates a relationship.
type Timing int

const (
	Eager Timing = iota
	Lazy         // Populated only on demand, via Resolver.ResolveRelation
)

// Relationship declares a reference property filled from another record set.
type Relationship struct {
	Field       string // Property on the source type (*T, T, []*T or []T)
	Target      string // Target schema key
	PrimaryKey  string // Key field on the source type
	ForeignKey  string // Field on the target type that must equal PrimaryKey
	Cardinality Cardinality
	Timing      Timing
}

// Schema describes one bindable record type.
type Schema struct {
	Key       string       // Unique identifier: "zones"
	Type      reflect.Type // Struct type; bound records are *Type
	Columns   []ColumnMapping
	Relations []Relationship
}

// Relation returns the declared relationship for field.
func (s *Schema) Relation(field string) (Relationship, bool) {
	for _, rel := range s.Relations {
		if rel.Field == field {
			return rel, true
		}
	}
	return Relationship{}, false
}

// HeaderIndex maps cleaned, lower-cased column names to their position in a row.
type HeaderIndex map[string]int

// MakeHeaderIndex creates a HeaderIndex from a header row. The first
// occurrence of a duplicated name wins.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

// Lookup returns the position of column, ignoring case.
func (h HeaderIndex) Lookup(column string) (int, bool) {
	pos, ok := h[strings.ToLower(strings.TrimSpace(column))]
	return pos, ok
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	}

	return strings.Trim(s, `"'`)
}

// SchemaRegistry holds the schemas one engine instance can bind and resolve.
type SchemaRegistry struct {
	mu     sync.RWMutex
	byKey  map[string]*Schema
	byType map[reflect.Type]*Schema
}

// NewSchemaRegistry creates an empty registry.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{
		byKey:  make(map[string]*Schema),
		byType: make(map[reflect.Type]*Schema),
	}
}

// SchemaFor builds a Schema for T whose columns come from `tab` struct tags.
func SchemaFor[T any](key string, relations ...Relationship) Schema {
	return Schema{Key: key, Type: reflect.TypeFor[T](), Relations: relations}
}

// Register validates and adds a schema. Columns are derived from `tab`
// struct tags when none are declared.
func (r *SchemaRegistry) Register(s Schema) error {
	if s.Key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidSchema)
	}
	if s.Type == nil || s.Type.Kind() != reflect.Struct {
		return fmt.Errorf("%w: %s: type %v is not a struct", ErrInvalidSchema, s.Key, s.Type)
	}

	if len(s.Columns) == 0 {
		s.Columns = columnsFromTags(s.Type)
	} else {
		s.Columns = append([]ColumnMapping(nil), s.Columns...)
	}

	for i := range s.Columns {
		col := &s.Columns[i]
		if col.Column == "" {
			col.Column = col.Field
		}
		f, ok := lookupField(s.Type, col.Field)
		if !ok || !f.IsExported() {
			return fmt.Errorf("%w: %s: column %q maps to unknown or unexported field %q",
				ErrInvalidSchema, s.Key, col.Column, col.Field)
		}
		col.index = f.Index
		col.ftype = f.Type
	}

	for _, rel := range s.Relations {
		if rel.Field == "" || rel.Target == "" || rel.PrimaryKey == "" || rel.ForeignKey == "" {
			return fmt.Errorf("%w: %s: relationship %+v is incomplete", ErrInvalidSchema, s.Key, rel)
		}
		if f, ok := lookupField(s.Type, rel.Field); !ok || !f.IsExported() {
			return fmt.Errorf("%w: %s: relationship field %q not found or unexported", ErrInvalidSchema, s.Key, rel.Field)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byKey[s.Key]; exists {
		return fmt.Errorf("%w: schema already registered: %s", ErrInvalidSchema, s.Key)
	}
	if prev, exists := r.byType[s.Type]; exists {
		return fmt.Errorf("%w: type %s already registered as %s", ErrInvalidSchema, s.Type, prev.Key)
	}

	stored := s
	r.byKey[s.Key] = &stored
	r.byType[s.Type] = &stored
	return nil
}

// MustRegister registers s and panics on error. Intended for init-time wiring.
func (r *SchemaRegistry) MustRegister(s Schema) {
	if err := r.Register(s); err != nil {
		panic(err)
	}
}

// Get returns the schema registered under key.
func (r *SchemaRegistry) Get(key string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byKey[key]
	return s, ok
}

// ByType returns the schema registered for struct type t.
func (r *SchemaRegistry) ByType(t reflect.Type) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byType[t]
	return s, ok
}

// Keys returns all schema keys, sorted.
func (r *SchemaRegistry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of registered schemas.
func (r *SchemaRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byKey)
}

// columnsFromTags reads `tab:"Column Name"` tags. `tab:"-"` and untagged
// fields are not bound.
func columnsFromTags(t reflect.Type) []ColumnMapping {
	var cols []ColumnMapping
	for _, f := range reflect.VisibleFields(t) {
		tag, ok := f.Tag.Lookup("tab")
		if !ok || tag == "-" || !f.IsExported() || f.Anonymous {
			continue
		}
		cols = append(cols, ColumnMapping{Column: tag, Field: f.Name})
	}
	return cols
}

// lookupField finds a field by exact name, then case-insensitively.
func lookupField(t reflect.Type, name string) (reflect.StructField, bool) {
	if f, ok := t.FieldByName(name); ok {
		return f, true
	}
	return t.FieldByNameFunc(func(n string) bool {
		return strings.EqualFold(n, name)
	})
}
