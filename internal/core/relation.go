package core

// relation.go links independently loaded record sets by key.
//
// A resolution pass walks the eager relationships of a record set. Each target
// set is fetched from the Loader at most once per pass, then has its own
// relationships resolved with the same RelationContext before the source
// records are linked to it. The context's stack of target keys is the cycle
// guard: a key that is already being resolved is skipped with a warning, so
// S -> T -> S stops at the second S.

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"slices"

	"github.com/google/uuid"
)

// SetLoader supplies column-bound, not yet resolved record sets by schema key.
// The returned value is a []*T or []T for the schema's type T.
type SetLoader interface {
	LoadSet(ctx context.Context, key string) (any, error)
}

// SetLoaderFunc adapts a function to SetLoader.
type SetLoaderFunc func(ctx context.Context, key string) (any, error)

// LoadSet calls f.
func (f SetLoaderFunc) LoadSet(ctx context.Context, key string) (any, error) {
	return f(ctx, key)
}

// LoadTyped loads the set for key and returns it as []*T.
func LoadTyped[T any](ctx context.Context, l SetLoader, key string) ([]*T, error) {
	set, err := l.LoadSet(ctx, key)
	if err != nil {
		return nil, err
	}
	switch s := set.(type) {
	case []*T:
		return s, nil
	case []T:
		out := make([]*T, len(s))
		for i := range s {
			out[i] = &s[i]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: set %s is %T, want []*%s", ErrInvalidRecords, key, set, reflect.TypeFor[T]())
	}
}

// RelationContext is the state of one resolution pass: the stack of schema
// keys being resolved and the target sets already loaded. Create one per
// top-level call; it is not safe for concurrent use.
type RelationContext struct {
	passID string
	stack  []string
	loaded map[string]loadedSet
}

type loadedSet struct {
	set     any
	records []reflect.Value
}

// NewRelationContext creates an empty context with a fresh pass id.
func NewRelationContext() *RelationContext {
	return &RelationContext{
		passID: uuid.NewString(),
		loaded: make(map[string]loadedSet),
	}
}

// PassID identifies the pass in log entries.
func (rc *RelationContext) PassID() string { return rc.passID }

// Depth returns the number of keys currently on the stack.
func (rc *RelationContext) Depth() int { return len(rc.stack) }

// Stack returns a copy of the keys being resolved, outermost first.
func (rc *RelationContext) Stack() []string { return slices.Clone(rc.stack) }

// Loaded returns the set loaded for key during this pass.
func (rc *RelationContext) Loaded(key string) (any, bool) {
	ls, ok := rc.loaded[key]
	return ls.set, ok
}

func (rc *RelationContext) onStack(key string) bool {
	return slices.Contains(rc.stack, key)
}

func (rc *RelationContext) push(key string) { rc.stack = append(rc.stack, key) }

func (rc *RelationContext) pop() { rc.stack = rc.stack[:len(rc.stack)-1] }

// Resolver populates relationship properties on bound records.
type Resolver struct {
	schemas *SchemaRegistry
	loader  SetLoader
	logger  *slog.Logger
}

// NewResolver creates a Resolver. A nil logger uses slog.Default.
func NewResolver(schemas *SchemaRegistry, loader SetLoader, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{schemas: schemas, loader: loader, logger: logger}
}

// Resolve populates every eager relationship of records, a []*T or []T of a
// registered type, in place. A nil rc starts a new pass. The only error
// conditions are invalid input and a failed Loader fetch; every other problem
// is logged and leaves the affected property at its current value.
func (r *Resolver) Resolve(ctx context.Context, records any, rc *RelationContext) error {
	s, recs, err := r.inspect(records)
	if err != nil {
		return err
	}
	if rc == nil {
		rc = NewRelationContext()
	}
	log := r.logger.With("pass_id", rc.passID)

	if !rc.onStack(s.Key) {
		rc.push(s.Key)
		defer rc.pop()
	}

	log.Debug("resolving relationships", "schema", s.Key, "records", len(recs))
	return r.resolveSet(ctx, s, recs, rc, log)
}

// ResolveRelation populates the single relationship declared on field,
// regardless of its Timing. This is how Lazy relationships are filled.
func (r *Resolver) ResolveRelation(ctx context.Context, records any, field string, rc *RelationContext) error {
	s, recs, err := r.inspect(records)
	if err != nil {
		return err
	}
	rel, ok := s.Relation(field)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrNoRelationship, s.Key, field)
	}
	if rc == nil {
		rc = NewRelationContext()
	}
	log := r.logger.With("pass_id", rc.passID)

	if !rc.onStack(s.Key) {
		rc.push(s.Key)
		defer rc.pop()
	}
	return r.resolveRelation(ctx, s, recs, rel, rc, log)
}

func (r *Resolver) resolveSet(ctx context.Context, s *Schema, recs []reflect.Value, rc *RelationContext, log *slog.Logger) error {
	for _, rel := range s.Relations {
		if rel.Timing == Lazy {
			continue
		}
		if err := r.resolveRelation(ctx, s, recs, rel, rc, log); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) resolveRelation(ctx context.Context, s *Schema, recs []reflect.Value, rel Relationship, rc *RelationContext, log *slog.Logger) error {
	if rc.onStack(rel.Target) {
		log.Warn("circular relationship skipped",
			"schema", s.Key,
			"field", rel.Field,
			"target", rel.Target,
			"stack", rc.Stack(),
			"error", ErrCircularRelationship,
		)
		return nil
	}

	rc.push(rel.Target)
	defer rc.pop()

	ts, targets, err := r.targetSet(ctx, rel.Target, rc, log)
	if err != nil {
		return err
	}
	if ts == nil {
		return nil
	}

	r.link(s, recs, ts, targets, rel, log)
	return nil
}

// targetSet returns the records of key, loading and resolving them on first use
// in this pass. A nil schema means the relationship must be skipped.
func (r *Resolver) targetSet(ctx context.Context, key string, rc *RelationContext, log *slog.Logger) (*Schema, []reflect.Value, error) {
	ts, ok := r.schemas.Get(key)
	if !ok {
		log.Error("relationship target not registered, skipping", "target", key, "error", ErrUnknownSchema)
		return nil, nil, nil
	}

	if ls, ok := rc.loaded[key]; ok {
		return ts, ls.records, nil
	}

	if r.loader == nil {
		return nil, nil, fmt.Errorf("load %s: no loader configured", key)
	}
	set, err := r.loader.LoadSet(ctx, key)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", key, err)
	}

	recs, structType, err := recordValues(set)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", key, err)
	}
	if structType != nil && structType != ts.Type {
		return nil, nil, fmt.Errorf("load %s: %w: got %s, want %s", key, ErrInvalidRecords, structType, ts.Type)
	}

	rc.loaded[key] = loadedSet{set: set, records: recs}
	log.Debug("target set loaded", "target", key, "records", len(recs))

	if err := r.resolveSet(ctx, ts, recs, rc, log); err != nil {
		return nil, nil, err
	}
	return ts, recs, nil
}

// link assigns targets to every source record of rel.
func (r *Resolver) link(s *Schema, recs []reflect.Value, ts *Schema, targets []reflect.Value, rel Relationship, log *slog.Logger) {
	attrs := []any{"schema", s.Key, "field", rel.Field, "target", rel.Target}

	pk, ok := lookupField(s.Type, rel.PrimaryKey)
	if !ok {
		log.Error("primary key field not found, skipping relationship",
			append(attrs, "key", rel.PrimaryKey, "error", ErrMissingKeyProperty)...)
		return
	}
	fk, ok := lookupField(ts.Type, rel.ForeignKey)
	if !ok {
		log.Error("foreign key field not found, skipping relationship",
			append(attrs, "key", rel.ForeignKey, "error", ErrMissingKeyProperty)...)
		return
	}
	prop, ok := lookupField(s.Type, rel.Field)
	if !ok || !prop.IsExported() {
		log.Error("relationship property not settable, skipping relationship",
			append(attrs, "error", ErrMissingKeyProperty)...)
		return
	}
	assign, err := newAssigner(prop.Type, ts.Type, rel.Cardinality)
	if err != nil {
		log.Error("relationship property cannot hold target, skipping", append(attrs, "error", err)...)
		return
	}

	index := make(map[any][]reflect.Value, len(targets))
	for _, t := range targets {
		fv, err := t.Elem().FieldByIndexErr(fk.Index)
		if err != nil {
			continue
		}
		if key, ok := normalizeKey(fv); ok {
			index[key] = append(index[key], t)
		}
	}

	ambiguous := 0
	for _, rec := range recs {
		pv, err := rec.Elem().FieldByIndexErr(pk.Index)
		if err != nil {
			continue
		}
		dst, err := rec.Elem().FieldByIndexErr(prop.Index)
		if err != nil || !dst.CanSet() {
			continue
		}

		var matches []reflect.Value
		if key, ok := normalizeKey(pv); ok {
			matches = index[key]
		}

		if rel.Cardinality == Many {
			assign.many(dst, matches)
			continue
		}
		if len(matches) == 0 {
			continue
		}
		if len(matches) > 1 {
			ambiguous++
		}
		assign.one(dst, matches[0])
	}

	if ambiguous > 0 {
		log.Warn("one-to-one relationship matched several targets, kept first match",
			append(attrs, "ambiguous_records", ambiguous)...)
	}
}

// assigner writes target record pointers into a relationship property.
type assigner struct {
	prop reflect.Type
	elem func(ptr reflect.Value) reflect.Value
}

func newAssigner(prop, target reflect.Type, card Cardinality) (assigner, error) {
	dst := prop
	if card == Many {
		if prop.Kind() != reflect.Slice {
			return assigner{}, fmt.Errorf("one-to-many property is %s, want a slice", prop)
		}
		dst = prop.Elem()
	}

	ptrType := reflect.PointerTo(target)
	switch {
	case dst == ptrType, dst.Kind() == reflect.Interface && ptrType.Implements(dst):
		return assigner{prop: prop, elem: func(p reflect.Value) reflect.Value { return p }}, nil
	case dst == target:
		return assigner{prop: prop, elem: reflect.Value.Elem}, nil
	default:
		return assigner{}, fmt.Errorf("property %s cannot hold %s", prop, ptrType)
	}
}

func (a assigner) one(dst, ptr reflect.Value) {
	dst.Set(a.elem(ptr))
}

func (a assigner) many(dst reflect.Value, ptrs []reflect.Value) {
	list := reflect.MakeSlice(a.prop, 0, len(ptrs))
	for _, p := range ptrs {
		list = reflect.Append(list, a.elem(p))
	}
	dst.Set(list)
}

// normalizeKey maps a key field to a comparable value so keys of different
// numeric or named types compare by value. ok is false for nil keys.
func normalizeKey(v reflect.Value) (any, bool) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}

	switch kind := v.Kind(); {
	case isIntKind(kind):
		return v.Int(), true
	case isUintKind(kind):
		if u := v.Uint(); u <= math.MaxInt64 {
			return int64(u), true
		}
		return v.Uint(), true
	case kind == reflect.Float32 || kind == reflect.Float64:
		f := v.Float()
		if f == math.Trunc(f) && math.Abs(f) < math.MaxInt64 {
			return int64(f), true
		}
		return f, true
	case kind == reflect.String:
		return v.String(), true
	case kind == reflect.Bool:
		return v.Bool(), true
	}

	if v.Type().Comparable() {
		return v.Interface(), true
	}
	return fmt.Sprint(v.Interface()), true
}

// inspect finds the schema and record pointers of a caller-supplied set.
func (r *Resolver) inspect(records any) (*Schema, []reflect.Value, error) {
	recs, structType, err := recordValues(records)
	if err != nil {
		return nil, nil, err
	}
	if structType == nil {
		structType = elemStructType(reflect.TypeOf(records))
	}
	s, ok := r.schemas.ByType(structType)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnknownSchema, structType)
	}
	return s, recs, nil
}

// recordValues returns a pointer for each record in set and the struct type
// of the records. The type is nil for an empty []any.
func recordValues(set any) ([]reflect.Value, reflect.Type, error) {
	v := reflect.ValueOf(set)
	if v.Kind() == reflect.Pointer && !v.IsNil() && v.Elem().Kind() == reflect.Slice {
		v = v.Elem()
	}
	if v.Kind() != reflect.Slice {
		return nil, nil, fmt.Errorf("%w: got %T", ErrInvalidRecords, set)
	}

	structType := elemStructType(v.Type())
	out := make([]reflect.Value, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		e := v.Index(i)
		switch e.Kind() {
		case reflect.Struct:
			out = append(out, e.Addr())
			continue
		case reflect.Interface:
			e = e.Elem()
		}
		if e.Kind() != reflect.Pointer || e.IsNil() || e.Elem().Kind() != reflect.Struct {
			continue
		}
		if structType == nil {
			structType = e.Elem().Type()
		}
		if e.Elem().Type() != structType {
			return nil, nil, fmt.Errorf("%w: mixed record types %s and %s", ErrInvalidRecords, structType, e.Elem().Type())
		}
		out = append(out, e)
	}

	if structType == nil && v.Type().Elem().Kind() != reflect.Interface {
		return nil, nil, fmt.Errorf("%w: got %T", ErrInvalidRecords, set)
	}
	return out, structType, nil
}

// elemStructType returns T for []T, []*T and *[]T; nil otherwise.
func elemStructType(t reflect.Type) reflect.Type {
	if t == nil {
		return nil
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Slice {
		return nil
	}
	e := t.Elem()
	if e.Kind() == reflect.Pointer {
		e = e.Elem()
	}
	if e.Kind() != reflect.Struct {
		return nil
	}
	return e
}
