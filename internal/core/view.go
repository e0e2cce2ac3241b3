package core

import (
	"reflect"
)

// RecordView is an acyclic snapshot of one bound record: every mapped column
// by header name and, for each relationship property, how many records it
// currently references.
type RecordView struct {
	Columns   map[string]any `json:"columns"`
	Relations map[string]int `json:"relations,omitempty"`
}

// Views snapshots a bound set. Relationship properties are reduced to
// counts because resolved graphs may be cyclic.
func (s *Schema) Views(set any) ([]RecordView, error) {
	recs, _, err := recordValues(set)
	if err != nil {
		return nil, err
	}

	out := make([]RecordView, 0, len(recs))
	for _, rec := range recs {
		elem := rec.Elem()
		view := RecordView{Columns: make(map[string]any, len(s.Columns))}

		for _, col := range s.Columns {
			if col.ftype == nil {
				continue
			}
			fv, err := elem.FieldByIndexErr(col.index)
			if err != nil {
				continue
			}
			view.Columns[col.Column] = fv.Interface()
		}

		for _, rel := range s.Relations {
			f, ok := lookupField(s.Type, rel.Field)
			if !ok {
				continue
			}
			fv, err := elem.FieldByIndexErr(f.Index)
			if err != nil {
				continue
			}
			if view.Relations == nil {
				view.Relations = make(map[string]int, len(s.Relations))
			}
			view.Relations[rel.Field] = referenceCount(fv)
		}

		out = append(out, view)
	}
	return out, nil
}

func referenceCount(v reflect.Value) int {
	switch v.Kind() {
	case reflect.Slice:
		return v.Len()
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return 0
		}
		return 1
	case reflect.Struct:
		if v.IsZero() {
			return 0
		}
		return 1
	}
	return 0
}
