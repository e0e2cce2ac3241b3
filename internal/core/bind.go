package core

import (
	"fmt"
	"log/slog"
	"reflect"
)

// BindReport summarizes one Bind call.
type BindReport struct {
	Rows           int      // Records produced
	Malformed      int      // Cells replaced by their zero value
	MissingColumns []string // Mapped columns absent from the header
}

// Binder builds typed records from tokenized rows.
type Binder struct {
	converters *Converters
	logger     *slog.Logger
}

// NewBinder creates a Binder. A nil converters uses DefaultConverters; a nil
// logger uses slog.Default.
func NewBinder(converters *Converters, logger *slog.Logger) *Binder {
	if converters == nil {
		converters = DefaultConverters()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Binder{converters: converters, logger: logger}
}

// Bind converts every row into a record of the schema's type and returns the
// records as a []*T held in an any. Missing columns and malformed cells leave
// the field at its zero value.
func (b *Binder) Bind(s *Schema, header []string, rows [][]string) (any, BindReport) {
	var report BindReport
	headerIdx := MakeHeaderIndex(header)

	// Pre-compute column positions once for all rows
	positions := make([]int, len(s.Columns))
	for i, col := range s.Columns {
		if col.ftype == nil {
			// Not resolved by SchemaRegistry.Register
			positions[i] = -1
			continue
		}
		pos, ok := headerIdx.Lookup(col.Column)
		if !ok {
			pos = -1
			report.MissingColumns = append(report.MissingColumns, col.Column)
		}
		positions[i] = pos
	}
	if len(report.MissingColumns) > 0 {
		b.logger.Warn("columns missing from header",
			"schema", s.Key,
			"columns", report.MissingColumns,
		)
	}

	records := reflect.MakeSlice(reflect.SliceOf(reflect.PointerTo(s.Type)), 0, len(rows))
	for rowNum, row := range rows {
		rec := reflect.New(s.Type)
		report.Malformed += b.bindRow(s, rec.Elem(), row, positions, rowNum)
		records = reflect.Append(records, rec)
	}

	report.Rows = records.Len()
	return records.Interface(), report
}

func (b *Binder) bindRow(s *Schema, rec reflect.Value, row []string, positions []int, rowNum int) int {
	malformed := 0
	for i, col := range s.Columns {
		pos := positions[i]
		if pos < 0 || pos >= len(row) {
			continue
		}

		v, err := b.converters.ConvertValue(row[pos], col.ftype, col.Converter)
		if err != nil {
			malformed++
			b.logger.Warn("malformed field, using zero value",
				"schema", s.Key,
				"row", rowNum,
				"column", col.Column,
				"error", err,
			)
		}

		field, ferr := rec.FieldByIndexErr(col.index)
		if ferr != nil {
			// Nil embedded pointer on the path
			b.logger.Error("field not reachable", "schema", s.Key, "field", col.Field, "error", ferr)
			continue
		}
		field.Set(v)
	}
	return malformed
}

// BindRecords binds rows into []*T using the schema registered for T.
func BindRecords[T any](b *Binder, schemas *SchemaRegistry, header []string, rows [][]string) ([]*T, BindReport, error) {
	t := reflect.TypeFor[T]()
	s, ok := schemas.ByType(t)
	if !ok {
		return nil, BindReport{}, fmt.Errorf("%w: %s", ErrUnknownSchema, t)
	}
	out, report := b.Bind(s, header, rows)
	return out.([]*T), report, nil
}
