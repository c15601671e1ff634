// Package tabular turns a job's raw per-entity record lists into tables.
package tabular

import (
	"maps"
	"sort"

	"validation-worker/internal/domain"
)

// Table is an ordered set of rows sharing the union of their field names.
type Table struct {
	columns []string
	rows    []domain.Record
}

func newTable(records []domain.Record) *Table {
	seen := make(map[string]struct{})
	columns := []string{}
	for _, rec := range records {
		for field := range rec {
			if _, ok := seen[field]; !ok {
				seen[field] = struct{}{}
				columns = append(columns, field)
			}
		}
	}
	sort.Strings(columns)

	return &Table{columns: columns, rows: cloneRecords(records)}
}

func cloneRecords(records []domain.Record) []domain.Record {
	out := make([]domain.Record, len(records))
	for i, rec := range records {
		out[i] = cloneRecord(rec)
	}
	return out
}

// cloneRecord copies rec down through nested JSON objects and arrays so no
// map or slice is shared with the caller.
func cloneRecord(rec domain.Record) domain.Record {
	if rec == nil {
		return nil
	}
	out := maps.Clone(rec)
	for k, v := range out {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return map[string]any(cloneRecord(val))
	case domain.Record:
		return cloneRecord(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool { return len(t.rows) == 0 }

// Columns returns the sorted field names present in any row.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Rows returns copies of the rows in source order.
func (t *Table) Rows() []domain.Record {
	return cloneRecords(t.rows)
}

// Column returns one value per row for the named field; rows lacking the
// field yield nil.
func (t *Table) Column(name string) []any {
	out := make([]any, len(t.rows))
	for i, rec := range t.rows {
		out[i] = cloneValue(rec[name])
	}
	return out
}

// Batch maps each entity of a validator's fixed list to its table.
type Batch struct {
	names  []domain.EntityName
	tables map[domain.EntityName]*Table
}

// Materialize builds one table per name. Names absent from raw produce an
// empty table; rows are passed through without schema checks.
func Materialize(raw map[domain.EntityName][]domain.Record, names []domain.EntityName) *Batch {
	b := &Batch{
		names:  make([]domain.EntityName, 0, len(names)),
		tables: make(map[domain.EntityName]*Table, len(names)),
	}
	for _, name := range names {
		if _, dup := b.tables[name]; dup {
			continue
		}
		b.names = append(b.names, name)
		b.tables[name] = newTable(raw[name])
	}
	return b
}

// Names returns the entity names in materialization order.
func (b *Batch) Names() []domain.EntityName {
	out := make([]domain.EntityName, len(b.names))
	copy(out, b.names)
	return out
}

// Table returns the table for name, or an empty table when the name is not
// part of the batch.
func (b *Batch) Table(name domain.EntityName) *Table {
	if t, ok := b.tables[name]; ok {
		return t
	}
	return newTable(nil)
}

// Raw renders the batch back to entity -> records, the wire shape expected
// by remote validators. Every materialized entity is present.
func (b *Batch) Raw() map[domain.EntityName][]domain.Record {
	out := make(map[domain.EntityName][]domain.Record, len(b.names))
	for _, name := range b.names {
		out[name] = b.tables[name].Rows()
	}
	return out
}
