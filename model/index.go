package model

import (
	"github.com/celesta-db/celesta"
	"github.com/celesta-db/celesta/ident"
)

// Index is an ordered list of columns of one table, named uniquely within
// its grain.
type Index struct {
	grain   *Grain
	name    string
	table   *Table
	columns []string
}

// NewIndex constructs an index over columns of table, which must belong
// to grain, rejecting unknown columns and a grain-wide duplicate name.
func NewIndex(grain *Grain, name string, table *Table, columns []string) (*Index, error) {
	if grain.finalized {
		return nil, celesta.New(celesta.KindIllegalState, "grain %q is finalized, cannot add index %q", grain.name, name)
	}
	if err := ident.Validate(name); err != nil {
		return nil, err
	}
	if _, exists := grain.indices[name]; exists {
		return nil, celesta.New(celesta.KindIllegalState, "index %q already exists in grain %q", name, grain.name)
	}
	if table.grain != grain {
		return nil, celesta.New(celesta.KindIllegalState, "index %q's table %q does not belong to grain %q", name, table.name, grain.name)
	}
	if len(columns) == 0 {
		return nil, celesta.New(celesta.KindIllegalState, "index %q must cover at least one column", name)
	}
	for _, col := range columns {
		if _, ok := table.Column(col); !ok {
			return nil, celesta.New(celesta.KindUnknownColumn, "index %q references unknown column %q of table %q", name, col, table.name)
		}
	}
	idx := &Index{
		grain:   grain,
		name:    name,
		table:   table,
		columns: append([]string(nil), columns...),
	}
	grain.indices[name] = idx
	grain.indexOrder = append(grain.indexOrder, name)
	return idx, nil
}

func (i *Index) Grain() *Grain        { return i.grain }
func (i *Index) Name() string         { return i.name }
func (i *Index) Table() *Table        { return i.table }
func (i *Index) ElementClass() string { return ElementClassIndex }

func (i *Index) Columns() []string {
	cols := make([]string, len(i.columns))
	copy(cols, i.columns)
	return cols
}

// GetReferences: an index's only dependency is the table it indexes,
// which always lives in the same grain, so it contributes no cross-grain
// edge.
func (i *Index) GetReferences() []GrainElementReference {
	return []GrainElementReference{{GrainName: i.grain.name, ElementName: i.table.name, ElementClass: ElementClassTable}}
}
