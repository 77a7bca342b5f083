package model

import (
	"github.com/celesta-db/celesta"
	"github.com/celesta-db/celesta/expr"
	"github.com/celesta-db/celesta/ident"
)

// Table is constructed in two phases: columns and PK columns are added
// while !finalized, finalizePK locks the PK exactly once, and
// resolveReferences (driven by Grain/Score) resolves its foreign keys.
// After the owning Grain is finalized, AddColumn/AddPKColumn/FinalizePK
// all fail with KindIllegalState.
type Table struct {
	grain      *Grain
	name       string
	autoupdate bool
	versioned  bool

	columnOrder []string
	columns     map[string]Column

	pkColumns   []string
	pkFinalized bool

	foreignKeys []*ForeignKey

	finalized bool
}

// NewTable constructs an empty table and registers it on grain.
func NewTable(grain *Grain, name string, autoupdate, versioned bool) (*Table, error) {
	if grain.finalized {
		return nil, celesta.New(celesta.KindIllegalState, "grain %q is finalized, cannot add table %q", grain.name, name)
	}
	if err := ident.Validate(name); err != nil {
		return nil, err
	}
	if _, exists := grain.tables[name]; exists {
		return nil, celesta.New(celesta.KindIllegalState, "table %q already exists in grain %q", name, grain.name)
	}
	t := &Table{
		grain:      grain,
		name:       name,
		autoupdate: autoupdate,
		versioned:  versioned,
		columns:    make(map[string]Column),
	}
	grain.tables[name] = t
	grain.tableOrder = append(grain.tableOrder, name)
	return t, nil
}

func (t *Table) Grain() *Grain        { return t.grain }
func (t *Table) Name() string         { return t.name }
func (t *Table) Autoupdate() bool     { return t.autoupdate }
func (t *Table) Versioned() bool      { return t.versioned }
func (t *Table) ElementClass() string { return ElementClassTable }

// AddColumn appends a column, rejecting duplicates by name.
func (t *Table) AddColumn(col Column) error {
	if t.finalized {
		return celesta.New(celesta.KindIllegalState, "table %q is finalized, cannot add column %q", t.name, col.Name())
	}
	if err := ident.Validate(col.Name()); err != nil {
		return err
	}
	if _, exists := t.columns[col.Name()]; exists {
		return celesta.New(celesta.KindDuplicateColumn, "column %q already exists in table %q", col.Name(), t.name)
	}
	t.columns[col.Name()] = col
	t.columnOrder = append(t.columnOrder, col.Name())
	return nil
}

// Column looks up a column by name.
func (t *Table) Column(name string) (Column, bool) {
	c, ok := t.columns[name]
	return c, ok
}

// Columns returns the table's columns in declaration order.
func (t *Table) Columns() []Column {
	cols := make([]Column, len(t.columnOrder))
	for i, name := range t.columnOrder {
		cols[i] = t.columns[name]
	}
	return cols
}

// AddPKColumn appends an existing column to the primary key, in order.
func (t *Table) AddPKColumn(name string) error {
	if t.finalized {
		return celesta.New(celesta.KindIllegalState, "table %q is finalized, cannot add PK column %q", t.name, name)
	}
	if t.pkFinalized {
		return celesta.New(celesta.KindIllegalState, "table %q's primary key is already finalized", t.name)
	}
	if _, exists := t.columns[name]; !exists {
		return celesta.New(celesta.KindUnknownColumn, "column %q is not a column of table %q", name, t.name)
	}
	for _, existing := range t.pkColumns {
		if existing == name {
			return celesta.New(celesta.KindDuplicateColumn, "column %q is already part of table %q's primary key", name, t.name)
		}
	}
	t.pkColumns = append(t.pkColumns, name)
	return nil
}

// FinalizePK locks the primary key. It may be called exactly once and
// requires at least one PK column.
func (t *Table) FinalizePK() error {
	if t.finalized {
		return celesta.New(celesta.KindIllegalState, "table %q is finalized, cannot finalize its primary key", t.name)
	}
	if t.pkFinalized {
		return celesta.New(celesta.KindIllegalState, "table %q's primary key is already finalized", t.name)
	}
	if len(t.pkColumns) == 0 {
		return celesta.New(celesta.KindMissingPK, "table %q has no primary key columns", t.name)
	}
	t.pkFinalized = true
	return nil
}

// PrimaryKey returns the finalized, ordered PK column names.
func (t *Table) PrimaryKey() []string {
	pk := make([]string, len(t.pkColumns))
	copy(pk, t.pkColumns)
	return pk
}

// PKFinalized reports whether FinalizePK has been called.
func (t *Table) PKFinalized() bool { return t.pkFinalized }

// NewForeignKey constructs an empty foreign key owned by this table. It is
// not yet registered in t.ForeignKeys() until SetReferencedTable runs.
func (t *Table) NewForeignKey() *ForeignKey {
	return &ForeignKey{parent: t}
}

// ForeignKeys returns the table's registered foreign keys.
func (t *Table) ForeignKeys() []*ForeignKey {
	fks := make([]*ForeignKey, len(t.foreignKeys))
	copy(fks, t.foreignKeys)
	return fks
}

// resolveReferences resolves every registered foreign key against score.
func (t *Table) resolveReferences(score *Score) error {
	for _, fk := range t.foreignKeys {
		if err := fk.resolveReferences(score); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) finalize() {
	t.finalized = true
}

// GetReferences returns one edge per declared foreign key, pointing at its
// declared (not necessarily yet resolved) target.
func (t *Table) GetReferences() []GrainElementReference {
	refs := make([]GrainElementReference, 0, len(t.foreignKeys))
	for _, fk := range t.foreignKeys {
		refs = append(refs, GrainElementReference{
			GrainName:    fk.referencedGrainName,
			ElementName:  fk.referencedTableName,
			ElementClass: ElementClassTable,
		})
	}
	return refs
}

// expr.TableRef implementation, so a table can be resolved against
// directly by view/parameterized-view expression trees.

func (t *Table) GrainName() string { return t.grain.Name() }
func (t *Table) TableName() string { return t.name }

func (t *Table) ColumnType(name string) (expr.Type, bool) {
	col, ok := t.columns[name]
	if !ok {
		return expr.UNDEFINED, false
	}
	return col.ExprType(), true
}
