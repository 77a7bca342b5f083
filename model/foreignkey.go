package model

import "github.com/celesta-db/celesta"

// ForeignKey is built in three steps: NewForeignKey (empty), AddColumn
// (repeated), SetReferencedTable (registers the FK on its parent table,
// but leaves ReferencedTable nil), then resolveReferences (run by
// Score.ResolveReferences) which looks the target table up and requires
// its primary key to equal the declared referenced columns in order.
type ForeignKey struct {
	parent *Table

	columns []string

	referencedGrainName string
	referencedTableName string
	referencedColumns   []string

	referencedTable *Table
	resolved        bool
}

// Table returns the table this foreign key belongs to.
func (fk *ForeignKey) Table() *Table { return fk.parent }

// AddColumn appends a local column, which must already exist on the
// parent table and must not be repeated.
func (fk *ForeignKey) AddColumn(name string) error {
	if _, ok := fk.parent.Column(name); !ok {
		return celesta.New(celesta.KindUnknownColumn, "foreign key column %q is not a column of table %q", name, fk.parent.name)
	}
	for _, existing := range fk.columns {
		if existing == name {
			return celesta.New(celesta.KindDuplicateColumn, "foreign key column %q is repeated", name)
		}
	}
	fk.columns = append(fk.columns, name)
	return nil
}

// Columns returns the local column names, in declaration order.
func (fk *ForeignKey) Columns() []string {
	cols := make([]string, len(fk.columns))
	copy(cols, fk.columns)
	return cols
}

// SetReferencedTable declares the referenced (grainName, tableName) and
// column list, and registers the FK in its parent table's foreign key
// set. The referenced table itself is not looked up until
// resolveReferences runs.
func (fk *ForeignKey) SetReferencedTable(grainName, tableName string, referencedColumns []string) {
	fk.referencedGrainName = grainName
	fk.referencedTableName = tableName
	fk.referencedColumns = append([]string(nil), referencedColumns...)
	fk.parent.foreignKeys = append(fk.parent.foreignKeys, fk)
}

// ReferencedTable returns the resolved target table, or nil before
// resolveReferences has succeeded.
func (fk *ForeignKey) ReferencedTable() *Table { return fk.referencedTable }

// IsResolved reports whether resolveReferences has succeeded for this FK.
func (fk *ForeignKey) IsResolved() bool { return fk.resolved }

// ReferencedColumns returns the declared referenced column names, in
// order.
func (fk *ForeignKey) ReferencedColumns() []string {
	cols := make([]string, len(fk.referencedColumns))
	copy(cols, fk.referencedColumns)
	return cols
}

// resolveReferences looks up the referenced grain and table in score and
// requires the declared referenced columns to equal that table's
// primary key, in order. It is idempotent: calling it again after a
// successful resolution re-derives the same result.
func (fk *ForeignKey) resolveReferences(score *Score) error {
	grain, ok := score.Grain(fk.referencedGrainName)
	if !ok {
		return celesta.NewParse(celesta.KindUnknownColumn, "foreign key on table %q references unknown grain %q", fk.parent.name, fk.referencedGrainName)
	}
	table, ok := grain.Table(fk.referencedTableName)
	if !ok {
		return celesta.NewParse(celesta.KindUnknownColumn, "foreign key on table %q references unknown table %q in grain %q", fk.parent.name, fk.referencedTableName, fk.referencedGrainName)
	}
	pk := table.PrimaryKey()
	if !stringSlicesEqual(pk, fk.referencedColumns) {
		return celesta.NewParse(celesta.KindFKReferencedColsNotPK, "foreign key on table %q references columns %v of table %q, which are not that table's primary key %v", fk.parent.name, fk.referencedColumns, fk.referencedTableName, pk)
	}
	fk.referencedTable = table
	fk.resolved = true
	return nil
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
