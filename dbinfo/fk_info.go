package dbinfo

import "github.com/celesta-db/celesta/model"

// DbFkInfo is the live shape of one foreign key constraint.
type DbFkInfo struct {
	Name              string
	TableName         string
	Columns           []string
	ReferencedTable   string
	ReferencedColumns []string
}

// Reflects reports whether the live FK matches fk's declared columns and
// resolved reference exactly. fk must already be resolved (ReferencedTable
// non-nil); an unresolved fk never reflects any live state.
func (f DbFkInfo) Reflects(fk *model.ForeignKey) bool {
	ref := fk.ReferencedTable()
	if ref == nil {
		return false
	}
	return stringSliceEqual(f.Columns, fk.Columns()) &&
		f.ReferencedTable == ref.Name() &&
		stringSliceEqual(f.ReferencedColumns, fk.ReferencedColumns())
}
