package dbinfo

import "github.com/celesta-db/celesta/model"

// DbPkInfo is the live primary key of one table.
type DbPkInfo struct {
	TableName string
	Columns   []string
}

// Reflects reports whether the live PK column order matches table's
// finalized primary key exactly.
func (p DbPkInfo) Reflects(table *model.Table) bool {
	return stringSliceEqual(p.Columns, table.PrimaryKey())
}

func stringSliceEqual(a, b []string) bool {
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
