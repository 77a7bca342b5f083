package dbinfo

import "github.com/celesta-db/celesta/model"

// DbIndexInfo is the live shape of one index.
type DbIndexInfo struct {
	Name      string
	TableName string
	Columns   []string
}

// Reflects reports whether the live index matches idx's table and
// column order exactly.
func (i DbIndexInfo) Reflects(idx *model.Index) bool {
	return i.TableName == idx.Table().Name() && stringSliceEqual(i.Columns, idx.Columns())
}
