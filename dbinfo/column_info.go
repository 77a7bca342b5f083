// Package dbinfo holds the dialect-neutral introspection DTOs the
// updater compares against the in-memory model: one type per schema
// object (column, primary key, foreign key, index, sequence), each with
// a Reflects method that is the sole oracle of "no DDL needed" for that
// object (§4.D). Dialect adaptors populate these DTOs from live
// `information_schema`/catalog queries and supply a DefaultNormalizer to
// paper over dialect-specific default-value spelling.
package dbinfo

import (
	"github.com/celesta-db/celesta/expr"
	"github.com/celesta-db/celesta/model"
)

// DefaultNormalizer canonicalizes a default-value literal (or
// expression) so that dialect-specific spelling differences (e.g.
// `CURRENT_TIMESTAMP` vs `now()`, quoting) do not cause a spurious
// "not reflected" result. A nil normalizer compares raw text.
type DefaultNormalizer func(raw string) string

// DbColumnInfo is the live shape of one column.
type DbColumnInfo struct {
	Name       string
	Type       expr.Type
	Nullable   bool
	HasDefault bool
	Default    string
	Identity   bool
}

// Reflects reports whether this live column matches col, using normalize
// to canonicalize both sides' default text before comparing. It is
// reflexive and symmetric by construction: two DbColumnInfo values with
// identical fields always compare equal regardless of which one plays
// "live" vs "model" in a given call site.
func (c DbColumnInfo) Reflects(col model.Column, normalize DefaultNormalizer) bool {
	if c.Type != col.ExprType() {
		return false
	}
	if c.Nullable != col.Nullable() {
		return false
	}
	modelDefault, modelHasDefault := col.Default()
	if c.HasDefault != modelHasDefault {
		return false
	}
	if modelHasDefault {
		dbText, modelText := c.Default, modelDefault
		if normalize != nil {
			dbText = normalize(dbText)
			modelText = normalize(modelText)
		}
		if dbText != modelText {
			return false
		}
	}
	if intCol, ok := col.(*model.IntegerColumn); ok {
		if c.Identity != intCol.Identity {
			return false
		}
	}
	return true
}
