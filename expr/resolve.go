package expr

import "github.com/celesta-db/celesta"

// TableRef is the minimal view a table (or view-alias) presents to field
// resolution, so that expr does not need to import the model package (the
// model package imports expr, not the other way around).
type TableRef interface {
	GrainName() string
	TableName() string
	// ColumnType returns the resolved expr.Type of columnName and true, or
	// (UNDEFINED, false) if the table has no such column.
	ColumnType(columnName string) (Type, bool)
}

// ResolveFieldRefs walks the tree rooted at n and, for every FieldRef,
// searches tables per the §4.B rules:
//
//   - grainName and tableOrAlias both given: must match exactly, no
//     ambiguity is possible.
//   - only tableOrAlias given: match by table alias.
//   - neither given: match by column name across all tables; exactly one
//     must contain it.
//
// Zero matches fails with KindUnresolvedField; more than one fails with
// KindAmbiguousField.
func ResolveFieldRefs(n Node, tables []TableRef) error {
	if n == nil {
		return nil
	}
	if ref, ok := n.(*FieldRef); ok {
		if err := resolveOne(ref, tables); err != nil {
			return err
		}
	}
	for _, child := range n.Children() {
		if err := ResolveFieldRefs(child, tables); err != nil {
			return err
		}
	}
	return nil
}

func resolveOne(ref *FieldRef, tables []TableRef) error {
	var matches []TableRef

	switch {
	case ref.GrainName != "" && ref.TableOrAlias != "":
		for _, t := range tables {
			if t.GrainName() == ref.GrainName && t.TableName() == ref.TableOrAlias {
				if _, ok := t.ColumnType(ref.ColumnName); ok {
					matches = append(matches, t)
				}
			}
		}
	case ref.TableOrAlias != "":
		for _, t := range tables {
			if t.TableName() == ref.TableOrAlias {
				if _, ok := t.ColumnType(ref.ColumnName); ok {
					matches = append(matches, t)
				}
			}
		}
	default:
		for _, t := range tables {
			if _, ok := t.ColumnType(ref.ColumnName); ok {
				matches = append(matches, t)
			}
		}
	}

	switch len(matches) {
	case 0:
		return celesta.New(celesta.KindUnresolvedField, "field %q could not be resolved against any referenced table", ref.ColumnName)
	case 1:
		t := matches[0]
		colType, _ := t.ColumnType(ref.ColumnName)
		ref.resolved = true
		ref.resolvedType = colType
		ref.resolvedTable = t.TableName()
		return nil
	default:
		return celesta.New(celesta.KindAmbiguousField, "field %q is ambiguous across %d referenced tables", ref.ColumnName, len(matches))
	}
}
