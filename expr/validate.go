package expr

import "github.com/celesta-db/celesta"

var comparableTypes = map[Type]bool{
	DATE:    true,
	NUMERIC: true,
	TEXT:    true,
}

// ValidateTypes enforces the invariants of spec.md §3 bottom-up: children
// are validated (and therefore resolved to their final Type()) before
// their parent's invariant is checked.
func ValidateTypes(n Node) error {
	if n == nil {
		return nil
	}
	for _, child := range n.Children() {
		if err := ValidateTypes(child); err != nil {
			return err
		}
	}

	switch v := n.(type) {
	case *Relop:
		lt, rt := v.Left.Type(), v.Right.Type()
		if v.Op == LIKE && lt != TEXT {
			return celesta.New(celesta.KindTypeMismatch, "LIKE requires a TEXT left operand, got %s", lt)
		}
		if !comparableTypes[lt] || !comparableTypes[rt] {
			return celesta.New(celesta.KindTypeMismatch, "relop operands must be DATE, NUMERIC, or TEXT, got %s and %s", lt, rt)
		}
		if lt != rt {
			return celesta.New(celesta.KindTypeMismatch, "relop operands must match: %s vs %s", lt, rt)
		}
	case *IsNull:
		if v.Operand.Type() == LOGIC {
			return celesta.New(celesta.KindTypeMismatch, "IS NULL operand must not be LOGIC")
		}
	case *Not:
		if v.Operand.Type() != LOGIC {
			return celesta.New(celesta.KindTypeMismatch, "NOT operand must be LOGIC, got %s", v.Operand.Type())
		}
	case *BinaryLogicalOp:
		for _, o := range v.Operands {
			if o.Type() != LOGIC {
				return celesta.New(celesta.KindTypeMismatch, "%s operand must be LOGIC, got %s", v.Op.csqlSpelling(), o.Type())
			}
		}
	case *BinaryTermOp:
		want := NUMERIC
		if v.Op == CONCAT {
			want = TEXT
		}
		for _, o := range v.Operands {
			if o.Type() != want {
				return celesta.New(celesta.KindTypeMismatch, "%s operand must be %s, got %s", v.Op.csqlSpelling(), want, o.Type())
			}
		}
		v.resolved = want
	case *UnaryMinus:
		if v.Operand.Type() != NUMERIC {
			return celesta.New(celesta.KindTypeMismatch, "unary minus operand must be NUMERIC, got %s", v.Operand.Type())
		}
	case *In:
		opType := v.Operand.Type()
		if !comparableTypes[opType] {
			return celesta.New(celesta.KindTypeMismatch, "IN operand must be DATE, NUMERIC, or TEXT, got %s", opType)
		}
		for _, item := range v.List {
			if item.Type() != opType {
				return celesta.New(celesta.KindTypeMismatch, "IN list element must match operand type %s, got %s", opType, item.Type())
			}
		}
	case *Between:
		opType := v.Operand.Type()
		if !comparableTypes[opType] {
			return celesta.New(celesta.KindTypeMismatch, "BETWEEN operand must be DATE, NUMERIC, or TEXT, got %s", opType)
		}
		if v.Low.Type() != opType || v.High.Type() != opType {
			return celesta.New(celesta.KindTypeMismatch, "BETWEEN bounds must match operand type %s", opType)
		}
	case *FieldRef:
		if !v.resolved {
			return celesta.New(celesta.KindUnresolvedField, "field %q was never resolved before ValidateTypes", v.ColumnName)
		}
	}

	return nil
}
