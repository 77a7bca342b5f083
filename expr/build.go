package expr

import "github.com/celesta-db/celesta"

// Construction checks structural preconditions eagerly whenever an
// operand's type is already statically known (literals, sub-Relops,
// nested logical ops). An operand built from an as-yet-unresolved
// FieldRef is UNDEFINED at construction time and is let through; the full
// invariant is re-checked by ValidateTypes once resolution has run.

func knownAndWrongLogic(n Node) bool {
	t := n.Type()
	return t != UNDEFINED && t != LOGIC
}

func knownAndWrongNumeric(n Node) bool {
	t := n.Type()
	return t != UNDEFINED && t != NUMERIC
}

// NewParenthesized wraps inner, preserving it for canonical rendering.
func NewParenthesized(inner Node) *Parenthesized {
	return &Parenthesized{Inner: inner}
}

// NewRelop builds a comparison. LIKE additionally requires a statically
// TEXT-or-undefined left operand.
func NewRelop(op RelopKind, left, right Node) (*Relop, error) {
	if op == LIKE {
		t := left.Type()
		if t != UNDEFINED && t != TEXT {
			return nil, celesta.New(celesta.KindTypeMismatch, "LIKE requires a TEXT left operand, got %s", t)
		}
	}
	return &Relop{Op: op, Left: left, Right: right}, nil
}

// NewIn builds `operand IN (list...)`.
func NewIn(operand Node, list []Node) (*In, error) {
	if len(list) == 0 {
		return nil, celesta.New(celesta.KindTypeMismatch, "IN requires a non-empty list")
	}
	return &In{Operand: operand, List: list}, nil
}

// NewBetween builds `operand BETWEEN low AND high`.
func NewBetween(operand, low, high Node) *Between {
	return &Between{Operand: operand, Low: low, High: high}
}

// NewIsNull builds `operand IS NULL`, rejecting a statically LOGIC operand.
func NewIsNull(operand Node) (*IsNull, error) {
	if operand.Type() == LOGIC {
		return nil, celesta.New(celesta.KindTypeMismatch, "IS NULL operand must not be LOGIC")
	}
	return &IsNull{Operand: operand}, nil
}

// NewNot builds `NOT operand`, rejecting a statically non-LOGIC operand.
func NewNot(operand Node) (*Not, error) {
	if knownAndWrongLogic(operand) {
		return nil, celesta.New(celesta.KindTypeMismatch, "NOT operand must be LOGIC, got %s", operand.Type())
	}
	return &Not{Operand: operand}, nil
}

// NewBinaryLogicalOp builds a non-empty AND/OR chain, rejecting an empty
// operand list and any statically non-LOGIC operand.
func NewBinaryLogicalOp(op LogicalOp, operands []Node) (*BinaryLogicalOp, error) {
	if len(operands) == 0 {
		return nil, celesta.New(celesta.KindTypeMismatch, "BinaryLogicalOp requires at least one operand")
	}
	for _, o := range operands {
		if knownAndWrongLogic(o) {
			return nil, celesta.New(celesta.KindTypeMismatch, "BinaryLogicalOp operand must be LOGIC, got %s", o.Type())
		}
	}
	return &BinaryLogicalOp{Op: op, Operands: operands}, nil
}

// NewBinaryTermOp builds a non-empty arithmetic/concatenation chain. CONCAT
// requires all-TEXT operands and yields TEXT; the rest require all-NUMERIC
// operands and yield NUMERIC. Operands whose type is still UNDEFINED are
// let through; ValidateTypes re-checks after resolution.
func NewBinaryTermOp(op TermOp, operands []Node) (*BinaryTermOp, error) {
	if len(operands) == 0 {
		return nil, celesta.New(celesta.KindTypeMismatch, "BinaryTermOp requires at least one operand")
	}
	want := NUMERIC
	if op == CONCAT {
		want = TEXT
	}
	for _, o := range operands {
		t := o.Type()
		if t != UNDEFINED && t != want {
			return nil, celesta.New(celesta.KindTypeMismatch, "BinaryTermOp operand must be %s, got %s", want, t)
		}
	}
	return &BinaryTermOp{Op: op, Operands: operands, resolved: want}, nil
}

// NewUnaryMinus builds `-operand`, rejecting a statically non-NUMERIC
// operand.
func NewUnaryMinus(operand Node) (*UnaryMinus, error) {
	if knownAndWrongNumeric(operand) {
		return nil, celesta.New(celesta.KindTypeMismatch, "unary minus operand must be NUMERIC, got %s", operand.Type())
	}
	return &UnaryMinus{Operand: operand}, nil
}

// NewNumericLiteral builds a numeric literal, preserving its source text.
func NewNumericLiteral(text string) *NumericLiteral {
	return &NumericLiteral{Text: text}
}

// NewTextLiteral builds a text literal.
func NewTextLiteral(value string) *TextLiteral {
	return &TextLiteral{Value: value}
}

// NewFieldRef builds an unresolved column reference, optionally qualified
// by grain and table/alias.
func NewFieldRef(grainName, tableOrAlias, columnName string) *FieldRef {
	return &FieldRef{GrainName: grainName, TableOrAlias: tableOrAlias, ColumnName: columnName}
}
