package expr

import "strings"

// CSQL renders n's canonical CelestaSQL text. The rendering is stable and
// whitespace-normalized (single space around operators, comma-space in
// lists) so it can be used as-is for checksum input (see the materialized
// view checksum marker).

func (n *Parenthesized) CSQL() string {
	return "(" + n.Inner.CSQL() + ")"
}

func (n *Relop) CSQL() string {
	return n.Left.CSQL() + " " + n.Op.csqlSpelling() + " " + n.Right.CSQL()
}

func (n *In) CSQL() string {
	parts := make([]string, len(n.List))
	for i, item := range n.List {
		parts[i] = item.CSQL()
	}
	return n.Operand.CSQL() + " IN (" + strings.Join(parts, ", ") + ")"
}

func (n *Between) CSQL() string {
	return n.Operand.CSQL() + " BETWEEN " + n.Low.CSQL() + " AND " + n.High.CSQL()
}

func (n *IsNull) CSQL() string {
	return n.Operand.CSQL() + " IS NULL"
}

func (n *Not) CSQL() string {
	return "NOT " + n.Operand.CSQL()
}

func (n *BinaryLogicalOp) CSQL() string {
	parts := make([]string, len(n.Operands))
	for i, o := range n.Operands {
		parts[i] = o.CSQL()
	}
	return strings.Join(parts, " "+n.Op.csqlSpelling()+" ")
}

func (n *BinaryTermOp) CSQL() string {
	parts := make([]string, len(n.Operands))
	for i, o := range n.Operands {
		parts[i] = o.CSQL()
	}
	return strings.Join(parts, " "+n.Op.csqlSpelling()+" ")
}

func (n *UnaryMinus) CSQL() string {
	return "-" + n.Operand.CSQL()
}

func (n *NumericLiteral) CSQL() string {
	return n.Text
}

func (n *TextLiteral) CSQL() string {
	return "'" + strings.ReplaceAll(n.Value, "'", "''") + "'"
}

func (n *FieldRef) CSQL() string {
	var b strings.Builder
	if n.GrainName != "" {
		b.WriteString(n.GrainName)
		b.WriteByte('.')
	}
	if n.TableOrAlias != "" {
		b.WriteString(n.TableOrAlias)
		b.WriteByte('.')
	}
	b.WriteString(n.ColumnName)
	return b.String()
}
