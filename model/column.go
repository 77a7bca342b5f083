package model

import "github.com/celesta-db/celesta/expr"

// Column is implemented by each of the six column variants. ExprType is
// the mapping used by expr.TableRef.ColumnType when a view's expression
// tree resolves a FieldRef against this column.
type Column interface {
	Name() string
	Nullable() bool
	// Default returns the column's default literal and whether one was
	// declared.
	Default() (string, bool)
	ExprType() expr.Type
}

type columnBase struct {
	name     string
	nullable bool
	def      *string
}

func (c *columnBase) Name() string     { return c.name }
func (c *columnBase) Nullable() bool   { return c.nullable }
func (c *columnBase) Default() (string, bool) {
	if c.def == nil {
		return "", false
	}
	return *c.def, true
}

// IntegerColumn maps to NUMERIC; Identity marks an IDENTITY/autoincrement
// default.
type IntegerColumn struct {
	columnBase
	Identity bool
}

func (c *IntegerColumn) ExprType() expr.Type { return expr.NUMERIC }

func NewIntegerColumn(name string, nullable bool, def *string, identity bool) *IntegerColumn {
	return &IntegerColumn{columnBase: columnBase{name: name, nullable: nullable, def: def}, Identity: identity}
}

// FloatingColumn maps to NUMERIC.
type FloatingColumn struct {
	columnBase
}

func (c *FloatingColumn) ExprType() expr.Type { return expr.NUMERIC }

func NewFloatingColumn(name string, nullable bool, def *string) *FloatingColumn {
	return &FloatingColumn{columnBase{name: name, nullable: nullable, def: def}}
}

// StringColumn maps to TEXT. Length is meaningless when Max is set (the
// CelestaSQL `TEXT` / `VARCHAR(MAX)`-equivalent unbounded form).
type StringColumn struct {
	columnBase
	Length int
	Max    bool
}

func (c *StringColumn) ExprType() expr.Type { return expr.TEXT }

func NewStringColumn(name string, nullable bool, def *string, length int, max bool) *StringColumn {
	return &StringColumn{columnBase: columnBase{name: name, nullable: nullable, def: def}, Length: length, Max: max}
}

// BinaryColumn maps to BLOB.
type BinaryColumn struct {
	columnBase
}

func (c *BinaryColumn) ExprType() expr.Type { return expr.BLOB }

func NewBinaryColumn(name string, nullable bool, def *string) *BinaryColumn {
	return &BinaryColumn{columnBase{name: name, nullable: nullable, def: def}}
}

// BooleanColumn maps to BIT.
type BooleanColumn struct {
	columnBase
}

func (c *BooleanColumn) ExprType() expr.Type { return expr.BIT }

func NewBooleanColumn(name string, nullable bool, def *string) *BooleanColumn {
	return &BooleanColumn{columnBase{name: name, nullable: nullable, def: def}}
}

// DateTimeColumn maps to DATE.
type DateTimeColumn struct {
	columnBase
}

func (c *DateTimeColumn) ExprType() expr.Type { return expr.DATE }

func NewDateTimeColumn(name string, nullable bool, def *string) *DateTimeColumn {
	return &DateTimeColumn{columnBase{name: name, nullable: nullable, def: def}}
}
