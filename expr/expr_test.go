package expr

import (
	"testing"

	"github.com/celesta-db/celesta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTable is a minimal expr.TableRef for resolution tests.
type fakeTable struct {
	grain   string
	table   string
	columns map[string]Type
}

func (f *fakeTable) GrainName() string { return f.grain }
func (f *fakeTable) TableName() string { return f.table }
func (f *fakeTable) ColumnType(col string) (Type, bool) {
	t, ok := f.columns[col]
	return t, ok
}

func TestCSQLRendersCanonicalForm(t *testing.T) {
	left := NewFieldRef("", "t", "a")
	right := NewNumericLiteral("1")
	rel, err := NewRelop(EQ, left, right)
	require.NoError(t, err)
	assert.Equal(t, "t.a = 1", rel.CSQL())

	n, err := NewIn(left, []Node{NewNumericLiteral("1"), NewNumericLiteral("2")})
	require.NoError(t, err)
	assert.Equal(t, "t.a IN (1, 2)", n.CSQL())

	between := NewBetween(left, NewNumericLiteral("1"), NewNumericLiteral("10"))
	assert.Equal(t, "t.a BETWEEN 1 AND 10", between.CSQL())
}

func TestRelopLikeRejectsNonTextLeft(t *testing.T) {
	_, err := NewRelop(LIKE, NewNumericLiteral("1"), NewTextLiteral("x"))
	require.Error(t, err)
}

func TestBinaryLogicalOpRejectsEmpty(t *testing.T) {
	_, err := NewBinaryLogicalOp(AND, nil)
	require.Error(t, err)
}

func TestBinaryLogicalOpRejectsNonLogicOperand(t *testing.T) {
	_, err := NewBinaryLogicalOp(AND, []Node{NewNumericLiteral("1")})
	require.Error(t, err)
}

func TestResolveFieldRefsExactGrainAndTable(t *testing.T) {
	tbl := &fakeTable{grain: "g1", table: "orders", columns: map[string]Type{"id": NUMERIC}}
	ref := NewFieldRef("g1", "orders", "id")
	err := ResolveFieldRefs(ref, []TableRef{tbl})
	require.NoError(t, err)
	assert.True(t, ref.IsResolved())
	assert.Equal(t, NUMERIC, ref.Type())
	assert.Equal(t, "orders", ref.ResolvedTable())
}

func TestResolveFieldRefsByColumnNameAlone(t *testing.T) {
	tbl := &fakeTable{grain: "g1", table: "orders", columns: map[string]Type{"id": NUMERIC}}
	ref := NewFieldRef("", "", "id")
	err := ResolveFieldRefs(ref, []TableRef{tbl})
	require.NoError(t, err)
	assert.True(t, ref.IsResolved())
}

func TestResolveFieldRefsAmbiguous(t *testing.T) {
	t1 := &fakeTable{grain: "g1", table: "orders", columns: map[string]Type{"id": NUMERIC}}
	t2 := &fakeTable{grain: "g1", table: "items", columns: map[string]Type{"id": NUMERIC}}
	ref := NewFieldRef("", "", "id")
	err := ResolveFieldRefs(ref, []TableRef{t1, t2})
	require.Error(t, err)
	assert.True(t, celesta.IsKind(err, celesta.KindAmbiguousField))
}

func TestResolveFieldRefsUnresolved(t *testing.T) {
	ref := NewFieldRef("", "", "missing")
	err := ResolveFieldRefs(ref, nil)
	require.Error(t, err)
}

func TestValidateTypesCatchesUnresolvedFieldRef(t *testing.T) {
	ref := NewFieldRef("", "", "id")
	err := ValidateTypes(ref)
	require.Error(t, err)
}

func TestValidateTypesPassesAfterResolution(t *testing.T) {
	tbl := &fakeTable{grain: "g1", table: "orders", columns: map[string]Type{"total": NUMERIC}}
	left := NewFieldRef("", "orders", "total")
	right := NewNumericLiteral("100")
	rel, err := NewRelop(GT, left, right)
	require.NoError(t, err)

	require.NoError(t, ResolveFieldRefs(rel, []TableRef{tbl}))
	require.NoError(t, ValidateTypes(rel))
}

func TestValidateTypesRejectsMismatchedRelop(t *testing.T) {
	tbl := &fakeTable{grain: "g1", table: "orders", columns: map[string]Type{"name": TEXT}}
	left := NewFieldRef("", "orders", "name")
	right := NewNumericLiteral("1")
	rel, err := NewRelop(EQ, left, right)
	require.NoError(t, err)

	require.NoError(t, ResolveFieldRefs(rel, []TableRef{tbl}))
	err = ValidateTypes(rel)
	require.Error(t, err)
}

func TestWalkVisitsUnaryMinusOperand(t *testing.T) {
	ref := NewFieldRef("", "", "x")
	um, err := NewUnaryMinus(ref)
	require.NoError(t, err)

	refs := FieldRefs(um)
	require.Len(t, refs, 1)
	assert.Same(t, ref, refs[0])
}

func TestAttachViewPropagatesToChildren(t *testing.T) {
	left := NewFieldRef("", "", "x")
	right := NewNumericLiteral("1")
	rel, err := NewRelop(EQ, left, right)
	require.NoError(t, err)

	AttachView(rel, "vMyView")
	assert.Equal(t, "vMyView", rel.View())
	assert.Equal(t, "vMyView", left.View())
	assert.Equal(t, "vMyView", right.View())
}
