package model

import (
	"fmt"
	"hash/crc32"

	"github.com/celesta-db/celesta"
	"github.com/celesta-db/celesta/expr"
	"github.com/celesta-db/celesta/ident"
)

// MaterializedView behaves as a table over RefTable: its defining query
// is re-run against RefTable to populate it, and its freshness is tracked
// by a checksum embedded as a marker comment inside the POST_INSERT
// trigger the updater maintains on RefTable (see TriggerMarker).
type MaterializedView struct {
	grain    *Grain
	name     string
	refTable *Table
	query    expr.Node
	columns  []string
}

// NewMaterializedView constructs and registers a materialized view on
// grain, over refTable, which must belong to the same grain.
func NewMaterializedView(grain *Grain, name string, refTable *Table, query expr.Node, columns []string) (*MaterializedView, error) {
	if grain.finalized {
		return nil, celesta.New(celesta.KindIllegalState, "grain %q is finalized, cannot add materialized view %q", grain.name, name)
	}
	if err := ident.Validate(name); err != nil {
		return nil, err
	}
	if _, exists := grain.materializedViews[name]; exists {
		return nil, celesta.New(celesta.KindIllegalState, "materialized view %q already exists in grain %q", name, grain.name)
	}
	if refTable.grain != grain {
		return nil, celesta.New(celesta.KindIllegalState, "materialized view %q's source table %q does not belong to grain %q", name, refTable.name, grain.name)
	}
	mv := &MaterializedView{
		grain:    grain,
		name:     name,
		refTable: refTable,
		query:    query,
		columns:  append([]string(nil), columns...),
	}
	expr.AttachView(query, name)
	grain.materializedViews[name] = mv
	grain.materializedViewOrder = append(grain.materializedViewOrder, name)
	return mv, nil
}

func (mv *MaterializedView) Grain() *Grain        { return mv.grain }
func (mv *MaterializedView) Name() string         { return mv.name }
func (mv *MaterializedView) ElementClass() string { return ElementClassMaterializedView }
func (mv *MaterializedView) RefTable() *Table      { return mv.refTable }
func (mv *MaterializedView) Query() expr.Node       { return mv.query }
func (mv *MaterializedView) Columns() []string {
	cols := make([]string, len(mv.columns))
	copy(cols, mv.columns)
	return cols
}

// Checksum is the CRC-32 of the materialized view's canonical defining
// query text, the same checksum family used for grain source (§6).
func (mv *MaterializedView) Checksum() uint32 {
	return crc32.ChecksumIEEE([]byte(mv.query.CSQL()))
}

// TriggerMarker is the exact comment text the updater must find inside
// RefTable's POST_INSERT trigger body for the MV to be considered
// up to date (§4.F.8).
func (mv *MaterializedView) TriggerMarker() string {
	return fmt.Sprintf("MATERIALIZED VIEW CHECKSUM %08X", mv.Checksum())
}

// GetReferences: a materialized view depends on its source table.
func (mv *MaterializedView) GetReferences() []GrainElementReference {
	refs := []GrainElementReference{{GrainName: mv.grain.name, ElementName: mv.refTable.name, ElementClass: ElementClassTable}}
	refs = append(refs, fieldRefReferences(mv.query, mv.grain.name)...)
	return refs
}
