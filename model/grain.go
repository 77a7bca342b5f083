package model

import (
	"hash/crc32"

	"github.com/celesta-db/celesta"
	"github.com/celesta-db/celesta/ident"
)

// Grain is a named schema: a VersionString, the byte length and CRC-32
// checksum of its CelestaSQL source, an autoupdate flag, and a
// dependencyOrder computed once the owning Score resolves cross-grain
// references. It exclusively owns its sequences, tables, indices, views,
// parameterized views, and materialized views; elements hold a
// back-reference to their grain, not the reverse.
type Grain struct {
	score   *Score
	name    string
	version *ident.VersionString
	length  int
	checksum uint32
	autoupdate bool

	dependencyOrder int
	dependencyOrderSet bool

	tables     map[string]*Table
	tableOrder []string

	indices    map[string]*Index
	indexOrder []string

	sequences     map[string]*Sequence
	sequenceOrder []string

	views     map[string]*View
	viewOrder []string

	parameterizedViews     map[string]*ParameterizedView
	parameterizedViewOrder []string

	materializedViews     map[string]*MaterializedView
	materializedViewOrder []string

	finalized bool
}

// NewGrain constructs a grain from its CelestaSQL source text: length and
// checksum are derived from source, matching the checksum/length pair
// the updater later compares against celesta.grains.
func NewGrain(name string, source string, version *ident.VersionString, autoupdate bool) (*Grain, error) {
	if err := ident.Validate(name); err != nil {
		return nil, err
	}
	return &Grain{
		name:                   name,
		version:                version,
		length:                 len(source),
		checksum:               crc32.ChecksumIEEE([]byte(source)),
		autoupdate:             autoupdate,
		tables:                 make(map[string]*Table),
		indices:                make(map[string]*Index),
		sequences:              make(map[string]*Sequence),
		views:                  make(map[string]*View),
		parameterizedViews:     make(map[string]*ParameterizedView),
		materializedViews:      make(map[string]*MaterializedView),
	}, nil
}

// OwningScore returns the Score this grain was registered on, or
// (nil, false) before Score.AddGrain has run.
func (g *Grain) OwningScore() (*Score, bool) {
	if g.score == nil {
		return nil, false
	}
	return g.score, true
}

func (g *Grain) Name() string                     { return g.name }
func (g *Grain) Version() *ident.VersionString     { return g.version }
func (g *Grain) Length() int                       { return g.length }
func (g *Grain) Checksum() uint32                  { return g.checksum }
func (g *Grain) Autoupdate() bool                  { return g.autoupdate }
func (g *Grain) Finalized() bool                   { return g.finalized }

// DependencyOrder is the length of the longest reference path starting
// from this grain in the inter-grain reference DAG. Valid only after
// Score.ResolveReferences has run.
func (g *Grain) DependencyOrder() int { return g.dependencyOrder }

func (g *Grain) Table(name string) (*Table, bool) {
	t, ok := g.tables[name]
	return t, ok
}

func (g *Grain) Tables() []*Table {
	ts := make([]*Table, len(g.tableOrder))
	for i, name := range g.tableOrder {
		ts[i] = g.tables[name]
	}
	return ts
}

func (g *Grain) Index(name string) (*Index, bool) {
	i, ok := g.indices[name]
	return i, ok
}

func (g *Grain) Indices() []*Index {
	is := make([]*Index, len(g.indexOrder))
	for i, name := range g.indexOrder {
		is[i] = g.indices[name]
	}
	return is
}

func (g *Grain) Sequence(name string) (*Sequence, bool) {
	s, ok := g.sequences[name]
	return s, ok
}

func (g *Grain) Sequences() []*Sequence {
	ss := make([]*Sequence, len(g.sequenceOrder))
	for i, name := range g.sequenceOrder {
		ss[i] = g.sequences[name]
	}
	return ss
}

func (g *Grain) View(name string) (*View, bool) {
	v, ok := g.views[name]
	return v, ok
}

func (g *Grain) Views() []*View {
	vs := make([]*View, len(g.viewOrder))
	for i, name := range g.viewOrder {
		vs[i] = g.views[name]
	}
	return vs
}

func (g *Grain) ParameterizedView(name string) (*ParameterizedView, bool) {
	pv, ok := g.parameterizedViews[name]
	return pv, ok
}

func (g *Grain) ParameterizedViews() []*ParameterizedView {
	pvs := make([]*ParameterizedView, len(g.parameterizedViewOrder))
	for i, name := range g.parameterizedViewOrder {
		pvs[i] = g.parameterizedViews[name]
	}
	return pvs
}

func (g *Grain) MaterializedView(name string) (*MaterializedView, bool) {
	mv, ok := g.materializedViews[name]
	return mv, ok
}

func (g *Grain) MaterializedViews() []*MaterializedView {
	mvs := make([]*MaterializedView, len(g.materializedViewOrder))
	for i, name := range g.materializedViewOrder {
		mvs[i] = g.materializedViews[name]
	}
	return mvs
}

// Elements returns every GrainElement the grain owns, in a fixed order
// (tables, indices, sequences, views, parameterized views, materialized
// views) suitable as input to depsort.GrainElementUpdatingComparator.
func (g *Grain) Elements() []GrainElement {
	elems := make([]GrainElement, 0, len(g.tableOrder)+len(g.indexOrder)+len(g.sequenceOrder)+len(g.viewOrder)+len(g.parameterizedViewOrder)+len(g.materializedViewOrder))
	for _, t := range g.Tables() {
		elems = append(elems, t)
	}
	for _, i := range g.Indices() {
		elems = append(elems, i)
	}
	for _, s := range g.Sequences() {
		elems = append(elems, s)
	}
	for _, v := range g.Views() {
		elems = append(elems, v)
	}
	for _, pv := range g.ParameterizedViews() {
		elems = append(elems, pv)
	}
	for _, mv := range g.MaterializedViews() {
		elems = append(elems, mv)
	}
	return elems
}

// resolveReferences resolves every table's foreign keys against score.
func (g *Grain) resolveReferences(score *Score) error {
	for _, t := range g.Tables() {
		if err := t.resolveReferences(score); err != nil {
			return err
		}
	}
	return nil
}

// outgoingGrainNames returns the set of distinct other-grain names this
// grain's elements declare a reference to.
func (g *Grain) outgoingGrainNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, elem := range g.Elements() {
		for _, ref := range elem.GetReferences() {
			if ref.GrainName == "" || ref.GrainName == g.name {
				continue
			}
			if !seen[ref.GrainName] {
				seen[ref.GrainName] = true
				names = append(names, ref.GrainName)
			}
		}
	}
	return names
}

func (g *Grain) finalize() {
	g.finalized = true
	for _, t := range g.tables {
		t.finalize()
	}
}
