package model

import (
	"github.com/celesta-db/celesta"
	"github.com/celesta-db/celesta/expr"
	"github.com/celesta-db/celesta/ident"
)

// View is a named element with a parsed expression tree and a declared
// column list. AttachView is run on Tree at construction, so every node
// of the tree knows its containing view.
type View struct {
	grain   *Grain
	name    string
	tree    expr.Node
	columns []string
}

// NewView constructs and registers a view on grain, attaching the view
// back-reference to every node of tree.
func NewView(grain *Grain, name string, tree expr.Node, columns []string) (*View, error) {
	if grain.finalized {
		return nil, celesta.New(celesta.KindIllegalState, "grain %q is finalized, cannot add view %q", grain.name, name)
	}
	if err := ident.Validate(name); err != nil {
		return nil, err
	}
	if _, exists := grain.views[name]; exists {
		return nil, celesta.New(celesta.KindIllegalState, "view %q already exists in grain %q", name, grain.name)
	}
	v := &View{grain: grain, name: name, tree: tree, columns: append([]string(nil), columns...)}
	expr.AttachView(tree, name)
	grain.views[name] = v
	grain.viewOrder = append(grain.viewOrder, name)
	return v, nil
}

func (v *View) Grain() *Grain        { return v.grain }
func (v *View) Name() string         { return v.name }
func (v *View) ElementClass() string { return ElementClassView }
func (v *View) Tree() expr.Node      { return v.tree }
func (v *View) Columns() []string {
	cols := make([]string, len(v.columns))
	copy(cols, v.columns)
	return cols
}

// GetReferences collects one edge per resolved FieldRef's owning table.
func (v *View) GetReferences() []GrainElementReference {
	return fieldRefReferences(v.tree, v.grain.name)
}

// ParameterizedView additionally carries a declared parameter list
// (substituted into the expression tree at use time by the collaborating
// row-cursor generator, which is out of this package's scope).
type ParameterizedView struct {
	grain      *Grain
	name       string
	tree       expr.Node
	columns    []string
	parameters []string
}

func NewParameterizedView(grain *Grain, name string, tree expr.Node, columns, parameters []string) (*ParameterizedView, error) {
	if grain.finalized {
		return nil, celesta.New(celesta.KindIllegalState, "grain %q is finalized, cannot add parameterized view %q", grain.name, name)
	}
	if err := ident.Validate(name); err != nil {
		return nil, err
	}
	if _, exists := grain.parameterizedViews[name]; exists {
		return nil, celesta.New(celesta.KindIllegalState, "parameterized view %q already exists in grain %q", name, grain.name)
	}
	pv := &ParameterizedView{
		grain:      grain,
		name:       name,
		tree:       tree,
		columns:    append([]string(nil), columns...),
		parameters: append([]string(nil), parameters...),
	}
	expr.AttachView(tree, name)
	grain.parameterizedViews[name] = pv
	grain.parameterizedViewOrder = append(grain.parameterizedViewOrder, name)
	return pv, nil
}

func (pv *ParameterizedView) Grain() *Grain        { return pv.grain }
func (pv *ParameterizedView) Name() string         { return pv.name }
func (pv *ParameterizedView) ElementClass() string { return ElementClassParameterizedView }
func (pv *ParameterizedView) Tree() expr.Node      { return pv.tree }
func (pv *ParameterizedView) Parameters() []string {
	params := make([]string, len(pv.parameters))
	copy(params, pv.parameters)
	return params
}

func (pv *ParameterizedView) GetReferences() []GrainElementReference {
	return fieldRefReferences(pv.tree, pv.grain.name)
}

// fieldRefReferences collects one Table edge per resolved FieldRef in
// tree. A FieldRef's own declared GrainName (when the reference was
// explicitly grain-qualified) wins over ownerGrain, the grain that owns
// the view doing the referencing.
func fieldRefReferences(tree expr.Node, ownerGrain string) []GrainElementReference {
	var refs []GrainElementReference
	for _, ref := range expr.FieldRefs(tree) {
		if !ref.IsResolved() {
			continue
		}
		grainName := ref.GrainName
		if grainName == "" {
			grainName = ownerGrain
		}
		refs = append(refs, GrainElementReference{
			GrainName:    grainName,
			ElementName:  ref.ResolvedTable(),
			ElementClass: ElementClassTable,
		})
	}
	return refs
}
