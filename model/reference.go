package model

// GrainElementReference is the abstract outgoing edge of a GrainElement:
// the (grainName, elementName, elementClass) tuple kept instead of a
// resolved pointer, so that an element can declare a dependency before
// its target grain has even been added to the score. Resolution happens
// on demand through Score.ResolveReferences.
type GrainElementReference struct {
	GrainName    string
	ElementName  string
	ElementClass string
}

// GrainElement is implemented by every named thing a Grain owns (Table,
// Index, Sequence, View, ParameterizedView, MaterializedView). It exposes
// the element's outgoing references for GrainElementUpdatingComparator and
// for the inter-grain dependency DAG used by Grain.DependencyOrder.
type GrainElement interface {
	Grain() *Grain
	Name() string
	ElementClass() string
	GetReferences() []GrainElementReference
}

const (
	ElementClassTable            = "Table"
	ElementClassIndex            = "Index"
	ElementClassSequence         = "Sequence"
	ElementClassView             = "View"
	ElementClassParameterizedView = "ParameterizedView"
	ElementClassMaterializedView  = "MaterializedView"
)
