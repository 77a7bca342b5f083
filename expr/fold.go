package expr

// Walk visits every node of the tree rooted at n in pre-order, calling visit
// on each. It replaces the Visitor/accept pattern: callers that previously
// implemented a Visitor interface now just pass a closure.
func Walk(n Node, visit func(Node)) {
	if n == nil {
		return
	}
	visit(n)
	for _, child := range n.Children() {
		Walk(child, visit)
	}
}

// FieldRefs collects every FieldRef in the tree rooted at n, in traversal
// order.
func FieldRefs(n Node) []*FieldRef {
	var refs []*FieldRef
	Walk(n, func(node Node) {
		if ref, ok := node.(*FieldRef); ok {
			refs = append(refs, ref)
		}
	})
	return refs
}

// Fold reduces the tree rooted at n to a single value: combine is called
// once per node, after all of its children have already been folded into
// acc, with acc starting at init.
func Fold[T any](n Node, init T, combine func(acc T, node Node) T) T {
	if n == nil {
		return init
	}
	acc := init
	for _, child := range n.Children() {
		acc = Fold(child, acc, combine)
	}
	return combine(acc, n)
}
