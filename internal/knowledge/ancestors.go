package knowledge

// Index looks nodes up by key for ancestor walks.
type Index map[Key]Node

// NewIndex indexes every node of the given lists; on duplicate keys the first wins.
func NewIndex(lists ...[]Node) Index {
	idx := Index{}
	for _, list := range lists {
		for _, n := range list {
			if _, ok := idx[n.Key]; !ok {
				idx[n.Key] = n
			}
		}
	}
	return idx
}

// logicalParent is the folder a node is listed under when browsing. Stored
// items without parent_id sit in the action folder of the task they
// reference, or in the health or projects root. Actions items that reference
// no task are listed nowhere and have no parent.
func logicalParent(n Node) (Key, bool) {
	if n.ParentKey != nil {
		return *n.ParentKey, true
	}
	switch n.Kind {
	case KindRealFolder, KindRealFile:
		if n.Domain == DomainActions {
			if n.TaskID == "" {
				return Key{}, false
			}
			return ActionKey(n.TaskID), true
		}
		if n.Domain != "" {
			return RootKey(n.Domain), true
		}
	}
	return Key{}, false
}

// Ancestors returns the chain of folders above key, nearest first. The walk
// stops at a missing parent or at the first key seen twice, so cyclic
// parent_id data yields the partial chain collected so far.
func (idx Index) Ancestors(key Key) []Node {
	n, ok := idx[key]
	if !ok {
		return nil
	}
	visited := map[Key]bool{key: true}
	var chain []Node
	for {
		parent, ok := logicalParent(n)
		if !ok || visited[parent] {
			return chain
		}
		visited[parent] = true
		next, ok := idx[parent]
		if !ok {
			return chain
		}
		chain = append(chain, next)
		n = next
	}
}

// Breadcrumb returns the path from the top-most ancestor down to key itself.
func (idx Index) Breadcrumb(key Key) []Node {
	n, ok := idx[key]
	if !ok {
		return nil
	}
	ancestors := idx.Ancestors(key)
	path := make([]Node, 0, len(ancestors)+1)
	for i := len(ancestors) - 1; i >= 0; i-- {
		path = append(path, ancestors[i])
	}
	return append(path, n)
}

// VisibleAncestors collects the keys of every folder above the given nodes,
// which a tree view expands to reveal search results.
func (idx Index) VisibleAncestors(nodes []Node) map[Key]bool {
	lookup := make(Index, len(idx)+len(nodes))
	for k, n := range idx {
		lookup[k] = n
	}
	for _, n := range nodes {
		if _, ok := lookup[n.Key]; !ok {
			lookup[n.Key] = n
		}
	}
	visible := map[Key]bool{}
	for _, n := range nodes {
		for _, a := range lookup.Ancestors(n.Key) {
			visible[a.Key] = true
		}
	}
	return visible
}
