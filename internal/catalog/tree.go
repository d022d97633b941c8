// Package catalog turns the category tree into the flat rows a menu
// renders, given which nodes are expanded.
package catalog

import "github.com/nhle/storefront/internal/model"

// Row is one visible line of the category menu.
type Row struct {
	Category    model.Category
	Depth       int
	HasChildren bool
	Expanded    bool
}

// OpenSet records which category IDs are expanded.
type OpenSet map[string]bool

// Flatten walks roots depth-first and returns the visible rows. Children
// of a node are visible only when the node is in open.
func Flatten(roots []model.Category, open OpenSet) []Row {
	var rows []Row
	var walk func(nodes []model.Category, depth int)
	walk = func(nodes []model.Category, depth int) {
		for _, c := range nodes {
			id := c.ID.String()
			expanded := open[id] && len(c.Children) > 0
			rows = append(rows, Row{
				Category:    c,
				Depth:       depth,
				HasChildren: len(c.Children) > 0,
				Expanded:    expanded,
			})
			if expanded {
				walk(c.Children, depth+1)
			}
		}
	}
	walk(roots, 0)
	return rows
}

// Toggle returns a copy of open with id flipped.
func Toggle(open OpenSet, id string) OpenSet {
	next := make(OpenSet, len(open)+1)
	for k, v := range open {
		if v {
			next[k] = true
		}
	}
	if next[id] {
		delete(next, id)
	} else {
		next[id] = true
	}
	return next
}

// Path returns the chain of categories from a root down to id, or nil if
// id is not in the tree.
func Path(roots []model.Category, id string) []model.Category {
	for _, c := range roots {
		if c.ID.String() == id {
			return []model.Category{c}
		}
		if sub := Path(c.Children, id); sub != nil {
			return append([]model.Category{c}, sub...)
		}
	}
	return nil
}

// ExpandPath returns a copy of open with every ancestor of id expanded,
// so that id becomes visible. id itself is left as it was.
func ExpandPath(roots []model.Category, open OpenSet, id string) OpenSet {
	next := make(OpenSet, len(open))
	for k, v := range open {
		if v {
			next[k] = true
		}
	}
	path := Path(roots, id)
	for i := 0; i < len(path)-1; i++ {
		next[path[i].ID.String()] = true
	}
	return next
}

// Find returns the category with id.
func Find(roots []model.Category, id string) (model.Category, bool) {
	path := Path(roots, id)
	if len(path) == 0 {
		return model.Category{}, false
	}
	return path[len(path)-1], true
}

// CollapseAll returns an empty OpenSet.
func CollapseAll() OpenSet { return OpenSet{} }
