package categories

import (
	"sort"
	"strings"
)

// Forest indexes a snapshot of categories by id and groups them by parent.
// Nodes only hold parent ids; every traversal works on the index and tracks
// visited ids, so cyclic data cannot loop.
type Forest struct {
	byID     map[string]Category
	children map[string][]string
	roots    []string
}

func NewForest(items []Category) *Forest {
	f := &Forest{
		byID:     make(map[string]Category, len(items)),
		children: make(map[string][]string),
	}
	for _, c := range items {
		f.byID[c.ID] = c
	}

	for _, c := range items {
		parent := c.Parent()
		if _, ok := f.byID[parent]; parent == "" || parent == c.ID || !ok {
			// Dangling parents are treated as roots.
			f.roots = append(f.roots, c.ID)
			continue
		}
		f.children[parent] = append(f.children[parent], c.ID)
	}

	f.sortIDs(f.roots)
	for _, ids := range f.children {
		f.sortIDs(ids)
	}
	return f
}

// sortIDs orders siblings by sort_order, then name, then id.
func (f *Forest) sortIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := f.byID[ids[i]], f.byID[ids[j]]
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		if an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name); an != bn {
			return an < bn
		}
		return a.ID < b.ID
	})
}

func (f *Forest) Get(id string) (Category, bool) {
	c, ok := f.byID[id]
	return c, ok
}

// Tree returns the root categories with their children nested. Unless
// includeInactive is set, inactive categories are left out together with
// everything below them.
func (f *Forest) Tree(includeInactive bool) []TreeNode {
	visited := make(map[string]bool, len(f.byID))
	return f.subtree(f.roots, includeInactive, visited)
}

func (f *Forest) subtree(ids []string, includeInactive bool, visited map[string]bool) []TreeNode {
	nodes := make([]TreeNode, 0, len(ids))
	for _, id := range ids {
		if visited[id] {
			continue
		}
		c := f.byID[id]
		if !includeInactive && !c.IsActive {
			continue
		}
		visited[id] = true
		nodes = append(nodes, TreeNode{
			Category: c,
			Children: f.subtree(f.children[id], includeInactive, visited),
		})
	}
	return nodes
}

// Flat walks the forest depth first and returns every active category with
// its depth and breadcrumb.
func (f *Forest) Flat() []FlatNode {
	out := make([]FlatNode, 0, len(f.byID))
	visited := make(map[string]bool, len(f.byID))

	var walk func(id string, level int, trail []Crumb)
	walk = func(id string, level int, trail []Crumb) {
		if visited[id] {
			return
		}
		visited[id] = true
		c := f.byID[id]

		crumbs := make([]Crumb, len(trail), len(trail)+1)
		copy(crumbs, trail)
		crumbs = append(crumbs, crumbFor(c))

		if c.IsActive {
			out = append(out, FlatNode{Category: c, HierarchyLevel: level, Breadcrumb: crumbs})
		}
		for _, child := range f.children[id] {
			walk(child, level+1, crumbs)
		}
	}

	for _, root := range f.roots {
		walk(root, 0, nil)
	}
	return out
}

// Breadcrumb lists the ancestors of id from the root down to id itself.
func (f *Forest) Breadcrumb(id string) []Crumb {
	chain := f.ancestry(id)
	crumbs := make([]Crumb, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		crumbs = append(crumbs, crumbFor(f.byID[chain[i]]))
	}
	return crumbs
}

// Level is 0 for a root and parent level + 1 otherwise. Unknown ids are -1.
func (f *Forest) Level(id string) int {
	return len(f.ancestry(id)) - 1
}

// ancestry returns id followed by its ancestors, nearest first.
func (f *Forest) ancestry(id string) []string {
	var chain []string
	seen := make(map[string]bool)
	for cur := id; cur != ""; {
		c, ok := f.byID[cur]
		if !ok || seen[cur] {
			break
		}
		seen[cur] = true
		chain = append(chain, cur)
		cur = c.Parent()
	}
	return chain
}

// Descendants returns every id below id, breadth first.
func (f *Forest) Descendants(id string) []string {
	var out []string
	seen := map[string]bool{id: true}
	queue := append([]string(nil), f.children[id]...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		out = append(out, cur)
		queue = append(queue, f.children[cur]...)
	}
	return out
}

// Children returns the direct children of id in display order.
func (f *Forest) Children(id string, includeInactive bool) []Category {
	out := make([]Category, 0, len(f.children[id]))
	for _, childID := range f.children[id] {
		c := f.byID[childID]
		if includeInactive || c.IsActive {
			out = append(out, c)
		}
	}
	return out
}

func (f *Forest) HasChildren(id string) bool {
	return len(f.children[id]) > 0
}

// ValidateParent checks that making parentID the parent of id keeps the
// forest acyclic. id is empty for a category that does not exist yet.
func (f *Forest) ValidateParent(id, parentID string) error {
	if parentID == "" {
		return nil
	}
	if parentID == id {
		return ErrCircularReference
	}
	if _, ok := f.byID[parentID]; !ok {
		return ErrParentNotFound
	}
	if id == "" {
		return nil
	}
	for _, d := range f.Descendants(id) {
		if d == parentID {
			return ErrCircularReference
		}
	}
	return nil
}

// TotalResourceCount sums the resource counts of id and all its descendants.
func (f *Forest) TotalResourceCount(id string) int64 {
	c, ok := f.byID[id]
	if !ok {
		return 0
	}
	total := c.ResourceCount
	for _, d := range f.Descendants(id) {
		total += f.byID[d].ResourceCount
	}
	return total
}

// CanDelete is false while the category holds resources or has children.
func CanDelete(c Category, hasChildren bool) bool {
	return c.ResourceCount == 0 && !hasChildren
}

func crumbFor(c Category) Crumb {
	return Crumb{
		ID:   c.ID,
		Name: c.Name,
		Slug: c.Slug,
		URL:  "/resources/category/" + c.Slug,
	}
}
