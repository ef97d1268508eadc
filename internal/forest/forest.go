// Package forest converts between a flat, order-annotated item list and an ordered
// forest. Flatten is the only place order and parent ids are (re)computed.
package forest

import (
	"sort"
	"strings"

	"pagecraft/internal/model"
)

type Node struct {
	Item     model.OrderedItem
	Children []*Node
	Depth    int
}

type Forest struct {
	// Roots holds every container's roots: containers in first-appearance order, each
	// container's roots by ascending order.
	Roots    []*Node
	Dangling []DanglingReference

	size int
}

func (f *Forest) Len() int {
	if f == nil {
		return 0
	}
	return f.size
}

// Build groups items by parent and sorts every sibling group by Order (ties keep input
// position). Parents that don't resolve within the same container are normalized to
// roots and reported in Dangling. Duplicate ids and parent cycles fail before any
// traversal.
func Build(items []model.OrderedItem) (*Forest, error) {
	f := &Forest{}
	if len(items) == 0 {
		return f, nil
	}

	byID := make(map[string]int, len(items))
	for i := range items {
		id := strings.TrimSpace(items[i].ID)
		if id == "" {
			return nil, &StructuralError{Kind: KindMissingID, Msg: "item without id"}
		}
		if _, dup := byID[id]; dup {
			return nil, &StructuralError{Kind: KindDuplicateID, IDs: []string{id}}
		}
		byID[id] = i
	}

	// Effective parent index per item; -1 for roots (including normalized dangling refs).
	parentIdx := make([]int, len(items))
	for i := range items {
		parentIdx[i] = -1
		pid := items[i].Parent()
		if pid == "" {
			continue
		}
		j, ok := byID[pid]
		if !ok || items[j].ContainerID != items[i].ContainerID {
			f.Dangling = append(f.Dangling, DanglingReference{
				ItemID:      items[i].ID,
				ParentID:    pid,
				ContainerID: items[i].ContainerID,
			})
			continue
		}
		parentIdx[i] = j
	}

	if err := detectCycle(items, parentIdx); err != nil {
		return nil, err
	}

	nodes := make([]*Node, len(items))
	for i := range items {
		nodes[i] = &Node{Item: items[i].Clone()}
	}
	pos := make(map[*Node]int, len(items))
	containerRank := map[string]int{}
	for i := range items {
		pos[nodes[i]] = i
		if _, ok := containerRank[items[i].ContainerID]; !ok {
			containerRank[items[i].ContainerID] = len(containerRank)
		}
		if parentIdx[i] < 0 {
			f.Roots = append(f.Roots, nodes[i])
			continue
		}
		p := nodes[parentIdx[i]]
		p.Children = append(p.Children, nodes[i])
	}

	sort.SliceStable(f.Roots, func(i, j int) bool {
		a, b := f.Roots[i].Item, f.Roots[j].Item
		if ra, rb := containerRank[a.ContainerID], containerRank[b.ContainerID]; ra != rb {
			return ra < rb
		}
		return a.Order < b.Order
	})
	for _, n := range nodes {
		if len(n.Children) < 2 {
			continue
		}
		ch := n.Children
		sort.SliceStable(ch, func(i, j int) bool {
			if ch[i].Item.Order != ch[j].Item.Order {
				return ch[i].Item.Order < ch[j].Item.Order
			}
			return pos[ch[i]] < pos[ch[j]]
		})
	}

	f.Walk(func(n *Node, parent *Node) bool {
		if parent != nil {
			n.Depth = parent.Depth + 1
		}
		return true
	})
	f.size = len(items)
	return f, nil
}

func detectCycle(items []model.OrderedItem, parentIdx []int) error {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make([]uint8, len(items))
	for i := range items {
		if state[i] != unvisited {
			continue
		}
		var path []int
		cur := i
		for cur >= 0 && state[cur] != done {
			if state[cur] == onPath {
				var ids []string
				inCycle := false
				for _, k := range path {
					if k == cur {
						inCycle = true
					}
					if inCycle {
						ids = append(ids, items[k].ID)
					}
				}
				return &StructuralError{Kind: KindCycle, IDs: ids, Msg: "item is its own ancestor"}
			}
			state[cur] = onPath
			path = append(path, cur)
			cur = parentIdx[cur]
		}
		for _, k := range path {
			state[k] = done
		}
	}
	return nil
}

// Walk visits nodes depth-first, pre-order. Returning false from fn skips the node's
// children.
func (f *Forest) Walk(fn func(n *Node, parent *Node) bool) {
	if f == nil {
		return
	}
	type frame struct {
		n      *Node
		parent *Node
	}
	stack := make([]frame, 0, len(f.Roots))
	for i := len(f.Roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{n: f.Roots[i]})
	}
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(fr.n, fr.parent) {
			continue
		}
		for i := len(fr.n.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{n: fr.n.Children[i], parent: fr.n})
		}
	}
}

// Flatten emits every node in pre-order with Order set to its position among its
// traversal siblings and ParentID set to its traversal parent (nil for roots). Root
// positions are counted per container.
func (f *Forest) Flatten() []model.OrderedItem {
	out := make([]model.OrderedItem, 0, f.Len())
	if f == nil {
		return out
	}
	index := make(map[*Node]int, f.size)
	rootSeen := map[string]int{}
	for _, r := range f.Roots {
		index[r] = rootSeen[r.Item.ContainerID]
		rootSeen[r.Item.ContainerID]++
	}
	f.Walk(func(n *Node, parent *Node) bool {
		for i, ch := range n.Children {
			index[ch] = i
		}
		it := n.Item.Clone()
		it.Order = index[n]
		it.ParentID = nil
		if parent != nil {
			pid := parent.Item.ID
			it.ParentID = &pid
		}
		out = append(out, it)
		return true
	})
	return out
}

// Find returns the node with id, or nil.
func (f *Forest) Find(id string) *Node {
	var found *Node
	f.Walk(func(n *Node, _ *Node) bool {
		if found != nil {
			return false
		}
		if n.Item.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}
