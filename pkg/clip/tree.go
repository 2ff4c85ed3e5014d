package clip

import "fmt"

// LayerKind is the closed set of layer variants, decided once from the
// layer's type columns.
type LayerKind uint8

const (
	KindOther LayerKind = iota
	KindFolder
	KindPixel
	KindText
	KindVector
	KindStreamline
	KindFrame
	KindGradient
	KindCorrection
)

var kindNames = [...]string{
	KindOther:      "other",
	KindFolder:     "folder",
	KindPixel:      "pixel",
	KindText:       "text",
	KindVector:     "vector",
	KindStreamline: "streamline",
	KindFrame:      "frame",
	KindGradient:   "gradient",
	KindCorrection: "correction",
}

func (k LayerKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("LayerKind(%d)", uint8(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k LayerKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// LayerType column values.
const (
	layerTypeGroup      = 0
	layerTypePixel      = 1
	layerTypeGradient   = 2
	layerTypeCorrection = 4098
)

// VectorNormalType column values.
const (
	vectorTypeVector     = 0
	vectorTypeStreamline = 2
	vectorTypeFrame      = 3
)

// KindOf classifies a Layer row.
func KindOf(r Row) LayerKind {
	typ, _ := r.Int("LayerType")
	switch typ {
	case layerTypeGroup:
		if r["TextLayerType"] != nil {
			return KindText
		}
		if v, ok := r.Int("VectorNormalType"); ok {
			switch v {
			case vectorTypeVector:
				return KindVector
			case vectorTypeStreamline:
				return KindStreamline
			case vectorTypeFrame:
				return KindFrame
			}
		}
		return KindFolder
	case layerTypePixel:
		return KindPixel
	case layerTypeGradient:
		return KindGradient
	case layerTypeCorrection:
		return KindCorrection
	}
	return KindOther
}

// NoNode marks a missing link in a Tree.
const NoNode = -1

// Node is one layer in a Tree. Links are indices into Tree.Nodes.
type Node struct {
	ID         int64
	Name       string
	Kind       LayerKind
	Parent     int
	FirstChild int
	Next       int
}

// Tree is the layer hierarchy of one canvas stored as an arena.
type Tree struct {
	Nodes []Node
	Root  int

	byID map[int64]int
}

// buildTree follows the LayerFirstChildIndex and LayerNextIndex links from
// root. A link that revisits a layer is reported as corrupt.
func buildTree(layers map[int64]Row, root int64) (*Tree, error) {
	t := &Tree{Root: NoNode, byID: make(map[int64]int)}
	add := func(id int64, parent int) (int, error) {
		if _, seen := t.byID[id]; seen {
			return 0, fmt.Errorf("%w: layer %d is linked twice", ErrCorrupt, id)
		}
		r, ok := layers[id]
		if !ok {
			return 0, fmt.Errorf("%w: layer %d is linked but missing", ErrCorrupt, id)
		}
		name, _ := r.String("LayerName")
		t.Nodes = append(t.Nodes, Node{ID: id, Name: name, Kind: KindOf(r), Parent: parent, FirstChild: NoNode, Next: NoNode})
		i := len(t.Nodes) - 1
		t.byID[id] = i
		return i, nil
	}

	rootIdx, err := add(root, NoNode)
	if err != nil {
		return nil, err
	}
	t.Root = rootIdx

	// Iterative walk: each stack entry is a node whose children still need
	// linking.
	stack := []int{rootIdx}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		first, ok := layers[t.Nodes[cur].ID].Ref("LayerFirstChildIndex")
		if !ok {
			continue
		}
		prev := NoNode
		for id := first; id != 0; {
			i, err := add(id, cur)
			if err != nil {
				return nil, err
			}
			if prev == NoNode {
				t.Nodes[cur].FirstChild = i
			} else {
				t.Nodes[prev].Next = i
			}
			stack = append(stack, i)
			prev = i
			id, _ = layers[id].Ref("LayerNextIndex")
		}
	}
	return t, nil
}

// Index returns the arena index of a layer id.
func (t *Tree) Index(id int64) (int, bool) {
	i, ok := t.byID[id]
	return i, ok
}

// Children returns the arena indices of i's children in order.
func (t *Tree) Children(i int) []int {
	var out []int
	for c := t.Nodes[i].FirstChild; c != NoNode; c = t.Nodes[c].Next {
		out = append(out, c)
	}
	return out
}

// IsDescendant reports whether node i lies below ancestor.
func (t *Tree) IsDescendant(i, ancestor int) bool {
	for p := t.Nodes[i].Parent; p != NoNode; p = t.Nodes[p].Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// Depth returns the number of links between i and the root.
func (t *Tree) Depth(i int) int {
	d := 0
	for p := t.Nodes[i].Parent; p != NoNode; p = t.Nodes[p].Parent {
		d++
	}
	return d
}

// Walk visits the tree depth first in stacking order. Returning false from fn
// skips the node's children.
func (t *Tree) Walk(fn func(i, depth int) bool) {
	if t.Root == NoNode {
		return
	}
	var visit func(i, depth int)
	visit = func(i, depth int) {
		if !fn(i, depth) {
			return
		}
		for c := t.Nodes[i].FirstChild; c != NoNode; c = t.Nodes[c].Next {
			visit(c, depth+1)
		}
	}
	visit(t.Root, 0)
}
