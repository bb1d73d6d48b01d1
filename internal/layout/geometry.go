package layout

import "math"

// EventLayout is the placement of one event inside its day column. Left,
// Width are percentages of the column; IndentOffset is in pixels.
type EventLayout struct {
	ID           string  `json:"id"`
	Left         float64 `json:"left"`
	Width        float64 `json:"width"`
	ZIndex       int     `json:"zIndex"`
	Level        int     `json:"level"`
	IsPrimary    bool    `json:"isPrimary"`
	IndentOffset float64 `json:"indentOffset"`
	Importance   float64 `json:"importance"`
	ParentID     string  `json:"parentId,omitempty"`
}

type band struct {
	left  float64
	width float64
}

func (b band) right() float64 {
	return b.left + b.width
}

// childShape classifies how a node hands its band to its children.
type childShape int

const (
	shapeLeaf       childShape = iota // no children
	shapeChain                        // one child, full band
	shapeParallel                     // side by side, band is split
	shapeSequential                   // staggered, each child gets the full band
)

func (a *arena) classify(i int) childShape {
	kids := a.nodes[i].children
	switch len(kids) {
	case 0:
		return shapeLeaf
	case 1:
		return shapeChain
	}
	for x := 0; x < len(kids); x++ {
		for y := x + 1; y < len(kids); y++ {
			if a.shouldBeParallel(kids[x], kids[y]) {
				return shapeParallel
			}
		}
	}
	return shapeSequential
}

// placeRoots splits the day column among the roots of one overlap group and
// lays out every tree below them.
func (a *arena) placeRoots(roots []int, out map[string]EventLayout) {
	column := band{left: 0, width: 100 - a.cfg.EdgeMarginPercent}
	for k, b := range split(column, len(roots), a.cfg.MarginBetween) {
		a.place(roots[k], b, out)
	}
}

// place emits the box of node i inside b and recurses into its children.
func (a *arena) place(i int, b band, out map[string]EventLayout) {
	n := &a.nodes[i]

	indentDepth := n.depth
	if n.processed && n.branchRoot != noNode {
		indentDepth = a.nodes[n.branchRoot].depth
	}
	indent := float64(indentDepth) * a.cfg.indentStep()

	left := math.Max(b.left, b.left+indent+a.cfg.leftAdjustment(n.depth))
	if minWidth := math.Min(a.cfg.MinWidth, b.width); b.right()-left < minWidth {
		left = b.right() - minWidth
	}
	own := band{left: left, width: math.Max(0, b.right()-left)}

	layout := EventLayout{
		ID:           n.id,
		Left:         own.left,
		Width:        own.width,
		ZIndex:       n.depth,
		Level:        n.depth,
		IsPrimary:    n.depth == 0,
		IndentOffset: indent / 100 * a.cfg.ContainerWidthPx,
		Importance:   importance(n.duration(), a.cfg.ImportanceHours),
	}
	if n.parent != noNode {
		layout.ParentID = a.nodes[n.parent].id
	}
	out[n.id] = layout

	switch a.classify(i) {
	case shapeLeaf:
	case shapeChain:
		a.place(n.children[0], own, out)
	case shapeParallel:
		gutter := a.cfg.MarginBetween * a.cfg.gutterScale(n.depth)
		for k, sb := range split(own, len(n.children), gutter) {
			a.place(n.children[k], sb, out)
		}
	case shapeSequential:
		for _, c := range n.children {
			a.place(c, own, out)
		}
	}
}

// split divides b into n equal slices separated by gutter. The gutter is
// dropped when it would leave no room for the slices.
func split(b band, n int, gutter float64) []band {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []band{b}
	}
	gaps := float64(n - 1)
	if gutter*gaps >= b.width {
		gutter = 0
	}
	w := (b.width - gutter*gaps) / float64(n)
	out := make([]band, n)
	for k := range out {
		out[k] = band{left: b.left + float64(k)*(w+gutter), width: w}
	}
	return out
}

func importance(hours, scale float64) float64 {
	return math.Min(maxImportance, math.Max(minImportance, hours/scale))
}
