package scene

import (
	"sync/atomic"

	"github.com/fogleman/fauxgl"
	"github.com/soypat/refract/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

var lastID atomic.Uint64

// Transform is a node's placement relative to its parent.
type Transform struct {
	Position r3.Vec
	// Rotation holds Euler angles in radians applied in XYZ order.
	Rotation r3.Vec
	Scale    r3.Vec
}

// Identity returns a transform with unit scale.
func Identity() Transform {
	return Transform{Scale: d3.Elem(1)}
}

// Matrix returns the local model matrix of the transform.
func (t Transform) Matrix() fauxgl.Matrix {
	return d3.Compose(t.Position, t.Rotation, t.Scale)
}

// Node is an element of the scene graph. A node with a Mesh and a Material
// is drawn, a node with a Light illuminates the scene, and any node may
// group children that inherit its transform and visibility.
type Node struct {
	ID        uint64
	Name      string
	Transform Transform

	Mesh     *fauxgl.Mesh
	Material Material
	Light    *DirectionalLight

	CastShadow    bool
	ReceiveShadow bool

	hidden   bool
	parent   *Node
	children []*Node
}

// NewNode returns an empty visible group node.
func NewNode(name string) *Node {
	return &Node{
		ID:        lastID.Add(1),
		Name:      name,
		Transform: Identity(),
	}
}

// NewMesh returns a visible node drawing mesh with material.
func NewMesh(name string, mesh *fauxgl.Mesh, material Material) *Node {
	n := NewNode(name)
	n.Mesh = mesh
	n.Material = material
	return n
}

// NewLight returns a node carrying light. The light's position and target
// are expressed in world space.
func NewLight(name string, light *DirectionalLight) *Node {
	n := NewNode(name)
	n.Light = light
	return n
}

// Visible reports whether the node itself is visible. A visible node is not
// drawn if any of its ancestors is hidden.
func (n *Node) Visible() bool { return !n.hidden }

// SetVisible toggles whether the node and its subtree are drawn.
func (n *Node) SetVisible(visible bool) { n.hidden = !visible }

// IsMesh reports whether the node has something to draw.
func (n *Node) IsMesh() bool { return n.Mesh != nil }

// Parent returns the node's parent or nil for a root node.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the node's direct children. The slice must not be modified.
func (n *Node) Children() []*Node { return n.children }

// Add attaches children to n, detaching them from any previous parent.
func (n *Node) Add(children ...*Node) {
	for _, c := range children {
		if c == nil || c == n {
			continue
		}
		if c.parent != nil {
			c.parent.remove(c)
		}
		c.parent = n
		n.children = append(n.children, c)
	}
}

func (n *Node) remove(c *Node) bool {
	for i, child := range n.children {
		if child == c {
			n.children = append(n.children[:i], n.children[i+1:]...)
			c.parent = nil
			return true
		}
	}
	return false
}

// Walk calls fn for n and every descendant in depth first order regardless
// of visibility. Returning false from fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}
