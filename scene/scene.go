package scene

import (
	"sync"

	"github.com/fogleman/fauxgl"
)

// Scene is a graph of nodes rendered together. It is owned by the goroutine
// that renders it; Insert is the only method safe to call concurrently.
type Scene struct {
	Background fauxgl.Color

	root Node

	mu      sync.Mutex
	pending []func()
}

// New returns an empty scene with a black background.
func New() *Scene {
	sc := &Scene{Background: fauxgl.Color{A: 1}}
	sc.root.Transform = Identity()
	return sc
}

// Add attaches nodes to the scene root.
func (sc *Scene) Add(nodes ...*Node) { sc.root.Add(nodes...) }

// Remove detaches a top level node from the scene. It returns false if the
// node is not a direct child of the scene root.
func (sc *Scene) Remove(n *Node) bool { return sc.root.remove(n) }

// Nodes returns the top level nodes of the scene.
func (sc *Scene) Nodes() []*Node { return sc.root.children }

// Insert queues n to be added to the scene root on the next Flush. It may be
// called from any goroutine, which lets asynchronous loaders publish results
// without mutating a scene that is being rendered.
func (sc *Scene) Insert(n *Node) {
	sc.enqueue(func() { sc.Add(n) })
}

// Replace queues the replacement of the top level nodes named n.Name by n.
// If no such node exists n is added. Like Insert it is safe to call from any
// goroutine and takes effect on the next Flush.
func (sc *Scene) Replace(n *Node) {
	sc.enqueue(func() {
		for i := len(sc.root.children) - 1; i >= 0; i-- {
			if c := sc.root.children[i]; c.Name == n.Name && c != n {
				sc.root.remove(c)
			}
		}
		sc.Add(n)
	})
}

func (sc *Scene) enqueue(op func()) {
	sc.mu.Lock()
	sc.pending = append(sc.pending, op)
	sc.mu.Unlock()
}

// Flush applies queued insertions and replacements in the order they were
// requested and returns how many were applied.
func (sc *Scene) Flush() int {
	sc.mu.Lock()
	pending := sc.pending
	sc.pending = nil
	sc.mu.Unlock()
	for _, op := range pending {
		op()
	}
	return len(pending)
}

// Traverse calls fn for every visible node with its world matrix. Hidden
// nodes and their subtrees are skipped, as are the children of nodes for
// which fn returns false.
func (sc *Scene) Traverse(fn func(n *Node, world fauxgl.Matrix) bool) {
	for _, n := range sc.root.children {
		traverse(n, fauxgl.Identity(), fn)
	}
}

func traverse(n *Node, parent fauxgl.Matrix, fn func(*Node, fauxgl.Matrix) bool) {
	if n.hidden {
		return
	}
	world := parent.Mul(n.Transform.Matrix())
	if !fn(n, world) {
		return
	}
	for _, c := range n.children {
		traverse(c, world, fn)
	}
}

// Find returns the first node named name in depth first order, hidden nodes
// included.
func (sc *Scene) Find(name string) *Node {
	var found *Node
	for _, top := range sc.root.children {
		top.Walk(func(n *Node) bool {
			if found == nil && n.Name == name {
				found = n
			}
			return found == nil
		})
		if found != nil {
			break
		}
	}
	return found
}

// DirectionalLight returns the first visible light of the scene.
func (sc *Scene) DirectionalLight() *DirectionalLight {
	var light *DirectionalLight
	sc.Traverse(func(n *Node, _ fauxgl.Matrix) bool {
		if light == nil && n.Light != nil {
			light = n.Light
		}
		return light == nil
	})
	return light
}
