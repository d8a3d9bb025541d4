package asset

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fogleman/fauxgl"
	"github.com/soypat/refract/scene"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultFallbackColor is given to imported meshes without a usable material.
var DefaultFallbackColor = fauxgl.HexColor("#cccccc")

// ImportOptions configures how an imported mesh is placed in a scene.
type ImportOptions struct {
	// Name of the root node. Defaults to the file name.
	Name     string
	Position r3.Vec
	Rotation r3.Vec
	// Scale of the root node. The zero value means unit scale.
	Scale r3.Vec
	// Fallback is the color of parts without a valid material. The zero
	// value means DefaultFallbackColor.
	Fallback      fauxgl.Color
	CastShadow    bool
	ReceiveShadow bool
	// WeldTolerance merges vertices closer than this distance. Zero
	// disables welding.
	WeldTolerance float64
	// SmoothAngle is the crease angle in radians below which adjacent face
	// normals are averaged. Zero keeps the file's normals.
	SmoothAngle float64
}

// ImportMesh decodes the mesh file at path in a new goroutine. Binary STL
// files with per facet colors yield one child node per color. Other formats
// supported by fauxgl (ASCII STL, OBJ, PLY, 3DS) yield a single child.
func ImportMesh(ctx context.Context, path string, opts ImportOptions) *Handle[*scene.Node] {
	return Go(ctx, func(ctx context.Context) (*scene.Node, error) {
		return DecodeMesh(path, opts)
	})
}

// DecodeMesh is the synchronous form of ImportMesh. Errors are of type
// *ResourceLoadError.
func DecodeMesh(path string, opts ImportOptions) (*scene.Node, error) {
	parts, err := decodeParts(path)
	if err != nil {
		return nil, loadError("mesh", path, err)
	}
	name := opts.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	root := scene.NewNode(name)
	root.Transform.Position = opts.Position
	root.Transform.Rotation = opts.Rotation
	if opts.Scale != (r3.Vec{}) {
		root.Transform.Scale = opts.Scale
	}
	for _, part := range parts {
		smooth(part.Mesh, opts)
	}
	root.Add(parts...)
	prepare(root, path, opts)
	logger().Info("mesh imported", slog.String("path", path), slog.Int("parts", len(parts)))
	return root, nil
}

// prepare gives every mesh under root a valid material and the requested
// shadow flags.
func prepare(root *scene.Node, path string, opts ImportOptions) {
	fallback := opts.Fallback
	if fallback == (fauxgl.Color{}) {
		fallback = DefaultFallbackColor
	}
	root.Walk(func(n *scene.Node) bool {
		if !n.IsMesh() {
			return true
		}
		n.CastShadow = opts.CastShadow
		n.ReceiveShadow = opts.ReceiveShadow
		std, isStd := n.Material.(*scene.StandardMaterial)
		if n.Material == nil || (isStd && !std.Valid()) {
			logger().Warn("mesh part has no usable material, using fallback",
				slog.String("path", path), slog.String("part", n.Name))
			n.Material = scene.NewStandardMaterial(fallback)
		}
		return true
	})
}

func decodeParts(path string) ([]*scene.Node, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".stl":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if isBinarySTL(b) {
			return stlParts(b)
		}
		mesh, err := fauxgl.LoadSTL(path)
		if err != nil {
			return nil, err
		}
		return []*scene.Node{scene.NewMesh("stl", mesh, nil)}, nil
	case ".obj", ".ply", ".3ds":
		mesh, err := fauxgl.LoadMesh(path)
		if err != nil {
			return nil, err
		}
		if len(mesh.Triangles) == 0 {
			return nil, fmt.Errorf("no triangles in %s", filepath.Base(path))
		}
		return []*scene.Node{scene.NewMesh(strings.TrimPrefix(ext, "."), mesh, nil)}, nil
	default:
		return nil, fmt.Errorf("unsupported mesh format %q", ext)
	}
}

func isBinarySTL(b []byte) bool {
	if len(b) < 84 {
		return false
	}
	n := binary.LittleEndian.Uint32(b[80:84])
	if int64(len(b)) == 84+int64(n)*stlTriangleSize {
		return true
	}
	return !bytes.HasPrefix(bytes.TrimSpace(b[:80]), []byte("solid"))
}

func stlParts(b []byte) ([]*scene.Node, error) {
	facets, err := ReadSTL(bytes.NewReader(b))
	if err != nil && len(facets) == 0 {
		return nil, err
	}
	if err != nil {
		logger().Warn("STL decoded with warnings", slog.String("err", err.Error()))
	}
	groups := make(map[uint16][]*fauxgl.Triangle)
	for _, f := range facets {
		key := f.Attr
		if key&attrColorValid == 0 {
			key = 0
		}
		groups[key] = append(groups[key], facetTriangle(f))
	}
	keys := make([]int, 0, len(groups))
	for k := range groups {
		keys = append(keys, int(k))
	}
	sort.Ints(keys)
	parts := make([]*scene.Node, 0, len(keys))
	for _, k := range keys {
		attr := uint16(k)
		mesh := fauxgl.NewTriangleMesh(groups[attr])
		var mat scene.Material
		name := "uncolored"
		if c, ok := (Facet{Attr: attr}).Color(); ok {
			mat = scene.NewStandardMaterial(c)
			name = fmt.Sprintf("color-%04x", attr&^attrColorValid)
		}
		parts = append(parts, scene.NewMesh(name, mesh, mat))
	}
	return parts, nil
}

func facetTriangle(f Facet) *fauxgl.Triangle {
	n := f.Normal()
	normal := fauxgl.Vector{X: n.X, Y: n.Y, Z: n.Z}
	v := func(p r3.Vec) fauxgl.Vertex {
		return fauxgl.Vertex{Position: fauxgl.Vector{X: p.X, Y: p.Y, Z: p.Z}, Normal: normal}
	}
	return &fauxgl.Triangle{V1: v(f.V[0]), V2: v(f.V[1]), V3: v(f.V[2])}
}
