package asset

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/chewxy/math32"
	"github.com/fogleman/fauxgl"
	"gonum.org/v1/gonum/spatial/r3"
)

// Facet is a triangle of a binary STL file.
type Facet struct {
	V [3]r3.Vec
	// Attr is the attribute word of the facet. When bit 15 is set bits
	// 0-14 hold a 5 bit per channel color, blue in the low bits.
	Attr uint16
}

const attrColorValid = 1 << 15

// Normal returns the unit normal of the facet from its vertex winding.
func (f Facet) Normal() r3.Vec {
	return r3.Unit(r3.Cross(r3.Sub(f.V[1], f.V[0]), r3.Sub(f.V[2], f.V[0])))
}

// Color decodes the facet color. ok is false if the facet carries none.
func (f Facet) Color() (c fauxgl.Color, ok bool) {
	if f.Attr&attrColorValid == 0 {
		return c, false
	}
	const max = 31
	return fauxgl.Color{
		R: float64(f.Attr>>10&max) / max,
		G: float64(f.Attr>>5&max) / max,
		B: float64(f.Attr&max) / max,
		A: 1,
	}, true
}

// ColorAttr encodes c as a facet attribute word.
func ColorAttr(c fauxgl.Color) uint16 {
	q := func(x float64) uint16 {
		return uint16(math.Round(math.Max(0, math.Min(1, x)) * 31))
	}
	return attrColorValid | q(c.R)<<10 | q(c.G)<<5 | q(c.B)
}

// MeshFacets converts mesh triangles to facets without attributes.
func MeshFacets(mesh *fauxgl.Mesh) []Facet {
	facets := make([]Facet, len(mesh.Triangles))
	for i, t := range mesh.Triangles {
		facets[i].V = [3]r3.Vec{r3v(t.V1.Position), r3v(t.V2.Position), r3v(t.V3.Position)}
	}
	return facets
}

func r3v(v fauxgl.Vector) r3.Vec { return r3.Vec{X: v.X, Y: v.Y, Z: v.Z} }

// stlHeader defines the STL file header.
type stlHeader struct {
	_     [80]uint8 // Header
	Count uint32    // Number of triangles
}

const stlTriangleSize = 50

// WriteSTL writes facets to a writer in binary STL file format.
func WriteSTL(w io.Writer, model []Facet) error {
	if len(model) == 0 {
		return errors.New("empty facet slice")
	}
	header := stlHeader{
		Count: uint32(len(model)),
	}
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, &header); err != nil {
		return err
	}
	var (
		d stlTriangle
		b [stlTriangleSize]byte
	)
	for _, f := range model {
		n := f.Normal()
		d.Normal = to3F32(n)
		d.Vertex1 = to3F32(f.V[0])
		d.Vertex2 = to3F32(f.V[1])
		d.Vertex3 = to3F32(f.V[2])
		d.Attr = f.Attr
		d.put(b[:])
		if _, err := bw.Write(b[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadSTL decodes a binary STL stream. Facets whose stored normal disagrees
// with their winding are kept and reported with errCalculatedNormalMismatch.
func ReadSTL(r io.Reader) (output []Facet, readErr error) {
	var header stlHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errors.New("encountered EOF while reading STL header")
		}
		return nil, errors.New("STL header read failed: " + err.Error())
	}
	if header.Count == 0 {
		return nil, errors.New("STL header indicates 0 triangles present")
	}
	var (
		buf            [stlTriangleSize]byte
		d              stlTriangle
		i              int
		normMismatches int
	)
	defer func() {
		if readErr != nil && !errors.Is(readErr, errCalculatedNormalMismatch) {
			readErr = fmt.Errorf("%d/%d STL triangles read: %w", i+1, header.Count, readErr)
		}
	}()
	output = make([]Facet, 0, min(int(header.Count), 1<<20))
	for i = 0; i < int(header.Count); i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, err
		}
		d.get(buf[:])
		if err := d.validate(); err != nil {
			if errors.Is(err, errCalculatedNormalMismatch) {
				normMismatches++
				if normMismatches > 10_000 {
					// This may be valid output, so we return the triangles.
					return output, fmt.Errorf("got too many normal vector mismatches (%d)", normMismatches)
				}
				readErr = err
			} else {
				return nil, err
			}
		}
		output = append(output, d.facet())
	}
	return output, readErr
}

// stlTriangle defines the triangle data within an STL file.
type stlTriangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
	Attr    uint16
}

func (t stlTriangle) put(b []byte) {
	if len(b) < stlTriangleSize {
		panic("need length 50 to marshal stlTriangle")
	}
	put3F32(b, t.Normal)
	put3F32(b[12:], t.Vertex1)
	put3F32(b[24:], t.Vertex2)
	put3F32(b[36:], t.Vertex3)
	binary.LittleEndian.PutUint16(b[48:], t.Attr)
}

func (t *stlTriangle) get(b []byte) {
	if len(b) < stlTriangleSize {
		panic("need length 50 to unmarshal stlTriangle")
	}
	get3F32(b, &t.Normal)
	get3F32(b[12:], &t.Vertex1)
	get3F32(b[24:], &t.Vertex2)
	get3F32(b[36:], &t.Vertex3)
	t.Attr = binary.LittleEndian.Uint16(b[48:])
}

func put3F32(b []byte, f [3]float32) {
	_ = b[11] // early bounds check
	binary.LittleEndian.PutUint32(b, math.Float32bits(f[0]))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(f[1]))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(f[2]))
}

func get3F32(b []byte, f *[3]float32) {
	_ = b[11] // early bounds check
	f[0] = math.Float32frombits(binary.LittleEndian.Uint32(b))
	f[1] = math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))
	f[2] = math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))
}

func bad3F32(f [3]float32) bool {
	return math32.IsNaN(f[0]) || math32.IsInf(f[0], 0) ||
		math32.IsNaN(f[1]) || math32.IsInf(f[1], 0) ||
		math32.IsNaN(f[2]) || math32.IsInf(f[2], 0)
}

var errCalculatedNormalMismatch = errors.New("triangle normal not approximately equal to calculated normal from vertices")

func (t stlTriangle) validate() error {
	const epsilon = 1e-12
	const normTol = 5e-2
	if bad3F32(t.Normal) {
		return errors.New("inf/NaN STL triangle normal")
	}
	if bad3F32(t.Vertex1) || bad3F32(t.Vertex2) || bad3F32(t.Vertex3) {
		return errors.New("inf/NaN STL triangle vertex")
	}
	if t.degenerate(epsilon) {
		return errors.New("triangle is degenerate")
	}
	if t.Normal == [3]float32{} {
		// Writers may leave the normal for readers to compute.
		return nil
	}
	calcNormal := t.normalFromVertices()
	calcNormalNeg := [3]float32{-calcNormal[0], -calcNormal[1], -calcNormal[2]}
	if !equalWithin3F32(calcNormal, t.Normal, normTol) && !equalWithin3F32(calcNormalNeg, t.Normal, normTol) {
		return errCalculatedNormalMismatch
	}
	return nil
}

func r3From3F32(f [3]float32) r3.Vec {
	return r3.Vec{X: float64(f[0]), Y: float64(f[1]), Z: float64(f[2])}
}

func to3F32(v r3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}

func (t stlTriangle) normalFromVertices() [3]float32 {
	v1 := r3.Scale(10, r3From3F32(t.Vertex1))
	v2 := r3.Scale(10, r3From3F32(t.Vertex2))
	v3 := r3.Scale(10, r3From3F32(t.Vertex3))
	n := r3.Unit(r3.Cross(r3.Sub(v2, v1), r3.Sub(v3, v1)))
	return to3F32(n)
}

// degenerate returns true if two vertices of the triangle coincide.
func (t stlTriangle) degenerate(tol float32) bool {
	return equalWithin3F32(t.Vertex1, t.Vertex2, tol) ||
		equalWithin3F32(t.Vertex2, t.Vertex3, tol) ||
		equalWithin3F32(t.Vertex3, t.Vertex1, tol)
}

func equalWithin3F32(a, b [3]float32, tol float32) bool {
	return math32.Abs(a[0]-b[0]) <= tol &&
		math32.Abs(a[1]-b[1]) <= tol &&
		math32.Abs(a[2]-b[2]) <= tol
}

func (t stlTriangle) facet() Facet {
	return Facet{
		V:    [3]r3.Vec{r3From3F32(t.Vertex1), r3From3F32(t.Vertex2), r3From3F32(t.Vertex3)},
		Attr: t.Attr,
	}
}
