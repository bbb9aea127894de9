/*package octree is a minimal octree container for block-structured AMR data.
It is built in two phases. A Builder accepts oct positions level-by-level and
domain-by-domain, in the order they appear on disk, and Finalize() turns it
into an immutable Octree which can be queried by any number of goroutines.

Octs are never linked to their parents: a cell is treated as a leaf unless an
oct exists one level down whose lattice site contains the cell's center. Only
leaf cells are ever selected.

Cells within an oct are indexed as x + 2*y + 4*z, using only the active
dimensions, so a 1D oct has cells 0 and 1 and a 2D oct has cells 0 through 3.
*/
package octree

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// Oct is a single refined block.
type Oct struct {
	Pos    r3.Vec
	Domain int
	Level  int
	// FileIndex is the oct's position within its (domain, level) block on
	// disk.
	FileIndex int
}

type latticeKey [3]int64

// Builder accumulates octs. It must not be used after Finalize() is called.
type Builder struct {
	ndim        int
	rootDims    [3]int
	left, right r3.Vec

	octs      [][]Oct
	attempted []map[int]int
	roots     int
	finalized bool
}

// NewBuilder creates a Builder for an ndim-dimensional domain spanning
// [left, right) whose coarsest level is split into rootDims octs along each
// axis. Axes at or beyond ndim are inactive and rootDims is ignored for them.
func NewBuilder(ndim int, rootDims [3]int, left, right r3.Vec) *Builder {
	if ndim < 1 || ndim > 3 {
		panic(fmt.Sprintf("ndim = %d, but octrees must have 1, 2, or 3 dimensions.", ndim))
	}
	for a := 0; a < 3; a++ {
		if a >= ndim || rootDims[a] < 1 {
			rootDims[a] = 1
		}
	}
	return &Builder{ndim: ndim, rootDims: rootDims, left: left, right: right}
}

// AllocateDomains sets the number of tracked domains to len(counts) and
// reserves space for counts[i] octs in domain i+1. roots is the number of
// octs expected on the coarsest level.
func (b *Builder) AllocateDomains(counts []int, roots int) {
	b.mustBeOpen()
	b.octs = make([][]Oct, len(counts))
	b.attempted = make([]map[int]int, len(counts))
	for i := range counts {
		b.octs[i] = make([]Oct, 0, counts[i])
		b.attempted[i] = map[int]int{}
	}
	b.roots = roots
}

// NumDomains returns the number of domains the Builder tracks.
func (b *Builder) NumDomains() int { return len(b.octs) }

// Add inserts octs centered on pos into the given 1-indexed domain at the
// given level and returns the number of octs which were inserted. Domains
// outside [1, NumDomains()] are declined entirely. Positions which fall
// outside the domain box along an active axis are declined individually, but
// still advance the file index of later octs in the block.
func (b *Builder) Add(domain, level int, pos []r3.Vec) int {
	b.mustBeOpen()
	if domain < 1 || domain > len(b.octs) || level < 0 {
		return 0
	}

	d := domain - 1
	start := b.attempted[d][level]
	b.attempted[d][level] = start + len(pos)

	n := 0
	for i, p := range pos {
		if !b.inside(p) {
			continue
		}
		b.octs[d] = append(b.octs[d], Oct{
			Pos: p, Domain: domain, Level: level, FileIndex: start + i,
		})
		n++
	}
	return n
}

func (b *Builder) inside(p r3.Vec) bool {
	for a := 0; a < b.ndim; a++ {
		x := component(p, a)
		if x < component(b.left, a) || x >= component(b.right, a) {
			return false
		}
	}
	return true
}

func (b *Builder) mustBeOpen() {
	if b.finalized {
		panic("Octree Builder used after Finalize() was called.")
	}
}

// Finalize freezes the Builder and returns the resulting Octree. It may
// only be called once.
func (b *Builder) Finalize() *Octree {
	b.mustBeOpen()
	b.finalized = true

	t := &Octree{
		ndim: b.ndim, rootDims: b.rootDims, left: b.left, right: b.right,
		roots: b.roots, octs: b.octs,
	}

	maxLevel := -1
	for d := range t.octs {
		octs := t.octs[d]
		sort.SliceStable(octs, func(i, j int) bool {
			if octs[i].Level != octs[j].Level {
				return octs[i].Level < octs[j].Level
			}
			return octs[i].FileIndex < octs[j].FileIndex
		})
		for i := range octs {
			if octs[i].Level > maxLevel {
				maxLevel = octs[i].Level
			}
		}
	}

	t.lattice = make([]map[latticeKey]struct{}, maxLevel+1)
	for l := range t.lattice {
		t.lattice[l] = map[latticeKey]struct{}{}
	}
	for d := range t.octs {
		for _, oct := range t.octs[d] {
			t.lattice[oct.Level][t.latticeSite(oct.Pos, oct.Level)] = struct{}{}
		}
	}

	b.octs, b.attempted = nil, nil
	return t
}

// Octree is an immutable collection of octs. All methods are safe for
// concurrent use.
type Octree struct {
	ndim        int
	rootDims    [3]int
	left, right r3.Vec
	roots       int

	octs    [][]Oct
	lattice []map[latticeKey]struct{}
}

// Dim returns the number of active dimensions.
func (t *Octree) Dim() int { return t.ndim }

// NumDomains returns the number of domains the octree tracks.
func (t *Octree) NumDomains() int { return len(t.octs) }

// CellsPerOct returns 2^ndim.
func (t *Octree) CellsPerOct() int { return 1 << uint(t.ndim) }

// NumOcts returns the number of octs inserted into the given domain. A
// domain of 0 counts every domain.
func (t *Octree) NumOcts(domain int) int {
	if domain == 0 {
		n := 0
		for d := range t.octs {
			n += len(t.octs[d])
		}
		return n
	}
	if domain < 1 || domain > len(t.octs) {
		return 0
	}
	return len(t.octs[domain-1])
}

// Octs returns the octs of a domain in level, then file index, order. The
// returned slice must not be modified.
func (t *Octree) Octs(domain int) []Oct {
	if domain < 1 || domain > len(t.octs) {
		return nil
	}
	return t.octs[domain-1]
}

// LevelCounts returns the number of octs at each level of a domain. The
// array is long enough to hold the deepest level in any domain.
func (t *Octree) LevelCounts(domain int) []int {
	out := make([]int, len(t.lattice))
	for _, oct := range t.Octs(domain) {
		out[oct.Level]++
	}
	return out
}

// OctWidth returns the width of an oct at the given level. Inactive axes
// have the full domain width.
func (t *Octree) OctWidth(level int) r3.Vec {
	var w [3]float64
	scale := math.Ldexp(1, level)
	for a := 0; a < 3; a++ {
		full := component(t.right, a) - component(t.left, a)
		if a < t.ndim {
			w[a] = full / (float64(t.rootDims[a]) * scale)
		} else {
			w[a] = full
		}
	}
	return r3.Vec{X: w[0], Y: w[1], Z: w[2]}
}

// CellCenter returns the center of the given cell of an oct.
func (t *Octree) CellCenter(oct *Oct, cell int) r3.Vec {
	w := t.OctWidth(oct.Level)
	c := [3]float64{oct.Pos.X, oct.Pos.Y, oct.Pos.Z}
	for a := 0; a < t.ndim; a++ {
		bit := float64((cell >> uint(a)) & 1)
		c[a] += (bit - 0.5) * component(w, a) / 2
	}
	return r3.Vec{X: c[0], Y: c[1], Z: c[2]}
}

// IsLeaf returns true if the given cell of an oct has not been refined.
func (t *Octree) IsLeaf(oct *Oct, cell int) bool {
	if oct.Level+1 >= len(t.lattice) {
		return true
	}
	c := t.CellCenter(oct, cell)
	_, refined := t.lattice[oct.Level+1][t.latticeSite(c, oct.Level+1)]
	return !refined
}

func (t *Octree) latticeSite(p r3.Vec, level int) latticeKey {
	w := t.OctWidth(level)
	var key latticeKey
	for a := 0; a < t.ndim; a++ {
		key[a] = int64(math.Floor(
			(component(p, a) - component(t.left, a)) / component(w, a),
		))
	}
	return key
}

func (t *Octree) octBox(oct *Oct) (min, max r3.Vec) {
	half := r3.Scale(0.5, t.OctWidth(oct.Level))
	min, max = r3.Sub(oct.Pos, half), r3.Add(oct.Pos, half)
	for a := t.ndim; a < 3; a++ {
		min = setComponent(min, a, component(t.left, a))
		max = setComponent(max, a, component(t.right, a))
	}
	return min, max
}

// DomainIdentify returns the sorted ids of every domain with at least one
// oct which could contain a selected cell.
func (t *Octree) DomainIdentify(sel Selector) []int {
	out := []int{}
	for d := range t.octs {
		for i := range t.octs[d] {
			min, max := t.octBox(&t.octs[d][i])
			if sel.SelectBox(min, max) {
				out = append(out, d+1)
				break
			}
		}
	}
	return out
}

// visit calls f on every selected leaf cell of a domain in level, file
// index, cell order.
func (t *Octree) visit(sel Selector, domain int, f func(oct *Oct, cell int)) {
	octs := t.Octs(domain)
	nc := t.CellsPerOct()
	for i := range octs {
		oct := &octs[i]
		min, max := t.octBox(oct)
		if !sel.SelectBox(min, max) {
			continue
		}
		half := r3.Scale(0.5, t.OctWidth(oct.Level))
		for cell := 0; cell < nc; cell++ {
			if !t.IsLeaf(oct, cell) {
				continue
			}
			if sel.SelectCell(t.CellCenter(oct, cell), half) {
				f(oct, cell)
			}
		}
	}
}

// CountOctCells returns the number of selected leaf cells in a domain.
func (t *Octree) CountOctCells(sel Selector, domain int) int {
	n := 0
	t.visit(sel, domain, func(*Oct, int) { n++ })
	return n
}

// FileIndexOcts returns three parallel arrays describing each selected leaf
// cell of a domain: its level, its index in the output arrays, and its index
// within that level's on-disk block, oct*2^ndim + cell. cellCount must be
// the value returned by CountOctCells.
func (t *Octree) FileIndexOcts(
	sel Selector, domain, cellCount int,
) (levels, cellInds, fileInds []int) {
	levels = make([]int, 0, cellCount)
	cellInds = make([]int, 0, cellCount)
	fileInds = make([]int, 0, cellCount)
	nc := t.CellsPerOct()
	t.visit(sel, domain, func(oct *Oct, cell int) {
		levels = append(levels, oct.Level)
		cellInds = append(cellInds, len(cellInds))
		fileInds = append(fileInds, oct.FileIndex*nc+cell)
	})
	return levels, cellInds, fileInds
}

// FillLevel copies every cell of the given level from the per-level buffers
// in src into the output arrays in dest. Fields missing from either map are
// skipped.
func (t *Octree) FillLevel(
	level int, levels, cellInds, fileInds []int,
	dest, src map[string][]float64,
) {
	for name, out := range dest {
		in, ok := src[name]
		if !ok {
			continue
		}
		for i := range levels {
			if levels[i] == level {
				out[cellInds[i]] = in[fileInds[i]]
			}
		}
	}
}

func component(v r3.Vec, a int) float64 {
	switch a {
	case 0:
		return v.X
	case 1:
		return v.Y
	}
	return v.Z
}

func setComponent(v r3.Vec, a int, x float64) r3.Vec {
	switch a {
	case 0:
		v.X = x
	case 1:
		v.Y = x
	default:
		v.Z = x
	}
	return v
}
