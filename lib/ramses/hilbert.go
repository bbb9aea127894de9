package ramses

import (
	"math"
	"sort"

	"github.com/phil-mansfield/amrio/lib/octree"
)

// hilbertStates[state] holds the next state and the output digit for each
// of the eight octants, indexed by 4x + 2y + z.
var hilbertStates = [12][2][8]int64{
	{{1, 2, 3, 2, 4, 5, 3, 5}, {0, 1, 3, 2, 7, 6, 4, 5}},
	{{2, 6, 0, 7, 8, 8, 0, 7}, {0, 7, 1, 6, 3, 4, 2, 5}},
	{{0, 9, 10, 9, 1, 1, 11, 11}, {0, 3, 7, 4, 1, 2, 6, 5}},
	{{6, 0, 6, 11, 9, 0, 9, 8}, {2, 3, 1, 0, 5, 4, 6, 7}},
	{{11, 11, 0, 7, 5, 9, 0, 7}, {4, 3, 5, 2, 7, 0, 6, 1}},
	{{4, 4, 8, 8, 0, 6, 10, 6}, {6, 5, 1, 2, 7, 4, 0, 3}},
	{{5, 7, 5, 3, 1, 1, 11, 11}, {4, 7, 3, 0, 5, 6, 2, 1}},
	{{6, 1, 6, 10, 9, 4, 9, 10}, {6, 7, 5, 4, 1, 0, 2, 3}},
	{{10, 3, 1, 1, 10, 3, 5, 9}, {2, 5, 3, 4, 1, 6, 0, 7}},
	{{4, 4, 8, 8, 2, 7, 2, 3}, {2, 1, 5, 6, 3, 0, 4, 7}},
	{{7, 2, 11, 2, 7, 5, 8, 5}, {4, 5, 7, 6, 3, 2, 0, 1}},
	{{10, 3, 2, 6, 10, 3, 4, 4}, {6, 1, 7, 0, 5, 2, 4, 3}},
}

// hilbert3d returns the position of the integer lattice site (x, y, z) along
// RAMSES' 3D Hilbert curve with the given number of bits per axis.
func hilbert3d(x, y, z int64, bitLength int) int64 {
	var order int64
	state := 0
	for i := bitLength - 1; i >= 0; i-- {
		sdigit := ((x>>uint(i))&1)<<2 | ((y>>uint(i))&1)<<1 | (z>>uint(i))&1
		hdigit := hilbertStates[state][1][sdigit]
		state = int(hilbertStates[state][0][sdigit])
		order = order<<3 | hdigit
	}
	return order
}

// CPUList returns the sorted, 0-indexed cpus whose Hilbert key range could
// intersect box. This follows RAMSES' own get_cpu_list: the box is covered
// by the eight cells of the coarsest level whose cells are smaller than the
// box, and every cpu whose key range touches one of those cells is kept.
// Only 3D outputs have a Hilbert decomposition that can be inverted, so
// every cpu is returned for lower dimensional outputs.
func CPUList(p *Params, box octree.Box) []int {
	all := make([]int, p.NCPU)
	for i := range all {
		all[i] = i
	}
	if p.NDim != 3 || len(p.HilbertMin) != p.NCPU {
		return all
	}

	boundKeys := make([]float64, p.NCPU+1)
	copy(boundKeys, p.HilbertMin)
	boundKeys[p.NCPU] = p.HilbertMax[p.NCPU-1]

	dmax := box.Width()
	ilevel, deltax := 0, 2*dmax
	// A degenerate box is covered by the finest cells.
	for deltax >= dmax && ilevel <= p.LevelMax {
		ilevel++
		deltax = math.Ldexp(1, -ilevel)
	}

	bitLength := ilevel - 1
	maxdom := int64(1) << uint(bitLength)

	var imin, jmin, kmin int64
	if bitLength > 0 {
		imin = int64(box.Min.X * float64(maxdom))
		jmin = int64(box.Min.Y * float64(maxdom))
		kmin = int64(box.Min.Z * float64(maxdom))
	}

	dkey := math.Pow(math.Ldexp(1, p.LevelMax+1)/float64(maxdom), 3)
	ndom := 1
	if bitLength > 0 {
		ndom = 8
	}

	boundingMin := make([]float64, ndom)
	boundingMax := make([]float64, ndom)
	for i := 0; i < ndom; i++ {
		var order int64
		if bitLength > 0 {
			// Corner i uses bit 0 for x, bit 1 for y, and bit 2 for z.
			order = hilbert3d(imin+int64(i&1), jmin+int64((i>>1)&1),
				kmin+int64((i>>2)&1), bitLength)
		}
		boundingMin[i] = float64(order) * dkey
		boundingMax[i] = float64(order+1) * dkey
	}

	cpuMin, cpuMax := make([]int, ndom), make([]int, ndom)
	for icpu := 1; icpu <= p.NCPU; icpu++ {
		for i := 0; i < ndom; i++ {
			if boundKeys[icpu-1] <= boundingMin[i] &&
				boundKeys[icpu] > boundingMin[i] {
				cpuMin[i] = icpu - 1
			}
			if boundKeys[icpu-1] < boundingMax[i] &&
				boundKeys[icpu] >= boundingMax[i] {
				cpuMax[i] = icpu
			}
		}
	}

	read := make([]bool, p.NCPU)
	out := []int{}
	for i := 0; i < ndom; i++ {
		for j := cpuMin[i]; j < cpuMax[i]; j++ {
			if !read[j] {
				read[j] = true
				out = append(out, j)
			}
		}
	}
	sort.Ints(out)
	return out
}
