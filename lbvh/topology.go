package lbvh

import (
	"math/bits"

	"github.com/flywave/go-lbvh/types"
)

// delta returns the length of the common prefix of the Morton codes at
// sorted positions i and j, extended by a tie-break on the common prefix of
// i and j themselves when the codes are equal. j outside [0, n) returns -1,
// giving every in-range pair a strictly greater prefix length than any
// out-of-range neighbor.
func delta(codes []uint32, perm []uint32, n, i, j int) int32 {
	if j < 0 || j >= n {
		return -1
	}
	ci, cj := codes[perm[i]], codes[perm[j]]
	if ci != cj {
		return int32(bits.LeadingZeros32(ci ^ cj))
	}
	return 32 + int32(bits.LeadingZeros32(uint32(i)^uint32(j)))
}

// buildTopology runs the Karras topology construction: each internal node
// index i in [0, n-1) is derived independently from its sorted neighbors, so
// the per-node loop below is embarrassingly parallel (sharded across the
// scheduler's workers, no cross-node synchronization needed here).
//
// It returns the internal node array (AABBs left zero, filled later by
// propagateBoxes), an internalParent table (internalParent[k] is the
// internal-node index that names internal node k as a non-leaf child, or -1
// for the root), and a leafParent table (leafParent[k] is the internal-node
// index that names sorted-primitive slot k as a leaf child). These live
// alongside Node rather than inside it, keeping the hot traversal struct
// small since parent pointers are only needed during the build.
func buildTopology[S types.Float](sched Scheduler, codes []uint32, perm []uint32) ([]Node[S], []int32, []int32, error) {
	n := len(perm)
	numInternal := n - 1

	nodes := make([]Node[S], numInternal)
	internalParent := make([]int32, numInternal)
	for i := range internalParent {
		internalParent[i] = -1
	}
	leafParent := make([]int32, n)

	err := sched.Run(shardCount(sched, numInternal), func(div WorkDivision) error {
		start, end := shardBounds(div, numInternal)
		for i := start; i < end; i++ {
			left, right, leftIsLeaf, rightIsLeaf := karrasSplit(codes, perm, n, i)

			var flags uint32
			if leftIsLeaf {
				flags |= FlagLeftIsLeaf
				leafParent[left] = int32(i)
			} else {
				internalParent[left] = int32(i)
			}
			if rightIsLeaf {
				flags |= FlagRightIsLeaf
				leafParent[right] = int32(i)
			} else {
				internalParent[right] = int32(i)
			}

			nodes[i] = Node[S]{
				Left:  uint32(left),
				Right: uint32(right),
				Flags: flags,
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return nodes, internalParent, leafParent, nil
}

// karrasSplit computes internal node i's children: direction, range length
// via doubling + binary search, split position via a second binary search,
// then resolves left/right to either a leaf (sorted primitive) index or an
// internal node index.
func karrasSplit(codes []uint32, perm []uint32, n, i int) (left, right int, leftIsLeaf, rightIsLeaf bool) {
	d := 1
	if delta(codes, perm, n, i, i+1) < delta(codes, perm, n, i, i-1) {
		d = -1
	}

	deltaMin := delta(codes, perm, n, i, i-d)

	lMax := 2
	for delta(codes, perm, n, i, i+lMax*d) > deltaMin {
		lMax *= 2
	}

	l := 0
	for t := lMax / 2; t >= 1; t /= 2 {
		if delta(codes, perm, n, i, i+(l+t)*d) > deltaMin {
			l += t
		}
	}
	j := i + l*d

	deltaNode := delta(codes, perm, n, i, j)

	s := 0
	for t := l; t > 1; {
		t = (t + 1) / 2
		if delta(codes, perm, n, i, i+(s+t)*d) > deltaNode {
			s += t
		}
	}
	gamma := i + s*d
	if d < 0 {
		gamma += d
	}

	lo, hi := i, j
	if lo > hi {
		lo, hi = hi, lo
	}

	leftIsLeaf = lo == gamma
	rightIsLeaf = gamma+1 == hi

	if leftIsLeaf {
		left = lo
	} else {
		left = gamma
	}
	if rightIsLeaf {
		right = hi
	} else {
		right = gamma + 1
	}
	return left, right, leftIsLeaf, rightIsLeaf
}
