package lbvh

import "github.com/flywave/go-lbvh/types"

// defaultStackDepth is the stack capacity reserved up front. A balanced LBVH
// over any realistic primitive count never exceeds this depth (64 is enough
// for well over 2^60 primitives); the stack still grows past it via append
// if a deeper tree is ever traversed. Equal Morton codes are split by their
// sorted index, so even all-centroids-coincident input builds a balanced tree.
const defaultStackDepth = 64

// Traverse walks bvh looking for the nearest primitive hit along ray,
// invoking intersect only on primitives whose leaf survives AABB pruning.
// It is pure and reentrant: many goroutines may call Traverse against the
// same (bvh, primitives) pair concurrently, provided intersect itself is
// safe for concurrent use.
func Traverse[P any, S types.Float](bvh *Bvh[S], primitives []P, ray types.Ray[S], intersect Intersector[P, S]) types.Intersection[S] {
	hit := types.NoHit[S]()

	n := bvh.N()
	if n == 0 {
		return hit
	}
	if n == 1 {
		return intersect(primitives[bvh.Perm[0]], ray)
	}

	stack := make([]uint32, 1, defaultStackDepth)
	stack[0] = 0

	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := &bvh.Nodes[idx]
		if tNear, _, ok := node.Box.IntersectRay(ray, 0, hit.T); !ok || tNear > hit.T {
			continue
		}

		leftTNear, visitLeft := visitChild(bvh, primitives, node.Left, node.LeftIsLeaf(), ray, &hit, intersect)
		rightTNear, visitRight := visitChild(bvh, primitives, node.Right, node.RightIsLeaf(), ray, &hit, intersect)

		// Push the farther internal child first so the closer one is
		// popped (and therefore visited) next, maximizing early pruning.
		switch {
		case visitLeft && visitRight:
			if leftTNear <= rightTNear {
				stack = append(stack, node.Right, node.Left)
			} else {
				stack = append(stack, node.Left, node.Right)
			}
		case visitLeft:
			stack = append(stack, node.Left)
		case visitRight:
			stack = append(stack, node.Right)
		}
	}

	return hit
}

// visitChild handles a single child reference: a leaf is intersected
// immediately and folded into hit; an internal node is slab-tested and, if
// it survives, reported back for the caller to push onto the stack.
func visitChild[P any, S types.Float](bvh *Bvh[S], primitives []P, childIdx uint32, isLeaf bool, ray types.Ray[S], hit *types.Intersection[S], intersect Intersector[P, S]) (tNear S, push bool) {
	if isLeaf {
		if res := intersect(primitives[bvh.Perm[childIdx]], ray); res.Closer(*hit) {
			*hit = res
		}
		return 0, false
	}

	child := &bvh.Nodes[childIdx]
	tNear, _, ok := child.Box.IntersectRay(ray, 0, hit.T)
	if !ok || tNear > hit.T {
		return 0, false
	}
	return tNear, true
}
