package lbvh

import (
	"sync/atomic"

	"github.com/flywave/go-lbvh/types"
)

// propagateBoxes fills every internal node's Box with the exact union of its
// children's boxes, bottom-up. Leaves are sharded across the scheduler's
// workers; each leaf's walk goes upward from its parent, atomically
// incrementing a per-node arrival counter. The first
// child to arrive at a node has no right to read its sibling's box yet and
// stops; the second child finalizes the node's union and continues upward.
// Every internal node is therefore unioned exactly once, by whichever
// leaf-task's walk happens to arrive there second.
//
// Correctness relies on Go's memory model guarantee that atomic operations on
// the same variable are synchronized-before/after one another: the goroutine
// that observes count==2 is guaranteed to see every plain write the count==1
// goroutine made before its own atomic increment, which is the release/
// acquire pairing this handoff needs.
func propagateBoxes[S types.Float](sched Scheduler, nodes []Node[S], internalParent, leafParent []int32, perm []uint32, boxes []types.AABB[S]) error {
	numInternal := len(nodes)
	if numInternal == 0 {
		return nil
	}

	visited := make([]int32, numInternal)
	n := len(perm)

	return sched.Run(shardCount(sched, n), func(div WorkDivision) error {
		start, end := shardBounds(div, n)
		for leaf := start; leaf < end; leaf++ {
			walkAndUnion(nodes, internalParent, leafParent[leaf], perm, boxes, visited)
		}
		return nil
	})
}

func walkAndUnion[S types.Float](nodes []Node[S], internalParent []int32, startNode int32, perm []uint32, boxes []types.AABB[S], visited []int32) {
	for node := startNode; node != -1; node = internalParent[node] {
		if atomic.AddInt32(&visited[node], 1) == 1 {
			return
		}

		n := &nodes[node]
		var leftBox, rightBox types.AABB[S]
		if n.LeftIsLeaf() {
			leftBox = boxes[perm[n.Left]]
		} else {
			leftBox = nodes[n.Left].Box
		}
		if n.RightIsLeaf() {
			rightBox = boxes[perm[n.Right]]
		} else {
			rightBox = nodes[n.Right].Box
		}
		n.Box = types.Union(leftBox, rightBox)
	}
}
