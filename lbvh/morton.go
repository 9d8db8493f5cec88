package lbvh

import (
	"runtime"

	"github.com/flywave/go-lbvh/types"
)

// mortonBits is the number of bits quantized per axis; 3*mortonBits must not
// exceed 32 since codes are stored as uint32.
const mortonBits = 10

// mortonScale is the number of distinct quantization buckets per axis.
const mortonScale = 1 << mortonBits // 1024

// expandBits10 takes the low 10 bits of v and spreads them so that bit i
// lands at output position 3*i, leaving the two bits in between clear. This
// is the standard bit-interleave trick used to build a 3D Morton code.
func expandBits10(v uint32) uint32 {
	v &= 0x000003ff
	v = (v | (v << 16)) & 0x030000ff
	v = (v | (v << 8)) & 0x0300f00f
	v = (v | (v << 4)) & 0x030c30c3
	v = (v | (v << 2)) & 0x09249249
	return v
}

// encodeMorton3 interleaves three 10-bit quantized axis values into a single
// 30-bit Morton code, most significant axis first (x, then y, then z).
func encodeMorton3(qx, qy, qz uint32) uint32 {
	return expandBits10(qx)<<2 | expandBits10(qy)<<1 | expandBits10(qz)
}

// quantizeAxis maps a normalized [0, 1] coordinate to a 10-bit integer,
// saturating at mortonScale-1. NaN normalizes to 0 the same way a clamp of a
// NaN comparison falls through to the lower bound.
func quantizeAxis[S types.Float](n S) uint32 {
	if !(n > 0) {
		return 0
	}
	if n >= 1 {
		return mortonScale - 1
	}
	return uint32(float64(n) * float64(mortonScale))
}

// mortonCode computes the 30-bit Morton code for centroid c inside the scene
// centroid bounds scene. Degenerate axes (scene.Min[k] == scene.Max[k])
// collapse to quantized value 0 on that axis.
func mortonCode[S types.Float](c types.Vec3[S], scene types.AABB[S]) uint32 {
	var q [3]uint32
	for axis := 0; axis < 3; axis++ {
		lo, hi := scene.Min[axis], scene.Max[axis]
		span := hi - lo
		if span <= 0 {
			q[axis] = 0
			continue
		}
		n := (c[axis] - lo) / span
		if n < 0 {
			n = 0
		} else if n > 1 {
			n = 1
		}
		q[axis] = quantizeAxis(n)
	}
	return encodeMorton3(q[0], q[1], q[2])
}

// centroidBounds computes the scene AABB over primitive centroids (not over
// their full AABBs), the normalization domain Morton encoding works in.
func centroidBounds[S types.Float](boxes []types.AABB[S]) types.AABB[S] {
	bounds := types.EmptyAABB[S]()
	for _, b := range boxes {
		bounds = bounds.Extend(b.Center())
	}
	return bounds
}

// computeCodes computes a Morton code per primitive box, sharded across the
// scheduler's worker pool. Each shard writes to a disjoint range of codes so
// no synchronization beyond the final barrier is required.
func computeCodes[S types.Float](sched Scheduler, boxes []types.AABB[S], scene types.AABB[S]) ([]uint32, error) {
	codes := make([]uint32, len(boxes))
	err := sched.Run(shardCount(sched, len(boxes)), func(div WorkDivision) error {
		start, end := shardBounds(div, len(boxes))
		for i := start; i < end; i++ {
			codes[i] = mortonCode(boxes[i].Center(), scene)
		}
		return nil
	})
	return codes, err
}

// shardCount picks one shard per available worker (DefaultScheduler.Workers
// when set, else GOMAXPROCS), capped at n so no shard is empty; a
// single-element input runs as a single shard.
func shardCount(sched Scheduler, n int) uint32 {
	if n == 0 {
		return 0
	}
	workers := runtime.GOMAXPROCS(0)
	if ds, ok := sched.(*DefaultScheduler); ok && ds.Workers > 0 {
		workers = ds.Workers
	}
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}
	return uint32(workers)
}
