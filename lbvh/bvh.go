// Package lbvh builds and traverses a Linear Bounding Volume Hierarchy: a
// binary tree over N user primitives, derived from the Morton order of their
// centroids, that prunes ray/point/box queries to sub-linear time.
//
// The engine is polymorphic over the primitive type P via two small
// capability bundles, BoxOf and Intersector, rather than an interface the
// primitive type must implement.
package lbvh

import (
	"time"

	"github.com/flywave/go-lbvh/log"
	"github.com/flywave/go-lbvh/types"
)

var logger = log.New("lbvh")

// Node flag bits. The remaining bits of Flags are reserved.
const (
	FlagLeftIsLeaf  uint32 = 1 << 0
	FlagRightIsLeaf uint32 = 1 << 1
)

// Node is the single structure used for every internal node of the tree.
// Leaves are not stored as nodes; a leaf reference is an index into the
// sorted primitive permutation Bvh.Perm.
type Node[S types.Float] struct {
	Box types.AABB[S]

	// Left and Right are child indices. When the corresponding IsLeaf flag
	// is clear the index is into Bvh.Nodes; when set it is into Bvh.Perm.
	Left  uint32
	Right uint32
	Flags uint32
}

// LeftIsLeaf reports whether Left refers to Bvh.Perm rather than Bvh.Nodes.
func (n Node[S]) LeftIsLeaf() bool { return n.Flags&FlagLeftIsLeaf != 0 }

// RightIsLeaf reports whether Right refers to Bvh.Perm rather than Bvh.Nodes.
func (n Node[S]) RightIsLeaf() bool { return n.Flags&FlagRightIsLeaf != 0 }

// Bvh owns the immutable result of a build: N-1 internal nodes rooted at
// Nodes[0], plus the sorted primitive permutation. A Bvh with N <= 1
// primitives has no internal nodes.
type Bvh[S types.Float] struct {
	Nodes []Node[S]
	Perm  []uint32
}

// N returns the number of primitives the tree was built over.
func (b *Bvh[S]) N() int {
	if b == nil {
		return 0
	}
	return len(b.Perm)
}

// BoxOf maps a primitive to its AABB.
type BoxOf[P any, S types.Float] func(P) types.AABB[S]

// Intersector maps a primitive and a ray to the nearest intersection with
// that primitive, or types.NoHit[S]() on a miss.
type Intersector[P any, S types.Float] func(P, types.Ray[S]) types.Intersection[S]

// buildStats records per-build node/leaf counts for the debug log line.
type buildStats struct {
	totalItems int
	nodes      int
	leafs      int
}

// BuildOption configures a single call to Build.
type BuildOption func(*buildConfig)

type buildConfig struct {
	scheduler Scheduler
}

// WithScheduler overrides the default (all-CPU) scheduler used to shard the
// build's parallel phases.
func WithScheduler(s Scheduler) BuildOption {
	return func(c *buildConfig) { c.scheduler = s }
}

// Build constructs an LBVH over primitives, using boxOf to derive each
// primitive's AABB. The primitive slice is only read, never retained by the
// returned tree: the caller must keep it alive for as long as it intends to
// call Traverse against the result.
//
// N=0 returns an empty tree. N=1 returns a tree with zero internal nodes and
// Perm=[0]; Traverse on such a tree calls the intersector directly.
func Build[P any, S types.Float](primitives []P, boxOf BoxOf[P, S]) (*Bvh[S], error) {
	return BuildWithOptions(primitives, boxOf)
}

// BuildWithOptions is Build with functional-options configuration.
func BuildWithOptions[P any, S types.Float](primitives []P, boxOf BoxOf[P, S], opts ...BuildOption) (*Bvh[S], error) {
	cfg := buildConfig{scheduler: NewDefaultScheduler()}
	for _, opt := range opts {
		opt(&cfg)
	}

	start := time.Now()

	n := len(primitives)
	if n == 0 {
		return &Bvh[S]{}, nil
	}
	if n == 1 {
		return &Bvh[S]{Perm: []uint32{0}}, nil
	}

	boxes := make([]types.AABB[S], n)
	for i, p := range primitives {
		boxes[i] = boxOf(p)
	}

	scene := centroidBounds(boxes)
	codes, err := computeCodes(cfg.scheduler, boxes, scene)
	if err != nil {
		return nil, err
	}

	perm, err := sortByCode(cfg.scheduler, codes)
	if err != nil {
		return nil, err
	}

	nodes, internalParent, leafParent, err := buildTopology[S](cfg.scheduler, codes, perm)
	if err != nil {
		return nil, err
	}

	if err := propagateBoxes(cfg.scheduler, nodes, internalParent, leafParent, perm, boxes); err != nil {
		return nil, err
	}

	bvh := &Bvh[S]{Nodes: nodes, Perm: perm}

	stats := buildStats{totalItems: n, nodes: len(nodes), leafs: n}
	logger.Debugf(
		"lbvh build: %d primitives, %d internal nodes, %d leafs, %s",
		stats.totalItems, stats.nodes, stats.leafs, time.Since(start),
	)

	return bvh, nil
}
