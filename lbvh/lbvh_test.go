package lbvh

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/flywave/go-lbvh/types"
)

type testBox struct {
	min, max types.Vec3[float32]
}

func boxOfTestBox(b testBox) types.AABB[float32] {
	return types.AABB[float32]{Min: b.min, Max: b.max}
}

func cube(cx, cy, cz, radius float32) testBox {
	c := types.XYZ(cx, cy, cz)
	r := types.XYZ(radius, radius, radius)
	return testBox{min: c.Sub(r), max: c.Add(r)}
}

// TestBuildSinglePrimitive exercises the single-primitive fast path: no
// internal nodes, and Traverse calling the intersector directly.
func TestBuildSinglePrimitive(t *testing.T) {
	boxes := []testBox{{min: types.XYZ[float32](0, 0, 0), max: types.XYZ[float32](1, 1, 1)}}

	bvh, err := Build[testBox, float32](boxes, boxOfTestBox)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(bvh.Nodes) != 0 {
		t.Fatalf("expected 0 internal nodes; got %d", len(bvh.Nodes))
	}
	if len(bvh.Perm) != 1 || bvh.Perm[0] != 0 {
		t.Fatalf("expected perm [0]; got %v", bvh.Perm)
	}

	ray := types.Ray[float32]{Origin: types.XYZ[float32](0.5, 0.5, -1), Dir: types.XYZ[float32](0, 0, 1)}
	intersect := func(b testBox, r types.Ray[float32]) types.Intersection[float32] {
		return types.Intersection[float32]{T: 1.0, PrimID: 0}
	}

	hit := Traverse[testBox, float32](bvh, boxes, ray, intersect)
	if !hit.Hit() || hit.T != 1.0 || hit.PrimID != 0 {
		t.Fatalf("expected hit t=1.0 prim_id=0; got %+v", hit)
	}
}

// TestBuildTwoDisjointBoxes checks the root node's box and leaf flags for
// the simplest non-trivial tree: two primitives, one internal node.
func TestBuildTwoDisjointBoxes(t *testing.T) {
	boxes := []testBox{
		{min: types.XYZ[float32](0, 0, 0), max: types.XYZ[float32](1, 1, 1)},
		{min: types.XYZ[float32](10, 0, 0), max: types.XYZ[float32](11, 1, 1)},
	}

	bvh, err := Build[testBox, float32](boxes, boxOfTestBox)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(bvh.Nodes) != 1 {
		t.Fatalf("expected 1 internal node; got %d", len(bvh.Nodes))
	}

	root := bvh.Nodes[0]
	if !root.LeftIsLeaf() || !root.RightIsLeaf() {
		t.Fatalf("expected both children to be leaves; flags=%x", root.Flags)
	}

	want := types.AABB[float32]{Min: types.XYZ[float32](0, 0, 0), Max: types.XYZ[float32](11, 1, 1)}
	if root.Box != want {
		t.Fatalf("expected root box %+v; got %+v", want, root.Box)
	}
}

// TestBuildEightBoxGrid checks the tree shape and validation result for an
// evenly spaced 2x2x2 grid of boxes.
func TestBuildEightBoxGrid(t *testing.T) {
	var boxes []testBox
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			for k := 0; k < 2; k++ {
				boxes = append(boxes, cube(0.25+float32(i)*0.5, 0.25+float32(j)*0.5, 0.25+float32(k)*0.5, 0.1))
			}
		}
	}

	bvh, err := Build[testBox, float32](boxes, boxOfTestBox)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(bvh.Nodes) != 7 {
		t.Fatalf("expected 7 internal nodes; got %d", len(bvh.Nodes))
	}

	root := bvh.Nodes[0]
	// Centroids range over {0.25, 0.75} per axis with radius 0.1, so the
	// tight enclosing box runs from 0.15 to 0.85 on every axis.
	wantMin, wantMax := float32(0.15), float32(0.85)
	for axis := 0; axis < 3; axis++ {
		if absF32(root.Box.Min[axis]-wantMin) > 1e-4 || absF32(root.Box.Max[axis]-wantMax) > 1e-4 {
			t.Fatalf("expected root box ~[%v, %v] on axis %d; got [%v, %v]", wantMin, wantMax, axis, root.Box.Min[axis], root.Box.Max[axis])
		}
	}

	report, err := ValidateWithPrimitives[testBox, float32](bvh, boxes, boxOfTestBox, true)
	if err != nil {
		t.Fatalf("validation error: %v", err)
	}
	if !report.OK() {
		t.Fatalf("expected validation to pass; report=%+v", report)
	}
}

// TestBuildCoincidentCentroids checks that primitives whose centroids all
// collapse to the same Morton code still build a well-formed tree, split by
// the index tie-break.
func TestBuildCoincidentCentroids(t *testing.T) {
	var boxes []testBox
	for i := 0; i < 16; i++ {
		boxes = append(boxes, cube(0.5, 0.5, 0.5, 0.1))
	}

	bvh, err := Build[testBox, float32](boxes, boxOfTestBox)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(bvh.Nodes) != 15 {
		t.Fatalf("expected 15 internal nodes; got %d", len(bvh.Nodes))
	}

	report, err := Validate[float32](bvh, false)
	if err != nil {
		t.Fatalf("validation error: %v", err)
	}
	if !report.OK() {
		t.Fatalf("expected validation to pass with coincident centroids; report=%+v", report)
	}
}

// TestTraverseMiss checks that a ray missing every primitive's bounds never
// reaches the intersector more than once per leaf it could plausibly hit.
func TestTraverseMiss(t *testing.T) {
	boxes := []testBox{
		{min: types.XYZ[float32](0, 0, 0), max: types.XYZ[float32](1, 1, 1)},
		{min: types.XYZ[float32](10, 0, 0), max: types.XYZ[float32](11, 1, 1)},
	}
	bvh, err := Build[testBox, float32](boxes, boxOfTestBox)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	calls := 0
	intersect := func(b testBox, r types.Ray[float32]) types.Intersection[float32] {
		calls++
		return types.NoHit[float32]()
	}

	ray := types.Ray[float32]{Origin: types.XYZ[float32](0, 0, 100), Dir: types.XYZ[float32](0, 0, 1)}
	hit := Traverse[testBox, float32](bvh, boxes, ray, intersect)
	if hit.Hit() {
		t.Fatalf("expected a miss; got %+v", hit)
	}
	if calls > 2 {
		t.Fatalf("expected at most 2 intersector calls; got %d", calls)
	}
}

// TestTraverseNearestHit checks that Traverse returns the closest of several
// candidate hits along the ray, not merely the first one it visits.
func TestTraverseNearestHit(t *testing.T) {
	boxes := []testBox{
		{min: types.XYZ[float32](1, -1, -1), max: types.XYZ[float32](1.5, 1, 1)},
		{min: types.XYZ[float32](2, -1, -1), max: types.XYZ[float32](2.5, 1, 1)},
		{min: types.XYZ[float32](3, -1, -1), max: types.XYZ[float32](3.5, 1, 1)},
	}
	bvh, err := Build[testBox, float32](boxes, boxOfTestBox)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	intersect := func(b testBox, r types.Ray[float32]) types.Intersection[float32] {
		return types.Intersection[float32]{T: b.min[0]}
	}

	ray := types.Ray[float32]{Origin: types.XYZ[float32](0, 0, 0), Dir: types.XYZ[float32](1, 0, 0)}
	hit := Traverse[testBox, float32](bvh, boxes, ray, intersect)
	if !hit.Hit() || hit.T != 1 {
		t.Fatalf("expected nearest hit at t=1; got %+v", hit)
	}
	if boxes[hit.PrimID].min[0] != 1 {
		t.Fatalf("expected hit primitive to be the box at x=1; got box at x=%v", boxes[hit.PrimID].min[0])
	}
}

// TestBuildEmpty checks that building over zero primitives yields an empty
// tree and that Traverse against it never calls the intersector.
func TestBuildEmpty(t *testing.T) {
	var boxes []testBox
	bvh, err := Build[testBox, float32](boxes, boxOfTestBox)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(bvh.Nodes) != 0 || len(bvh.Perm) != 0 {
		t.Fatalf("expected an empty tree; got %+v", bvh)
	}

	calls := 0
	intersect := func(b testBox, r types.Ray[float32]) types.Intersection[float32] {
		calls++
		return types.NoHit[float32]()
	}
	hit := Traverse[testBox, float32](bvh, boxes, types.Ray[float32]{}, intersect)
	if hit.Hit() {
		t.Fatalf("expected a miss on an empty tree")
	}
	if calls != 0 {
		t.Fatalf("expected the intersector never to be invoked; got %d calls", calls)
	}
}

// TestBuildIsDeterministicAcrossSchedulers checks that the same primitives,
// built with any number of workers, produce byte-identical nodes and perm.
func TestBuildIsDeterministicAcrossSchedulers(t *testing.T) {
	boxes := randomBoxes(257, 1)

	single, err := BuildWithOptions[testBox, float32](boxes, boxOfTestBox, WithScheduler(SingleThreadedScheduler{}))
	if err != nil {
		t.Fatalf("Build with SingleThreadedScheduler returned error: %v", err)
	}
	parallel, err := BuildWithOptions[testBox, float32](boxes, boxOfTestBox, WithScheduler(&DefaultScheduler{Workers: 8}))
	if err != nil {
		t.Fatalf("Build with a multi-worker DefaultScheduler returned error: %v", err)
	}

	if !reflect.DeepEqual(single.Perm, parallel.Perm) {
		t.Fatalf("perm differs between schedulers:\nsingle=%v\nparallel=%v", single.Perm, parallel.Perm)
	}
	if !reflect.DeepEqual(single.Nodes, parallel.Nodes) {
		t.Fatalf("nodes differ between schedulers:\nsingle=%+v\nparallel=%+v", single.Nodes, parallel.Nodes)
	}
}

// TestTraverseMatchesLinearScan checks that whatever a brute-force O(N) scan
// finds as the nearest hit, Traverse finds too.
func TestTraverseMatchesLinearScan(t *testing.T) {
	boxes := randomBoxes(200, 2)
	bvh, err := Build[testBox, float32](boxes, boxOfTestBox)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	intersect := func(b testBox, r types.Ray[float32]) types.Intersection[float32] {
		return intersectBoxAsPrimitive(b, r)
	}

	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 50; trial++ {
		ray := types.Ray[float32]{
			Origin: types.XYZ(rng.Float32()*20-10, rng.Float32()*20-10, -20),
			Dir:    types.XYZ[float32](0, 0, 1),
		}

		want := linearScan(boxes, ray)
		got := Traverse[testBox, float32](bvh, boxes, ray, intersect)

		if want.Hit() != got.Hit() {
			t.Fatalf("trial %d: linear scan hit=%v, Traverse hit=%v", trial, want.Hit(), got.Hit())
		}
		if want.Hit() && want.T != got.T {
			t.Fatalf("trial %d: linear scan t=%v, Traverse t=%v", trial, want.T, got.T)
		}
	}
}

// randomBoxes generates n axis-aligned unit-ish boxes scattered inside
// [-10, 10]^3, deterministic for a given seed.
func randomBoxes(n int, seed int64) []testBox {
	rng := rand.New(rand.NewSource(seed))
	boxes := make([]testBox, n)
	for i := range boxes {
		cx := rng.Float32()*20 - 10
		cy := rng.Float32()*20 - 10
		cz := rng.Float32()*20 - 10
		r := 0.1 + rng.Float32()*0.4
		boxes[i] = cube(cx, cy, cz, r)
	}
	return boxes
}

// intersectBoxAsPrimitive performs a slab test of r against b, reporting a
// hit at the near intersection distance when it lies in front of the ray.
func intersectBoxAsPrimitive(b testBox, r types.Ray[float32]) types.Intersection[float32] {
	box := types.AABB[float32]{Min: b.min, Max: b.max}
	tNear, _, ok := box.IntersectRay(r, 0, float32(1e30))
	if !ok || tNear <= 0 {
		return types.NoHit[float32]()
	}
	return types.Intersection[float32]{T: tNear}
}

// linearScan finds the nearest hit among boxes by brute-force O(N) testing,
// the reference behavior Traverse must match exactly.
func linearScan(boxes []testBox, ray types.Ray[float32]) types.Intersection[float32] {
	best := types.NoHit[float32]()
	for _, b := range boxes {
		if hit := intersectBoxAsPrimitive(b, ray); hit.Closer(best) {
			best = hit
		}
	}
	return best
}

func absF32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
