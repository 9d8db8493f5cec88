package types

import "math"

// AABB is an axis-aligned bounding box. It is "valid" whenever Min[k] <= Max[k]
// for every axis k; a degenerate box (a point) is valid.
type AABB[S Float] struct {
	Min Vec3[S]
	Max Vec3[S]
}

// EmptyAABB returns a box set up so that the first Union with any box adopts
// that box's extents exactly, letting callers seed a running min/max before
// folding in each item's bounds.
func EmptyAABB[S Float]() AABB[S] {
	posInf := S(math.Inf(1))
	negInf := S(math.Inf(-1))
	return AABB[S]{
		Min: Vec3[S]{posInf, posInf, posInf},
		Max: Vec3[S]{negInf, negInf, negInf},
	}
}

// Union returns the smallest box enclosing both a and b.
func Union[S Float](a, b AABB[S]) AABB[S] {
	return AABB[S]{
		Min: MinVec3(a.Min, b.Min),
		Max: MaxVec3(a.Max, b.Max),
	}
}

// Extend folds p into the box, growing it if necessary.
func (b AABB[S]) Extend(p Vec3[S]) AABB[S] {
	return AABB[S]{
		Min: MinVec3(b.Min, p),
		Max: MaxVec3(b.Max, p),
	}
}

// Center returns the midpoint of the box, i.e. its centroid.
func (b AABB[S]) Center() Vec3[S] {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Extent returns Max - Min, the box's side lengths per axis (may be negative
// for an invalid box).
func (b AABB[S]) Extent() Vec3[S] {
	return b.Max.Sub(b.Min)
}

// Volume returns the product of the box's non-negative axis extents. Extents
// are clamped to zero before multiplying, as the validator's
// volume-monotonicity check uses it (a degenerate box has zero volume, never
// negative).
func (b AABB[S]) Volume() S {
	e := b.Extent()
	var vol S = 1
	for axis := 0; axis < 3; axis++ {
		v := e[axis]
		if v < 0 {
			v = 0
		}
		vol *= v
	}
	return vol
}

// Contains reports whether p lies within the box on every axis.
func (b AABB[S]) Contains(p Vec3[S]) bool {
	for axis := 0; axis < 3; axis++ {
		if p[axis] < b.Min[axis] || p[axis] > b.Max[axis] {
			return false
		}
	}
	return true
}

// IntersectRay performs the slab test against r and returns the overlap of
// the box's slab interval with the ray's parametric range [tMin, tMax]. ok is
// false when the intervals do not overlap. Per-axis reciprocals may produce
// ±Inf when r.Dir has a zero component; IEEE arithmetic handles that without
// special-casing.
func (b AABB[S]) IntersectRay(r Ray[S], tMin, tMax S) (tNear, tFar S, ok bool) {
	tNear, tFar = tMin, tMax
	for axis := 0; axis < 3; axis++ {
		invD := 1 / r.Dir[axis]
		t0 := (b.Min[axis] - r.Origin[axis]) * invD
		t1 := (b.Max[axis] - r.Origin[axis]) * invD
		if invD < 0 {
			t0, t1 = t1, t0
		}
		if t0 > tNear {
			tNear = t0
		}
		if t1 < tFar {
			tFar = t1
		}
		if tNear > tFar {
			return tNear, tFar, false
		}
	}
	return tNear, tFar, true
}
