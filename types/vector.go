// Package types provides the fixed-size vector, AABB, ray and intersection
// types shared by the lbvh engine. Every type is generic over the scalar
// kind S so the same engine code serves both f32 and f64 builds.
package types

import "math"

// Float is the set of scalar kinds the engine can be built over.
type Float interface {
	~float32 | ~float64
}

// floatCmpEpsilon guards Normalize against dividing by a near-zero length.
const floatCmpEpsilon = 1e-12

// Vec2 is a fixed-size 2 component vector.
type Vec2[S Float] [2]S

// Vec3 is a fixed-size 3 component vector.
type Vec3[S Float] [3]S

// XY constructs a Vec2.
func XY[S Float](x, y S) Vec2[S] {
	return Vec2[S]{x, y}
}

// XYZ constructs a Vec3.
func XYZ[S Float](x, y, z S) Vec3[S] {
	return Vec3[S]{x, y, z}
}

// Vec3 expands v to a 3 component vector using z for the third component.
func (v Vec2[S]) Vec3(z S) Vec3[S] {
	return Vec3[S]{v[0], v[1], z}
}

// Add adds a vector.
func (v Vec3[S]) Add(v2 Vec3[S]) Vec3[S] {
	return Vec3[S]{v[0] + v2[0], v[1] + v2[1], v[2] + v2[2]}
}

// Sub subtracts a vector.
func (v Vec3[S]) Sub(v2 Vec3[S]) Vec3[S] {
	return Vec3[S]{v[0] - v2[0], v[1] - v2[1], v[2] - v2[2]}
}

// Mul multiplies a 3 component vector with a scalar.
func (v Vec3[S]) Mul(s S) Vec3[S] {
	return Vec3[S]{v[0] * s, v[1] * s, v[2] * s}
}

// Len returns the 3 component vector length.
func (v Vec3[S]) Len() S {
	return S(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])))
}

// Normalize normalizes a 3 component vector. The zero vector normalizes to itself.
func (v Vec3[S]) Normalize() Vec3[S] {
	l := v.Len()
	if l < floatCmpEpsilon {
		return Vec3[S]{}
	}
	inv := 1.0 / l
	return Vec3[S]{v[0] * inv, v[1] * inv, v[2] * inv}
}

// Axis returns the component of v along axis (0=X, 1=Y, 2=Z).
func (v Vec3[S]) Axis(axis int) S {
	return v[axis]
}

// WithAxis returns a copy of v with the given axis component replaced.
func (v Vec3[S]) WithAxis(axis int, val S) Vec3[S] {
	v[axis] = val
	return v
}

// Sub subtracts a vector.
func (v Vec2[S]) Sub(v2 Vec2[S]) Vec2[S] {
	return Vec2[S]{v[0] - v2[0], v[1] - v2[1]}
}

// Mul multiplies a 2 component vector with a scalar.
func (v Vec2[S]) Mul(s S) Vec2[S] {
	return Vec2[S]{v[0] * s, v[1] * s}
}

// Add adds a vector.
func (v Vec2[S]) Add(v2 Vec2[S]) Vec2[S] {
	return Vec2[S]{v[0] + v2[0], v[1] + v2[1]}
}

// Dot calculates the dot product of 2 vectors.
func (v Vec2[S]) Dot(v2 Vec2[S]) S {
	return v[0]*v2[0] + v[1]*v2[1]
}

// Dot calculates the dot product of 2 vectors.
func (v Vec3[S]) Dot(v2 Vec3[S]) S {
	return v[0]*v2[0] + v[1]*v2[1] + v[2]*v2[2]
}

// Cross calculates the cross product of 2 vectors.
func (v Vec3[S]) Cross(v2 Vec3[S]) Vec3[S] {
	return Vec3[S]{v[1]*v2[2] - v[2]*v2[1], v[2]*v2[0] - v[0]*v2[2], v[0]*v2[1] - v[1]*v2[0]}
}

// MinVec3 computes the componentwise minimum of two vectors.
func MinVec3[S Float](v1, v2 Vec3[S]) Vec3[S] {
	out := v1
	if v2[0] < out[0] {
		out[0] = v2[0]
	}
	if v2[1] < out[1] {
		out[1] = v2[1]
	}
	if v2[2] < out[2] {
		out[2] = v2[2]
	}
	return out
}

// MaxVec3 computes the componentwise maximum of two vectors.
func MaxVec3[S Float](v1, v2 Vec3[S]) Vec3[S] {
	out := v1
	if v2[0] > out[0] {
		out[0] = v2[0]
	}
	if v2[1] > out[1] {
		out[1] = v2[1]
	}
	if v2[2] > out[2] {
		out[2] = v2[2]
	}
	return out
}
