package lbvh

import (
	"errors"

	"github.com/flywave/go-lbvh/types"
)

// Validation failure reasons, returned as part of a ValidationReport rather
// than used as sentinel return values, since a validation pass accumulates
// every violation it finds rather than stopping at the first one (unless
// errorsFatal is set).
var (
	ErrRootReferenced     = errors.New("lbvh: root internal node is referenced as a child")
	ErrReferenceCount     = errors.New("lbvh: node referenced a number of times other than once")
	ErrVolumeMonotonicity = errors.New("lbvh: child box volume exceeds parent box volume")
)

// ValidationReport is the outcome of a Validate pass: structural and
// volume-monotonicity violation counts, plus the first error seen of each
// kind (nil if that class of check passed).
type ValidationReport struct {
	StructuralViolations int
	VolumeViolations     int

	FirstStructuralError error
	FirstVolumeError     error
}

// OK reports whether the tree passed every check.
func (r ValidationReport) OK() bool {
	return r.StructuralViolations == 0 && r.VolumeViolations == 0
}

// Validate runs the structural and volume-monotonicity checks against bvh
// alone. Because Bvh does not retain per-leaf AABBs, the volume check here
// only covers internal-to-internal edges; use ValidateWithPrimitives for a
// pass that also checks leaf edges against the primitives' own boxes.
//
// If errorsFatal is true, Validate returns as soon as the first violation (of
// either kind) is found; otherwise it accumulates every violation and
// returns a complete report.
func Validate[S types.Float](bvh *Bvh[S], errorsFatal bool) (ValidationReport, error) {
	return validate[S](bvh, nil, nil, errorsFatal)
}

// ValidateWithPrimitives is Validate plus a leaf-edge volume check, for
// callers that still have the primitives and BoxOf used to build bvh. It
// checks the volume-monotonicity invariant for every parent-child edge,
// leaves included, which the leaf-less Validate cannot do on its own.
func ValidateWithPrimitives[P any, S types.Float](bvh *Bvh[S], primitives []P, boxOf BoxOf[P, S], errorsFatal bool) (ValidationReport, error) {
	return validate(bvh, primitives, boxOf, errorsFatal)
}

func validate[P any, S types.Float](bvh *Bvh[S], primitives []P, boxOf BoxOf[P, S], errorsFatal bool) (ValidationReport, error) {
	var report ValidationReport

	n := bvh.N()
	if n <= 1 {
		return report, nil
	}
	numInternal := len(bvh.Nodes)

	internalRefs := make([]int, numInternal)
	leafRefs := make([]int, n)

	fail := func(structural bool, err error) error {
		if structural {
			report.StructuralViolations++
			if report.FirstStructuralError == nil {
				report.FirstStructuralError = err
			}
		} else {
			report.VolumeViolations++
			if report.FirstVolumeError == nil {
				report.FirstVolumeError = err
			}
		}
		if errorsFatal {
			return err
		}
		return nil
	}

	// Reference counting, plus tallying volume-monotonicity violations along
	// the way. An explicit stack replaces the naturally recursive tree walk
	// to keep call depth bounded on adversarial (deeply chained) inputs.
	stack := []uint32{0}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := &bvh.Nodes[idx]

		if err := checkChild(bvh, node, node.Left, node.LeftIsLeaf(), internalRefs, leafRefs, primitives, boxOf, fail, &stack); err != nil {
			return report, err
		}
		if err := checkChild(bvh, node, node.Right, node.RightIsLeaf(), internalRefs, leafRefs, primitives, boxOf, fail, &stack); err != nil {
			return report, err
		}
	}

	if internalRefs[0] != 0 {
		if err := fail(true, ErrRootReferenced); err != nil {
			return report, err
		}
	}
	for i := 1; i < numInternal; i++ {
		if internalRefs[i] != 1 {
			if err := fail(true, ErrReferenceCount); err != nil {
				return report, err
			}
		}
	}
	for i := 0; i < n; i++ {
		if leafRefs[i] != 1 {
			if err := fail(true, ErrReferenceCount); err != nil {
				return report, err
			}
		}
	}

	return report, nil
}

func checkChild[P any, S types.Float](
	bvh *Bvh[S],
	parent *Node[S],
	childIdx uint32,
	isLeaf bool,
	internalRefs, leafRefs []int,
	primitives []P,
	boxOf BoxOf[P, S],
	fail func(structural bool, err error) error,
	stack *[]uint32,
) error {
	if isLeaf {
		leafRefs[childIdx]++
		if primitives != nil && boxOf != nil {
			leafBox := boxOf(primitives[bvh.Perm[childIdx]])
			if leafBox.Volume() > parent.Box.Volume() {
				return fail(false, ErrVolumeMonotonicity)
			}
		}
		return nil
	}

	internalRefs[childIdx]++
	child := &bvh.Nodes[childIdx]
	if child.Box.Volume() > parent.Box.Volume() {
		if err := fail(false, ErrVolumeMonotonicity); err != nil {
			return err
		}
	}
	*stack = append(*stack, childIdx)
	return nil
}
