package shapes

import "iter"

// Iter iterates over all possible indices of the given shape, in row-major order.
// To avoid allocating the slice of indices, the yielded indices is owned by the Iter() method:
// don't change it inside the loop.
func (s Shape) Iter() iter.Seq[[]int] {
	return IterDimensions(s.Dimensions)
}

// IterDimensions iterates over all indices of an index space with the given dimensions.
// See Shape.Iter.
func IterDimensions(dimensions []int) iter.Seq[[]int] {
	return func(yield func([]int) bool) {
		rank := len(dimensions)
		if rank == 0 {
			// Scalar: yield one empty index slice.
			_ = yield(make([]int, 0))
			return
		}
		for _, dimSize := range dimensions {
			if dimSize <= 0 {
				return
			}
		}

		currentIndices := make([]int, rank)
		for {
			if !yield(currentIndices) {
				return
			}

			// Increment currentIndices: the last index changes fastest.
			axis := rank - 1
			for ; axis >= 0; axis-- {
				if dimensions[axis] == 1 {
					continue
				}
				currentIndices[axis]++
				if currentIndices[axis] < dimensions[axis] {
					break
				}
				currentIndices[axis] = 0
			}
			if axis < 0 {
				return
			}
		}
	}
}
