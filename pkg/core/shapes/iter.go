// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import "iter"

// Iter iterates over all indices of the shape in logical row-major order (the last axis
// changes fastest), regardless of the storage Order.
//
// It yields the storage offset of the element (computed with the strides) and the indices.
// To avoid allocating the slice of indices, the yielded indices is owned by the Iter() method:
// don't change it inside the loop.
//
// Empty shapes yield nothing, scalars yield once with offset 0 and no indices.
func (s Shape) Iter() iter.Seq2[int, []int] {
	return func(yield func(int, []int) bool) {
		if !s.Ok() || s.IsEmpty() {
			return
		}
		rank := s.Rank()
		indices := make([]int, rank)
		if rank == 0 {
			_ = yield(0, indices)
			return
		}

		offset := 0
		for {
			if !yield(offset, indices) {
				return
			}

			// Increment indices, carrying over to the previous axes.
			axis := rank - 1
			for ; axis >= 0; axis-- {
				indices[axis]++
				offset += s.Strides[axis]
				if indices[axis] < s.Dimensions[axis] {
					break
				}
				offset -= indices[axis] * s.Strides[axis]
				indices[axis] = 0
			}
			if axis < 0 {
				return
			}
		}
	}
}
