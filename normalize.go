// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package nucleus

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Normalize rescales every cell to targetSum total counts and applies
// log1p. Deterministic. Zero-count cells are a precondition violation
// (EmptyCellError): qc filtering is the supported way to remove them.
func Normalize(ds *Dataset, targetSum float64) (*Dataset, error) {
	ngenes, ncells := ds.Counts.Dims()
	out := mat.NewDense(ngenes, ncells, nil)
	for j := 0; j < ncells; j++ {
		var total float64
		for i := 0; i < ngenes; i++ {
			total += ds.Counts.At(i, j)
		}
		if total == 0 {
			return nil, &EmptyCellError{Cell: ds.Cells[j]}
		}
		scale := targetSum / total
		for i := 0; i < ngenes; i++ {
			out.Set(i, j, math.Log1p(ds.Counts.At(i, j)*scale))
		}
	}
	next := ds.shallowCopy()
	next.Counts = out
	next.Layer = LayerLogNorm
	return next, nil
}
