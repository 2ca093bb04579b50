// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package nucleus

import (
	"fmt"

	"github.com/james-bowman/nlp"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// ReduceLinear computes a principal-component embedding of a scaled
// feature-by-cell matrix. Returns a cells x nComponents embedding and
// the fraction of variance explained per component, descending. How
// many components to retain for graph building is a separate,
// explicit decision (the -n-dims input downstream), not inferred
// here.
func ReduceLinear(ds *Dataset, nComponents int) (*mat.Dense, []float64, error) {
	ngenes, ncells := ds.Counts.Dims()
	if nComponents < 1 {
		return nil, nil, fmt.Errorf("components must be >= 1, got %d", nComponents)
	}
	if max := minInt(ngenes, ncells); nComponents > max {
		return nil, nil, fmt.Errorf("cannot compute %d components from %d genes x %d cells", nComponents, ngenes, ncells)
	}

	log.Printf("pca: fitting %d components on %d genes x %d cells", nComponents, ngenes, ncells)
	transformer := nlp.NewPCA(nComponents)
	transformer.Fit(ds.Counts)
	reduced, err := transformer.Transform(ds.Counts)
	if err != nil {
		return nil, nil, err
	}
	reduced = reduced.T()

	rows, cols := reduced.Dims()
	emb := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			emb.Set(i, j, reduced.At(i, j))
		}
	}

	vars := transformer.ExplainedVariance()
	var total float64
	for _, v := range vars {
		total += v
	}
	explained := make([]float64, cols)
	for i := 0; i < cols && i < len(vars); i++ {
		if total > 0 {
			explained[i] = vars[i] / total
		}
	}
	return emb, explained, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
