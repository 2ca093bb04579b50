// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package nucleus

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ScaleFeatures standardizes each feature-set gene across cells (zero
// mean, unit variance). Zero-variance genes scale to all zeros rather
// than NaN. clipMax > 0 clips values to [-clipMax, clipMax]. The
// returned snapshot is restricted to the feature set, in order.
func ScaleFeatures(ds *Dataset, hvg []string, clipMax float64) (*Dataset, error) {
	idx := ds.geneIndex()
	_, ncells := ds.Counts.Dims()
	out := mat.NewDense(len(hvg), ncells, nil)
	row := make([]float64, ncells)
	for hi, g := range hvg {
		gi, ok := idx[g]
		if !ok {
			return nil, fmt.Errorf("feature set gene %q not in matrix", g)
		}
		for j := 0; j < ncells; j++ {
			row[j] = ds.Counts.At(gi, j)
		}
		mean, std := stat.MeanStdDev(row, nil)
		for j := 0; j < ncells; j++ {
			v := 0.0
			if std > 0 {
				v = (row[j] - mean) / std
				if clipMax > 0 {
					if v > clipMax {
						v = clipMax
					} else if v < -clipMax {
						v = -clipMax
					}
				}
			}
			out.Set(hi, j, v)
		}
	}
	next := ds.shallowCopy()
	next.Genes = append([]string(nil), hvg...)
	next.HVG = append([]string(nil), hvg...)
	next.Counts = out
	next.Layer = LayerScaled
	return next, nil
}
