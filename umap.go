// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package nucleus

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// EmbedNonLinear lays out the neighbor graph in nComponents
// dimensions for visualization: stochastic gradient steps attracting
// connected cells and repelling sampled non-neighbors, initialized
// from the leading principal components. Seeded, so a fixed seed
// reproduces the layout exactly. The result never feeds back into
// clustering.
func EmbedNonLinear(g *NeighborGraph, pca *mat.Dense, nComponents int, seed uint64, epochs int) (*mat.Dense, error) {
	if nComponents < 2 || nComponents > 3 {
		return nil, fmt.Errorf("embedding components must be 2 or 3, got %d", nComponents)
	}
	if epochs < 1 {
		return nil, fmt.Errorf("epochs must be >= 1, got %d", epochs)
	}
	n := g.N
	rng := rand.New(rand.NewSource(seed))

	pos := make([][]float64, n)
	for i := range pos {
		pos[i] = make([]float64, nComponents)
	}
	if pca != nil {
		rows, cols := pca.Dims()
		if rows == n && cols >= nComponents {
			var maxAbs float64
			for i := 0; i < n; i++ {
				for d := 0; d < nComponents; d++ {
					if a := math.Abs(pca.At(i, d)); a > maxAbs {
						maxAbs = a
					}
				}
			}
			if maxAbs == 0 {
				maxAbs = 1
			}
			for i := 0; i < n; i++ {
				for d := 0; d < nComponents; d++ {
					pos[i][d] = pca.At(i, d) / maxAbs * 10
				}
			}
		} else {
			pca = nil
		}
	}
	if pca == nil {
		for i := 0; i < n; i++ {
			for d := 0; d < nComponents; d++ {
				pos[i][d] = rng.Float64()*20 - 10
			}
		}
	}

	type edge struct{ a, b int }
	var edges []edge
	for i, adj := range g.Adj {
		for _, j := range adj {
			if i < j {
				edges = append(edges, edge{i, j})
			}
		}
	}

	delta := make([]float64, nComponents)
	for epoch := 0; epoch < epochs; epoch++ {
		lr := 1.0 * (1 - float64(epoch)/float64(epochs))
		for _, e := range edges {
			var d2 float64
			for d := 0; d < nComponents; d++ {
				delta[d] = pos[e.a][d] - pos[e.b][d]
				d2 += delta[d] * delta[d]
			}
			attract := lr * 2 * d2 / (1 + d2) / (1e-3 + d2)
			// step both endpoints toward each other
			for d := 0; d < nComponents; d++ {
				step := clampStep(attract * delta[d])
				pos[e.a][d] -= step
				pos[e.b][d] += step
			}
			// one sampled repulsion per endpoint
			for _, i := range []int{e.a, e.b} {
				j := rng.Intn(n)
				if j == i {
					continue
				}
				var r2 float64
				for d := 0; d < nComponents; d++ {
					delta[d] = pos[i][d] - pos[j][d]
					r2 += delta[d] * delta[d]
				}
				repel := lr * 2 / ((1 + r2) * (1e-3 + r2))
				for d := 0; d < nComponents; d++ {
					pos[i][d] += clampStep(repel * delta[d])
				}
			}
		}
	}

	out := mat.NewDense(n, nComponents, nil)
	for i := 0; i < n; i++ {
		for d := 0; d < nComponents; d++ {
			out.Set(i, d, pos[i][d])
		}
	}
	return out, nil
}

func clampStep(v float64) float64 {
	if v > 4 {
		return 4
	}
	if v < -4 {
		return -4
	}
	return v
}
