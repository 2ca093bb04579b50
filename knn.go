// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package nucleus

import (
	"fmt"
	"runtime"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// NeighborGraph is an undirected k-nearest-neighbor graph over cells,
// symmetrized by union: i and j are connected if either lists the
// other among its k nearest. Every cell has an adjacency entry, even
// if empty.
type NeighborGraph struct {
	N   int
	Adj [][]int // sorted neighbor indices per cell
}

// BuildNeighborGraph finds each cell's k nearest cells by Euclidean
// distance over the first nDims embedding coordinates. The search is
// brute force, parallel across cells.
func BuildNeighborGraph(emb *mat.Dense, nDims, k int) (*NeighborGraph, error) {
	n, dims := emb.Dims()
	if k >= n {
		return nil, &InsufficientCellsError{K: k, Cells: n}
	}
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}
	if nDims < 1 || nDims > dims {
		return nil, fmt.Errorf("n-dims must be in 1..%d, got %d", dims, nDims)
	}

	coords := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, nDims)
		for d := 0; d < nDims; d++ {
			row[d] = emb.At(i, d)
		}
		coords[i] = row
	}

	nearest := make([][]int, n)
	throttle := throttle{Max: runtime.NumCPU()}
	for i := 0; i < n; i++ {
		i := i
		throttle.Acquire()
		go func() {
			defer throttle.Release()
			type cand struct {
				idx int
				d2  float64
			}
			cands := make([]cand, 0, n-1)
			for j := 0; j < n; j++ {
				if j == i {
					continue
				}
				var d2 float64
				for d := 0; d < nDims; d++ {
					diff := coords[i][d] - coords[j][d]
					d2 += diff * diff
				}
				cands = append(cands, cand{j, d2})
			}
			sort.Slice(cands, func(a, b int) bool {
				if cands[a].d2 != cands[b].d2 {
					return cands[a].d2 < cands[b].d2
				}
				return cands[a].idx < cands[b].idx
			})
			nn := make([]int, k)
			for x := 0; x < k; x++ {
				nn[x] = cands[x].idx
			}
			nearest[i] = nn
		}()
	}
	throttle.Wait()

	// Symmetrize by union.
	sets := make([]map[int]bool, n)
	for i := range sets {
		sets[i] = make(map[int]bool, 2*k)
	}
	for i, nn := range nearest {
		for _, j := range nn {
			sets[i][j] = true
			sets[j][i] = true
		}
	}
	g := &NeighborGraph{N: n, Adj: make([][]int, n)}
	for i, set := range sets {
		adj := make([]int, 0, len(set))
		for j := range set {
			adj = append(adj, j)
		}
		sort.Ints(adj)
		g.Adj[i] = adj
	}
	return g, nil
}
