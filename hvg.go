// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package nucleus

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

const dispersionBins = 20

// SelectFeatures ranks genes of a log-normalized matrix by binned
// normalized dispersion (variance/mean, z-scored within bins of
// similar mean expression so highly expressed genes are not favored)
// and returns the topN gene ids in rank order. Ties break by lexical
// gene id so the result is deterministic.
func SelectFeatures(ds *Dataset, topN int) ([]string, error) {
	ngenes, ncells := ds.Counts.Dims()
	if ngenes < topN {
		return nil, &InsufficientGenesError{Requested: topN, Available: ngenes}
	}

	means := make([]float64, ngenes)
	disps := make([]float64, ngenes)
	row := make([]float64, ncells)
	for i := 0; i < ngenes; i++ {
		for j := 0; j < ncells; j++ {
			row[j] = ds.Counts.At(i, j)
		}
		mean, variance := stat.MeanVariance(row, nil)
		means[i] = mean
		if mean > 0 {
			disps[i] = variance / mean
		}
	}

	// Bin genes by mean-expression rank, equal occupancy.
	order := make([]int, ngenes)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		if means[order[a]] != means[order[b]] {
			return means[order[a]] < means[order[b]]
		}
		return ds.Genes[order[a]] < ds.Genes[order[b]]
	})
	nbins := dispersionBins
	if ngenes < nbins {
		nbins = ngenes
	}
	normed := make([]float64, ngenes)
	for b := 0; b < nbins; b++ {
		lo := b * ngenes / nbins
		hi := (b + 1) * ngenes / nbins
		binDisps := make([]float64, 0, hi-lo)
		for _, gi := range order[lo:hi] {
			binDisps = append(binDisps, disps[gi])
		}
		mean, std := stat.MeanStdDev(binDisps, nil)
		for _, gi := range order[lo:hi] {
			if std > 0 {
				normed[gi] = (disps[gi] - mean) / std
			}
		}
	}

	ranked := make([]int, ngenes)
	for i := range ranked {
		ranked[i] = i
	}
	sort.Slice(ranked, func(a, b int) bool {
		if normed[ranked[a]] != normed[ranked[b]] {
			return normed[ranked[a]] > normed[ranked[b]]
		}
		return ds.Genes[ranked[a]] < ds.Genes[ranked[b]]
	})
	hvg := make([]string, topN)
	for i := 0; i < topN; i++ {
		hvg[i] = ds.Genes[ranked[i]]
	}
	return hvg, nil
}
