// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package nucleus

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// wilcoxonPvalue is the two-sided Wilcoxon rank-sum (Mann-Whitney U)
// p-value for two samples, using the tie-corrected normal
// approximation with continuity correction.
func wilcoxonPvalue(a, b []float64) float64 {
	n1, n2 := len(a), len(b)
	if n1 == 0 || n2 == 0 {
		return 1
	}
	type obs struct {
		v   float64
		inA bool
	}
	combined := make([]obs, 0, n1+n2)
	for _, v := range a {
		combined = append(combined, obs{v, true})
	}
	for _, v := range b {
		combined = append(combined, obs{v, false})
	}
	sort.Slice(combined, func(i, j int) bool { return combined[i].v < combined[j].v })

	n := len(combined)
	ranks := make([]float64, n)
	tieSum := 0.0
	for i := 0; i < n; {
		j := i
		for j < n && combined[j].v == combined[i].v {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[k] = avg
		}
		if t := float64(j - i); t > 1 {
			tieSum += t*t*t - t
		}
		i = j
	}

	var r1 float64
	for i, o := range combined {
		if o.inA {
			r1 += ranks[i]
		}
	}
	f1, f2, fn := float64(n1), float64(n2), float64(n)
	u1 := r1 - f1*(f1+1)/2
	u := math.Min(u1, f1*f2-u1)
	mu := f1 * f2 / 2
	sigma := math.Sqrt(f1 * f2 * ((fn + 1) - tieSum/(fn*(fn-1))) / 12)
	if sigma < 1e-10 {
		return 1
	}
	z := (u - mu + 0.5) / sigma
	return 2 * distuv.UnitNormal.CDF(-math.Abs(z))
}

// adjustBonferroni returns min(1, p*m) over the tested genes.
func adjustBonferroni(pvals []float64) []float64 {
	m := float64(len(pvals))
	out := make([]float64, len(pvals))
	for i, p := range pvals {
		q := p * m
		if q > 1 {
			q = 1
		}
		out[i] = q
	}
	return out
}

// adjustBH is the Benjamini-Hochberg step-up FDR.
func adjustBH(pvals []float64) []float64 {
	n := len(pvals)
	if n == 0 {
		return nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return pvals[idx[i]] < pvals[idx[j]] })
	out := make([]float64, n)
	minQ := 1.0
	for i := n - 1; i >= 0; i-- {
		q := pvals[idx[i]] * float64(n) / float64(i+1)
		if q > 1 {
			q = 1
		}
		if q < minQ {
			minQ = q
		}
		out[idx[i]] = minQ
	}
	return out
}
