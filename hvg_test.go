// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package nucleus

import (
	"fmt"

	"gopkg.in/check.v1"
)

type hvgSuite struct{}

var _ = check.Suite(&hvgSuite{})

func (s *hvgSuite) TestSelectFeatures(c *check.C) {
	ds := twoPopulations(100, 40, 10, 7)
	norm, err := Normalize(ds, 10000)
	c.Assert(err, check.IsNil)

	hvg, err := SelectFeatures(norm, 30)
	c.Assert(err, check.IsNil)
	c.Check(hvg, check.HasLen, 30)

	genes := map[string]bool{}
	for _, g := range norm.Genes {
		genes[g] = true
	}
	seen := map[string]bool{}
	for _, g := range hvg {
		c.Check(genes[g], check.Equals, true)
		c.Check(seen[g], check.Equals, false)
		seen[g] = true
	}
}

func (s *hvgSuite) TestSelectFeaturesRanksDispersion(c *check.C) {
	// 40 genes with identical means: even-numbered genes constant,
	// odd-numbered alternating 0/10. Interleaved ids put one of each
	// in every mean bin, so the high-dispersion genes must win.
	genes := geneNames(40)
	cells := cellNames(20)
	counts := make([]float64, 40*20)
	for i := 0; i < 40; i++ {
		for j := 0; j < 20; j++ {
			if i%2 == 0 {
				counts[i*20+j] = 5
			} else if j%2 == 0 {
				counts[i*20+j] = 10
			}
		}
	}
	ds := makeDataset(genes, cells, counts)
	hvg, err := SelectFeatures(ds, 20)
	c.Assert(err, check.IsNil)
	for _, g := range hvg {
		var idx int
		_, err := fmt.Sscanf(g, "GENE%03d", &idx)
		c.Assert(err, check.IsNil)
		c.Check(idx%2, check.Equals, 1)
	}
}

func (s *hvgSuite) TestSelectFeaturesDeterministic(c *check.C) {
	ds := twoPopulations(60, 30, 5, 3)
	norm, err := Normalize(ds, 10000)
	c.Assert(err, check.IsNil)
	a, err := SelectFeatures(norm, 25)
	c.Assert(err, check.IsNil)
	b, err := SelectFeatures(norm, 25)
	c.Assert(err, check.IsNil)
	c.Check(a, check.DeepEquals, b)
}

func (s *hvgSuite) TestInsufficientGenes(c *check.C) {
	ds := makeDataset([]string{"g1", "g2"}, []string{"c1", "c2"}, []float64{1, 2, 3, 4})
	_, err := SelectFeatures(ds, 2000)
	c.Assert(err, check.FitsTypeOf, &InsufficientGenesError{})
	c.Check(err, check.ErrorMatches, `requested 2000 highly variable genes but matrix has only 2 genes`)
}
