// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package nucleus

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gopkg.in/check.v1"
)

type scaleSuite struct{}

var _ = check.Suite(&scaleSuite{})

func (s *scaleSuite) TestScaleFeatures(c *check.C) {
	ds := makeDataset(
		[]string{"g1", "g2", "g3"},
		[]string{"c1", "c2", "c3", "c4"},
		[]float64{
			1, 2, 3, 4,
			5, 5, 5, 5, // zero variance
			0, 1, 0, 9,
		})
	out, err := ScaleFeatures(ds, []string{"g3", "g1", "g2"}, 0)
	c.Assert(err, check.IsNil)
	c.Check(out.Genes, check.DeepEquals, []string{"g3", "g1", "g2"})
	c.Check(out.Layer, check.Equals, LayerScaled)

	for i := 0; i < 2; i++ {
		row := make([]float64, 4)
		for j := range row {
			row[j] = out.Counts.At(i, j)
		}
		mean, std := stat.MeanStdDev(row, nil)
		c.Check(math.Abs(mean) < 1e-12, check.Equals, true)
		c.Check(math.Abs(std-1) < 1e-12, check.Equals, true)
	}

	// zero-variance gene scales to zeros, not NaN
	for j := 0; j < 4; j++ {
		c.Check(out.Counts.At(2, j), check.Equals, 0.0)
	}
}

func (s *scaleSuite) TestScaleClip(c *check.C) {
	counts := make([]float64, 21)
	counts[20] = 1000
	cells := cellNames(21)
	ds := makeDataset([]string{"g1"}, cells, counts)
	out, err := ScaleFeatures(ds, []string{"g1"}, 2)
	c.Assert(err, check.IsNil)
	for j := 0; j < 21; j++ {
		v := out.Counts.At(0, j)
		c.Check(v <= 2 && v >= -2, check.Equals, true)
	}
	c.Check(out.Counts.At(0, 20), check.Equals, 2.0)
}

func (s *scaleSuite) TestScaleUnknownGene(c *check.C) {
	ds := makeDataset([]string{"g1"}, []string{"c1"}, []float64{1})
	_, err := ScaleFeatures(ds, []string{"nope"}, 0)
	c.Check(err, check.ErrorMatches, `feature set gene "nope" not in matrix`)
}
