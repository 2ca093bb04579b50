// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package nucleus

import (
	"gopkg.in/check.v1"
)

type qcSuite struct{}

var _ = check.Suite(&qcSuite{})

func (s *qcSuite) TestFilterCells(c *check.C) {
	// c1: 3 features, no mito. c2: 1 feature. c3: 3 features, 50%
	// mito. c4: 2 features, low mito.
	ds := makeDataset(
		[]string{"MT-CO1", "ACTB", "GFAP", "AQP4"},
		[]string{"c1", "c2", "c3", "c4"},
		[]float64{
			0, 0, 10, 1,
			4, 9, 5, 0,
			5, 0, 5, 9,
			1, 0, 0, 0,
		})
	th := QCThresholds{MinFeatures: 1, MaxFeatures: 4, MaxPctMito: 20, MitoPattern: "^MT-"}
	out, metrics, err := FilterCells(ds, th)
	c.Assert(err, check.IsNil)
	c.Check(out.Cells, check.DeepEquals, []string{"c1", "c4"})
	c.Check(metrics, check.HasLen, 4)

	// strict bounds hold for every kept cell
	for _, cell := range out.Cells {
		ci := out.Meta.Info[cell]
		c.Check(ci.NFeatures > th.MinFeatures, check.Equals, true)
		c.Check(ci.NFeatures < th.MaxFeatures, check.Equals, true)
		c.Check(ci.PctMito < th.MaxPctMito, check.Equals, true)
	}

	// metrics reported for dropped cells too
	c.Check(metrics[1].Cell, check.Equals, "c2")
	c.Check(metrics[1].Kept, check.Equals, false)
	c.Check(metrics[2].PctMito, check.Equals, 50.0)

	// input snapshot untouched
	c.Check(len(ds.Cells), check.Equals, 4)
	c.Check(ds.Counts.At(0, 2), check.Equals, 10.0)
}

func (s *qcSuite) TestInvalidThresholds(c *check.C) {
	ds := makeDataset([]string{"ACTB"}, []string{"c1"}, []float64{1})
	_, _, err := FilterCells(ds, QCThresholds{MinFeatures: 10, MaxFeatures: 10, MaxPctMito: 5, MitoPattern: "^MT-"})
	c.Assert(err, check.FitsTypeOf, &InvalidThresholdError{})
	c.Check(err, check.ErrorMatches, `invalid features thresholds: min 10 >= max 10`)

	_, _, err = FilterCells(ds, QCThresholds{MinFeatures: 0, MaxFeatures: 10, MaxPctMito: 0, MitoPattern: "^MT-"})
	c.Check(err, check.FitsTypeOf, &InvalidThresholdError{})
}

func (s *qcSuite) TestBadMitoPattern(c *check.C) {
	ds := makeDataset([]string{"ACTB"}, []string{"c1"}, []float64{1})
	_, _, err := FilterCells(ds, QCThresholds{MinFeatures: 0, MaxFeatures: 10, MaxPctMito: 5, MitoPattern: "["})
	c.Check(err, check.NotNil)
}
