// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package nucleus

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"gopkg.in/check.v1"
)

type diffexpSuite struct{}

var _ = check.Suite(&diffexpSuite{})

func (s *diffexpSuite) TestWilcoxonPvalue(c *check.C) {
	a := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	b := []float64{11, 12, 13, 14, 15, 16, 17, 18, 19, 20}
	p := wilcoxonPvalue(a, b)
	c.Check(p < 0.001, check.Equals, true)

	same := []float64{1, 2, 3, 4, 5}
	p = wilcoxonPvalue(same, same)
	c.Check(p > 0.9, check.Equals, true)

	// all-tied samples have zero rank variance
	c.Check(wilcoxonPvalue([]float64{1, 1}, []float64{1, 1}), check.Equals, 1.0)
}

func (s *diffexpSuite) TestAdjustBH(c *check.C) {
	p := []float64{0.01, 0.04, 0.03, 0.005}
	q := adjustBH(p)
	c.Check(fmt.Sprintf("%.3f", q[3]), check.Equals, "0.020")
	c.Check(fmt.Sprintf("%.3f", q[0]), check.Equals, "0.020")
	c.Check(fmt.Sprintf("%.3f", q[1]), check.Equals, "0.040")
	c.Check(fmt.Sprintf("%.3f", q[2]), check.Equals, "0.040")
}

// deDataset builds 30 cells split AD/Control with one gene strictly
// higher in AD, one flat gene, and background noise genes.
func deDataset() *Dataset {
	ds := twoPopulations(20, 30, 0, 11)
	copy(ds.Genes, []string{"MARKER", "FLAT"})
	_, ncells := ds.Counts.Dims()
	for j := 0; j < ncells; j++ {
		status := "Control"
		if j < ncells/2 {
			status = "AD"
			ds.Counts.Set(0, j, 30+float64(j))
		} else {
			ds.Counts.Set(0, j, float64(j % 3))
		}
		ds.Counts.Set(1, j, 7)
		ds.Meta.Info[ds.Cells[j]].Covariates = map[string]string{"status": status}
	}
	ds.Meta.CovarFields = []string{"status"}
	return ds
}

func (s *diffexpSuite) TestDifferentialExpression(c *check.C) {
	ds := deDataset()
	results, err := DifferentialExpression(ds, DEOptions{
		Field:  "status",
		GroupA: "AD",
		GroupB: "Control",
	})
	c.Assert(err, check.IsNil)
	c.Assert(len(results) > 0, check.Equals, true)

	// the synthetic marker comes out on top: significant, higher in AD
	c.Check(results[0].Gene, check.Equals, "MARKER")
	c.Check(results[0].PAdj < 0.05, check.Equals, true)
	c.Check(results[0].Log2FC > 0, check.Equals, true)
	c.Check(results[0].PctA, check.Equals, 1.0)

	// sorted by adjusted p ascending
	for i := 1; i < len(results); i++ {
		c.Check(results[i].PAdj >= results[i-1].PAdj, check.Equals, true)
	}

	// the zero-variance gene is excluded, not reported as NaN
	for _, r := range results {
		c.Check(r.Gene == "FLAT", check.Equals, false)
		c.Check(math.IsNaN(r.P), check.Equals, false)
	}
}

func (s *diffexpSuite) TestConstantCountGeneExcluded(c *check.C) {
	// FLAT has the same raw count in every cell, but library sizes
	// all differ, so its log-normalized values are not tied. The
	// exclusion is decided on the raw counts, so FLAT stays out.
	ds := makeDataset(
		[]string{"FLAT", "ADHIGH", "CTLHIGH"},
		[]string{"c1", "c2", "c3", "c4"},
		[]float64{
			5, 5, 5, 5,
			5, 6, 1, 2,
			1, 2, 11, 12,
		})
	for j, cell := range ds.Cells {
		status := "Control"
		if j < 2 {
			status = "AD"
		}
		ds.Meta.Info[cell].Covariates = map[string]string{"status": status}
	}
	ds.Meta.CovarFields = []string{"status"}

	norm, err := Normalize(ds, 10000)
	c.Assert(err, check.IsNil)
	c.Check(norm.Counts.At(0, 0) == norm.Counts.At(0, 1), check.Equals, false)

	results, err := DifferentialExpression(ds, DEOptions{
		Field:  "status",
		GroupA: "AD",
		GroupB: "Control",
	})
	c.Assert(err, check.IsNil)
	c.Assert(results, check.HasLen, 2)
	for _, r := range results {
		c.Check(r.Gene == "FLAT", check.Equals, false)
	}
}

func (s *diffexpSuite) TestDifferentialExpressionBH(c *check.C) {
	ds := deDataset()
	results, err := DifferentialExpression(ds, DEOptions{
		Field:      "status",
		GroupA:     "AD",
		GroupB:     "Control",
		Correction: "bh",
	})
	c.Assert(err, check.IsNil)
	c.Check(results[0].Gene, check.Equals, "MARKER")
	c.Check(results[0].PAdj < 0.05, check.Equals, true)
	for _, r := range results {
		c.Check(r.PAdj >= r.P, check.Equals, true)
	}
}

func (s *diffexpSuite) TestEmptyGroup(c *check.C) {
	ds := deDataset()
	_, err := DifferentialExpression(ds, DEOptions{
		Field:  "status",
		GroupA: "AD",
		GroupB: "Unknown",
	})
	c.Assert(err, check.FitsTypeOf, &EmptyGroupError{})
	c.Check(err, check.ErrorMatches, `no cells with status="Unknown"`)
}

func (s *diffexpSuite) TestLogisticMethod(c *check.C) {
	ds := deDataset()
	results, err := DifferentialExpression(ds, DEOptions{
		Field:  "status",
		GroupA: "AD",
		GroupB: "Control",
		Method: "logistic",
	})
	c.Assert(err, check.IsNil)
	c.Assert(len(results) > 0, check.Equals, true)
	// effect sizes do not depend on the test method
	for _, r := range results {
		if r.Gene == "MARKER" {
			c.Check(r.Log2FC > 0, check.Equals, true)
			c.Check(r.PctA, check.Equals, 1.0)
		}
	}
}

func (s *diffexpSuite) TestLogisticNeedsPCA(c *check.C) {
	ds := deDataset()
	_, err := DifferentialExpression(ds, DEOptions{
		Field:     "status",
		GroupA:    "AD",
		GroupB:    "Control",
		Method:    "logistic",
		AdjustPCs: 5,
	})
	c.Check(err, check.ErrorMatches, `logistic method with -adjust-pcs needs a snapshot with a PCA embedding.*`)
}

func (s *diffexpSuite) TestUnknownMethod(c *check.C) {
	ds := deDataset()
	_, err := DifferentialExpression(ds, DEOptions{
		Field: "status", GroupA: "AD", GroupB: "Control", Method: "ttest",
	})
	c.Check(err, check.ErrorMatches, `unknown test method "ttest"`)
}

func (s *diffexpSuite) TestWriteDEResults(c *check.C) {
	var buf bytes.Buffer
	err := WriteDEResults(&buf, []DEResult{
		{Gene: "GFAP", Log2FC: 1.5, MeanA: 3, MeanB: 1, PctA: 0.9, PctB: 0.4, P: 0.001, PAdj: 0.01},
	})
	c.Assert(err, check.IsNil)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	c.Assert(lines, check.HasLen, 2)
	c.Check(lines[0], check.Equals, "gene,log2fc,mean_a,mean_b,pct_a,pct_b,pvalue,pvalue_adj")
	c.Check(strings.HasPrefix(lines[1], "GFAP,1.5,"), check.Equals, true)
}
