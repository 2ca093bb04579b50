// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package nucleus

import (
	"bytes"
	"strings"

	"gopkg.in/check.v1"
)

type importSuite struct{}

var _ = check.Suite(&importSuite{})

func (s *importSuite) TestReadMatrix(c *check.C) {
	in := "gene\tc1\tc2\tc3\nACTB\t1\t0\t2\nGFAP\t0\t5\t1\n"
	ds, err := ReadMatrix(strings.NewReader(in), "test.tsv")
	c.Assert(err, check.IsNil)
	c.Check(ds.Genes, check.DeepEquals, []string{"ACTB", "GFAP"})
	c.Check(ds.Cells, check.DeepEquals, []string{"c1", "c2", "c3"})
	c.Check(ds.Counts.At(1, 1), check.Equals, 5.0)
	c.Check(ds.Layer, check.Equals, LayerCounts)
	c.Check(ds.Meta.Info["c2"].Cluster, check.Equals, -1)
}

func (s *importSuite) TestReadMatrixCSV(c *check.C) {
	in := "gene,c1,c2\nACTB,1,2\n"
	ds, err := ReadMatrix(strings.NewReader(in), "test.csv")
	c.Assert(err, check.IsNil)
	c.Check(ds.Cells, check.DeepEquals, []string{"c1", "c2"})
}

func (s *importSuite) TestReadMatrixDuplicateCell(c *check.C) {
	in := "gene\tc1\tc1\nACTB\t1\t2\n"
	_, err := ReadMatrix(strings.NewReader(in), "test.tsv")
	c.Assert(err, check.NotNil)
	c.Check(err, check.FitsTypeOf, &MalformedInputError{})
	c.Check(err, check.ErrorMatches, `.*duplicate cell id "c1".*`)
}

func (s *importSuite) TestReadMatrixDuplicateGene(c *check.C) {
	in := "gene\tc1\nACTB\t1\nACTB\t2\n"
	_, err := ReadMatrix(strings.NewReader(in), "test.tsv")
	c.Check(err, check.FitsTypeOf, &MalformedInputError{})
}

func (s *importSuite) TestReadMatrixNegative(c *check.C) {
	in := "gene\tc1\nACTB\t-1\n"
	_, err := ReadMatrix(strings.NewReader(in), "test.tsv")
	c.Check(err, check.FitsTypeOf, &MalformedInputError{})
}

func (s *importSuite) TestReadMatrixRagged(c *check.C) {
	in := "gene\tc1\tc2\nACTB\t1\n"
	_, err := ReadMatrix(strings.NewReader(in), "test.tsv")
	c.Check(err, check.FitsTypeOf, &MalformedInputError{})
	c.Check(err, check.ErrorMatches, `.*line 2.*`)
}

func (s *importSuite) TestReadCovariates(c *check.C) {
	in := "sample,status,subcluster\nc1,AD,4\nc2,Control,1\n"
	tbl, err := ReadCovariates(strings.NewReader(in), "covar.csv", "sample")
	c.Assert(err, check.IsNil)
	c.Check(tbl.Columns, check.DeepEquals, []string{"status", "subcluster"})
	c.Check(tbl.Rows["c1"]["status"], check.Equals, "AD")
	c.Check(tbl.Rows["c2"]["subcluster"], check.Equals, "1")
}

func (s *importSuite) TestReadCovariatesMissingKeyColumn(c *check.C) {
	in := "sample,status\nc1,AD\n"
	_, err := ReadCovariates(strings.NewReader(in), "covar.csv", "nope")
	c.Check(err, check.FitsTypeOf, &MalformedInputError{})
}

func (s *importSuite) TestSnapshotRoundTrip(c *check.C) {
	ds := twoPopulations(10, 6, 2, 1)
	ds.Meta.Info["cell000"].Cluster = 3
	ds.Meta.Info["cell001"].Label = "Astrocyte"

	var buf bytes.Buffer
	err := WriteDataset(&buf, "snap.gob.gz", ds)
	c.Assert(err, check.IsNil)
	got, err := ReadDataset(&buf, "snap.gob.gz")
	c.Assert(err, check.IsNil)
	c.Check(got.Genes, check.DeepEquals, ds.Genes)
	c.Check(got.Cells, check.DeepEquals, ds.Cells)
	c.Check(got.Counts.At(3, 4), check.Equals, ds.Counts.At(3, 4))
	c.Check(got.Meta.Info["cell000"].Cluster, check.Equals, 3)
	c.Check(got.Meta.Info["cell001"].Label, check.Equals, "Astrocyte")
}
