// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package nucleus

import (
	"gopkg.in/check.v1"
)

type annotateSuite struct{}

var _ = check.Suite(&annotateSuite{})

func (s *annotateSuite) TestAnnotate(c *check.C) {
	meta := NewMetadata([]string{"c1", "c2", "c3"})
	meta.Info["c1"].Cluster = 0
	meta.Info["c2"].Cluster = 1
	meta.Info["c3"].Cluster = 2

	labels := map[int]string{0: "Astrocyte", 2: "Astrocyte"}
	out := Annotate(meta, labels)
	c.Check(out.Info["c1"].Label, check.Equals, "Astrocyte")
	c.Check(out.Info["c2"].Label, check.Equals, "")
	c.Check(out.Info["c3"].Label, check.Equals, "Astrocyte")

	// input untouched
	c.Check(meta.Info["c1"].Label, check.Equals, "")
}

func (s *annotateSuite) TestAnnotateIdempotent(c *check.C) {
	meta := NewMetadata([]string{"c1", "c2"})
	meta.Info["c1"].Cluster = 0
	meta.Info["c2"].Cluster = 1
	labels := map[int]string{0: "Astrocyte", 1: "Microglia"}

	once := Annotate(meta, labels)
	twice := Annotate(once, labels)
	c.Check(twice.Info, check.DeepEquals, once.Info)
}

func (s *annotateSuite) TestParseLabelMap(c *check.C) {
	labels, err := parseLabelMap("0=Astrocyte, 3=Astrocyte,5=Microglia")
	c.Assert(err, check.IsNil)
	c.Check(labels, check.DeepEquals, map[int]string{0: "Astrocyte", 3: "Astrocyte", 5: "Microglia"})

	_, err = parseLabelMap("x=foo")
	c.Check(err, check.ErrorMatches, `invalid cluster id "x"`)
	_, err = parseLabelMap("")
	c.Check(err, check.ErrorMatches, `empty label map`)
}
