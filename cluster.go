// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package nucleus

import (
	"fmt"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"
)

// DetectClusters partitions the neighbor graph with Louvain
// modularity maximization at the given resolution (higher resolution,
// more and smaller clusters). The seed fixes the optimizer's
// randomized sweep order, so the assignment is reproducible. Cluster
// ids are relabeled 0..n-1 by descending cluster size (ties by
// smallest member index), and every cell gets exactly one id.
func DetectClusters(g *NeighborGraph, resolution float64, seed uint64) ([]int, error) {
	if resolution <= 0 {
		return nil, fmt.Errorf("resolution must be > 0, got %g", resolution)
	}
	ug := simple.NewUndirectedGraph()
	for i := 0; i < g.N; i++ {
		ug.AddNode(simple.Node(i))
	}
	for i, adj := range g.Adj {
		for _, j := range adj {
			if i < j {
				ug.SetEdge(simple.Edge{F: simple.Node(i), T: simple.Node(j)})
			}
		}
	}
	reduced := community.Modularize(ug, resolution, rand.NewSource(seed))
	communities := reduced.Communities()

	type comm struct {
		members []int
		min     int
	}
	comms := make([]comm, 0, len(communities))
	for _, nodes := range communities {
		members := make([]int, 0, len(nodes))
		min := g.N
		for _, nd := range nodes {
			i := int(nd.ID())
			members = append(members, i)
			if i < min {
				min = i
			}
		}
		comms = append(comms, comm{members: members, min: min})
	}
	sort.Slice(comms, func(a, b int) bool {
		if len(comms[a].members) != len(comms[b].members) {
			return len(comms[a].members) > len(comms[b].members)
		}
		return comms[a].min < comms[b].min
	})

	assign := make([]int, g.N)
	for i := range assign {
		assign[i] = -1
	}
	for id, c := range comms {
		for _, i := range c.members {
			assign[i] = id
		}
	}
	for i, a := range assign {
		if a < 0 {
			return nil, fmt.Errorf("cell index %d missing from community partition", i)
		}
	}
	return assign, nil
}

// applyClusters writes a fresh cluster assignment into a metadata
// copy. Assignments are total; a partial update never happens.
func applyClusters(meta *Metadata, cells []string, assign []int) *Metadata {
	out := meta.Clone()
	for i, cell := range cells {
		out.Info[cell].Cluster = assign[i]
	}
	return out
}
