// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package nucleus

import (
	"flag"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// ClusterParams parameterizes one clustering sub-pipeline invocation
// (normalize, select features, scale, PCA, neighbor graph, community
// detection, manifold layout). The same function serves the full
// dataset and any subset, each with its own parameters.
type ClusterParams struct {
	TargetSum   float64
	TopGenes    int
	ClipMax     float64 // 0 disables clipping
	Components  int
	NDims       int // components retained for the neighbor graph; 0 = all
	K           int
	Resolution  float64
	Seed        uint64
	UMAPDims    int // 0 skips the manifold layout
	UMAPEpochs  int
}

func (p *ClusterParams) Flags(flags *flag.FlagSet) {
	flags.Float64Var(&p.TargetSum, "target-sum", 10000, "normalize each cell to `S` total counts before log1p")
	flags.IntVar(&p.TopGenes, "top-genes", 2000, "number of highly variable genes `N` to keep")
	flags.Float64Var(&p.ClipMax, "clip", 10, "clip scaled values to +/- `V` (0 to disable)")
	flags.IntVar(&p.Components, "components", 50, "number of principal components")
	flags.IntVar(&p.NDims, "n-dims", 0, "principal components `N` retained for the neighbor graph (0 = all; choose from the variance-explained elbow)")
	flags.IntVar(&p.K, "k", 15, "neighbors per cell `K`")
	flags.Float64Var(&p.Resolution, "resolution", 1.0, "community detection `resolution` (higher = more clusters)")
	flags.Uint64Var(&p.Seed, "seed", 1, "random `seed` for community detection and the manifold layout")
	flags.IntVar(&p.UMAPDims, "umap-components", 2, "manifold layout dimensions (2 or 3, 0 to skip)")
	flags.IntVar(&p.UMAPEpochs, "umap-epochs", 200, "manifold layout optimization epochs")
}

// RunClusterPipeline runs the clustering sub-pipeline on a raw-counts
// snapshot and returns a new snapshot carrying the raw counts plus
// the feature set, embeddings, variance-explained vector, and cluster
// assignment. The input snapshot is untouched.
func RunClusterPipeline(ds *Dataset, p ClusterParams) (*Dataset, error) {
	if ds.Layer != LayerCounts {
		return nil, fmt.Errorf("cluster pipeline expects a raw counts snapshot, got layer %q", ds.Layer)
	}

	log.Printf("normalize: target sum %g", p.TargetSum)
	norm, err := Normalize(ds, p.TargetSum)
	if err != nil {
		return nil, err
	}

	log.Printf("select features: top %d of %d genes", p.TopGenes, len(norm.Genes))
	hvg, err := SelectFeatures(norm, p.TopGenes)
	if err != nil {
		return nil, err
	}

	scaled, err := ScaleFeatures(norm, hvg, p.ClipMax)
	if err != nil {
		return nil, err
	}

	emb, explained, err := ReduceLinear(scaled, p.Components)
	if err != nil {
		return nil, err
	}

	nDims := p.NDims
	if nDims == 0 {
		nDims = p.Components
	}
	log.Printf("neighbor graph: k=%d over %d dims", p.K, nDims)
	graph, err := BuildNeighborGraph(emb, nDims, p.K)
	if err != nil {
		return nil, err
	}

	assign, err := DetectClusters(graph, p.Resolution, p.Seed)
	if err != nil {
		return nil, err
	}
	nclusters := 0
	for _, a := range assign {
		if a >= nclusters {
			nclusters = a + 1
		}
	}
	log.Printf("detected %d clusters at resolution %g", nclusters, p.Resolution)

	out := ds.shallowCopy()
	out.HVG = hvg
	out.PCA = emb
	out.VarianceExplained = explained
	out.Meta = applyClusters(out.Meta, out.Cells, assign)

	if p.UMAPDims > 0 {
		umap, err := EmbedNonLinear(graph, emb, p.UMAPDims, p.Seed, p.UMAPEpochs)
		if err != nil {
			return nil, err
		}
		out.UMAP = umap
	}
	return out, nil
}

type clustercmd struct {
	params ClusterParams
}

func (cmd *clustercmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "-", "input snapshot `file`")
	outputFilename := flags.String("o", "-", "output snapshot `file`")
	loglevel := flags.String("loglevel", "info", "logging threshold (trace, debug, info, warn, error, fatal, or panic)")
	cmd.params.Flags(flags)
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	lvl, err := log.ParseLevel(*loglevel)
	if err != nil {
		return 2
	}
	log.SetLevel(lvl)

	ds, err := loadDatasetFile(*inputFilename, stdin)
	if err != nil {
		return 1
	}
	out, err := RunClusterPipeline(ds, cmd.params)
	if err != nil {
		return 1
	}
	for i, v := range out.VarianceExplained {
		log.Debugf("pc%d explains %.4f of variance", i+1, v)
	}
	err = saveDatasetFile(*outputFilename, stdout, out)
	if err != nil {
		return 1
	}
	return 0
}
