// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package nucleus

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// SubsetCells returns a new raw-counts snapshot restricted to cells
// whose metadata satisfies keep. Derived embeddings and feature sets
// are dropped: the subset re-enters the cluster pipeline as an
// independent run with its own parameters.
func SubsetCells(ds *Dataset, keep func(cell string, ci *CellInfo) bool) (*Dataset, error) {
	if ds.Layer != LayerCounts {
		return nil, fmt.Errorf("subset expects a raw counts snapshot, got layer %q", ds.Layer)
	}
	var idx []int
	var cells []string
	for j, cell := range ds.Cells {
		if keep(cell, ds.Meta.Info[cell]) {
			idx = append(idx, j)
			cells = append(cells, cell)
		}
	}
	if len(cells) == 0 {
		return nil, fmt.Errorf("no cells match the subset predicate")
	}
	ngenes, _ := ds.Counts.Dims()
	counts := mat.NewDense(ngenes, len(idx), nil)
	for jj, j := range idx {
		for i := 0; i < ngenes; i++ {
			counts.Set(i, jj, ds.Counts.At(i, j))
		}
	}
	return &Dataset{
		Genes:  append([]string(nil), ds.Genes...),
		Cells:  cells,
		Counts: counts,
		Layer:  LayerCounts,
		Meta:   ds.Meta.Subset(cells),
	}, nil
}

type subsetcmd struct{}

func (cmd *subsetcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	label := flags.String("label", "", "keep cells with this `label`")
	clusters := flags.String("clusters", "", "keep cells in these `clusters` (comma-separated ids)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	if (*label == "") == (*clusters == "") {
		err = fmt.Errorf("need exactly one of -label or -clusters")
		return 2
	}

	var keep func(string, *CellInfo) bool
	if *label != "" {
		keep = func(_ string, ci *CellInfo) bool { return ci.Label == *label }
	} else {
		want := map[int]bool{}
		for _, s := range strings.Split(*clusters, ",") {
			id, aerr := strconv.Atoi(strings.TrimSpace(s))
			if aerr != nil || id < 0 {
				err = fmt.Errorf("invalid cluster id %q", s)
				return 2
			}
			want[id] = true
		}
		keep = func(_ string, ci *CellInfo) bool { return want[ci.Cluster] }
	}

	ds, err := loadDatasetFile(*inputFilename, stdin)
	if err != nil {
		return 1
	}
	out, err := SubsetCells(ds, keep)
	if err != nil {
		return 1
	}
	log.Printf("subset: kept %d of %d cells", len(out.Cells), len(ds.Cells))
	err = saveDatasetFile(*outputFilename, stdout, out)
	if err != nil {
		return 1
	}
	return 0
}
