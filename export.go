// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package nucleus

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"strconv"

	log "github.com/sirupsen/logrus"
)

// exporter writes the per-cell annotation table (QC metrics, cluster
// assignment, label, covariates, manifold coordinates) as delimited
// text for downstream visualization tooling.
type exporter struct{}

func (cmd *exporter) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "-", "input snapshot `file`")
	outputFilename := flags.String("o", "-", "output csv `file`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}

	ds, err := loadDatasetFile(*inputFilename, stdin)
	if err != nil {
		return 1
	}
	output, err := openOutput(*outputFilename, stdout)
	if err != nil {
		return 1
	}
	if err = WriteCellTable(output, ds); err != nil {
		output.Close()
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	log.Printf("exported %d cells", len(ds.Cells))
	return 0
}

// WriteCellTable writes one row per cell with annotations and, when
// present, manifold coordinates.
func WriteCellTable(w io.Writer, ds *Dataset) error {
	cw := csv.NewWriter(w)
	header := []string{"cell", "n_features", "total_counts", "pct_mito", "cluster", "label"}
	header = append(header, ds.Meta.CovarFields...)
	umapDims := 0
	if ds.UMAP != nil {
		_, umapDims = ds.UMAP.Dims()
		for d := 0; d < umapDims; d++ {
			header = append(header, fmt.Sprintf("umap%d", d+1))
		}
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for j, cell := range ds.Cells {
		ci := ds.Meta.Info[cell]
		cluster := ""
		if ci.Cluster >= 0 {
			cluster = strconv.Itoa(ci.Cluster)
		}
		row := []string{
			cell,
			strconv.Itoa(ci.NFeatures),
			strconv.FormatFloat(ci.TotalCounts, 'g', -1, 64),
			strconv.FormatFloat(ci.PctMito, 'g', 4, 64),
			cluster,
			ci.Label,
		}
		for _, field := range ds.Meta.CovarFields {
			row = append(row, ci.Covariates[field])
		}
		for d := 0; d < umapDims; d++ {
			row = append(row, strconv.FormatFloat(ds.UMAP.At(j, d), 'g', 6, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
