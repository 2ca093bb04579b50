// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package nucleus

import (
	"flag"
	"fmt"
	"io"
	"regexp"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// QCThresholds configures cell filtering. All comparisons are strict,
// so a cell is kept only when MinFeatures < n < MaxFeatures and
// pctMito < MaxPctMito.
type QCThresholds struct {
	MinFeatures int
	MaxFeatures int
	MaxPctMito  float64
	MitoPattern string
}

// QCMetrics is the computed quality record for one cell, kept or not.
type QCMetrics struct {
	Cell        string
	NFeatures   int
	TotalCounts float64
	PctMito     float64
	Kept        bool
}

// FilterCells computes per-cell QC metrics and returns a new snapshot
// with only the passing cells, plus the metrics for every input cell.
// The input snapshot is untouched.
func FilterCells(ds *Dataset, th QCThresholds) (*Dataset, []QCMetrics, error) {
	if th.MinFeatures >= th.MaxFeatures {
		return nil, nil, &InvalidThresholdError{Param: "features", Min: float64(th.MinFeatures), Max: float64(th.MaxFeatures)}
	}
	if th.MaxPctMito <= 0 {
		return nil, nil, &InvalidThresholdError{Param: "pct-mito", Min: 0, Max: th.MaxPctMito}
	}
	mito, err := regexp.Compile(th.MitoPattern)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid mito gene pattern %q: %w", th.MitoPattern, err)
	}
	isMito := make([]bool, len(ds.Genes))
	nmito := 0
	for i, g := range ds.Genes {
		if mito.MatchString(g) {
			isMito[i] = true
			nmito++
		}
	}
	log.Printf("qc: %d genes match mito pattern %q", nmito, th.MitoPattern)

	ngenes, ncells := ds.Counts.Dims()
	metrics := make([]QCMetrics, ncells)
	var keep []int
	for j := 0; j < ncells; j++ {
		var nfeat int
		var total, mitoTotal float64
		for i := 0; i < ngenes; i++ {
			v := ds.Counts.At(i, j)
			if v > 0 {
				nfeat++
				total += v
				if isMito[i] {
					mitoTotal += v
				}
			}
		}
		pct := 0.0
		if total > 0 {
			pct = mitoTotal / total * 100
		}
		m := QCMetrics{Cell: ds.Cells[j], NFeatures: nfeat, TotalCounts: total, PctMito: pct}
		m.Kept = nfeat > th.MinFeatures && nfeat < th.MaxFeatures && pct < th.MaxPctMito
		metrics[j] = m
		if m.Kept {
			keep = append(keep, j)
		}
	}

	cells := make([]string, len(keep))
	counts := mat.NewDense(ngenes, len(keep), nil)
	for jj, j := range keep {
		cells[jj] = ds.Cells[j]
		for i := 0; i < ngenes; i++ {
			counts.Set(i, jj, ds.Counts.At(i, j))
		}
	}
	meta := ds.Meta.Subset(cells)
	for _, j := range keep {
		ci := meta.Info[ds.Cells[j]]
		ci.NFeatures = metrics[j].NFeatures
		ci.TotalCounts = metrics[j].TotalCounts
		ci.PctMito = metrics[j].PctMito
	}
	out := &Dataset{
		Genes:  append([]string(nil), ds.Genes...),
		Cells:  cells,
		Counts: counts,
		Layer:  ds.Layer,
		Meta:   meta,
	}
	return out, metrics, nil
}

type qccmd struct {
	thresholds QCThresholds
}

func (cmd *qccmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	flags.IntVar(&cmd.thresholds.MinFeatures, "min-features", 200, "keep cells with more than `N` detected genes")
	flags.IntVar(&cmd.thresholds.MaxFeatures, "max-features", 6000, "keep cells with fewer than `N` detected genes")
	flags.Float64Var(&cmd.thresholds.MaxPctMito, "max-pct-mito", 5, "keep cells with mitochondrial fraction below `P` percent")
	flags.StringVar(&cmd.thresholds.MitoPattern, "mito-pattern", "^MT-", "`regexp` matching mitochondrial gene ids")
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
	filtered, metrics, err := FilterCells(ds, cmd.thresholds)
	if err != nil {
		return 1
	}
	for _, m := range metrics {
		if !m.Kept {
			log.Debugf("qc: dropped %s (features=%d total=%g pct_mito=%.2f)", m.Cell, m.NFeatures, m.TotalCounts, m.PctMito)
		}
	}
	log.Printf("qc: kept %d of %d cells", len(filtered.Cells), len(ds.Cells))
	err = saveDatasetFile(*outputFilename, stdout, filtered)
	if err != nil {
		return 1
	}
	return 0
}
