// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package nucleus

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"math"
	"runtime"
	"sort"
	"strconv"

	log "github.com/sirupsen/logrus"
)

const log2FCEpsilon = 1e-9

// DEResult is the test outcome for one gene, comparing group A
// against group B.
type DEResult struct {
	Gene   string
	Log2FC float64
	MeanA  float64
	MeanB  float64
	PctA   float64 // fraction of group A cells expressing the gene
	PctB   float64
	P      float64
	PAdj   float64
}

// DEOptions configures one differential-expression run.
type DEOptions struct {
	Field      string // metadata field holding the group values
	GroupA     string
	GroupB     string
	Method     string // "wilcoxon" (default) or "logistic"
	Correction string // "bonferroni" (default) or "bh"
	AdjustPCs  int    // logistic only: principal components in the baseline model
	TargetSum  float64
}

// DifferentialExpression partitions cells by the two values of a
// metadata field and, per gene, tests the expression distributions of
// the two groups on log-normalized data. Genes whose values are
// constant across the union of both groups in the input layer are
// excluded from testing (their count is logged, not silently NaN'd).
// Results are sorted by adjusted p ascending, ties by |log2FC|
// descending then gene id.
func DifferentialExpression(ds *Dataset, opt DEOptions) ([]DEResult, error) {
	if opt.Method == "" {
		opt.Method = "wilcoxon"
	}
	if opt.Correction == "" {
		opt.Correction = "bonferroni"
	}
	if opt.Method != "wilcoxon" && opt.Method != "logistic" {
		return nil, fmt.Errorf("unknown test method %q", opt.Method)
	}
	if opt.Correction != "bonferroni" && opt.Correction != "bh" {
		return nil, fmt.Errorf("unknown correction method %q", opt.Correction)
	}

	var idxA, idxB []int
	for j, cell := range ds.Cells {
		v, ok := ds.Meta.Field(cell, opt.Field)
		if !ok {
			continue
		}
		switch v {
		case opt.GroupA:
			idxA = append(idxA, j)
		case opt.GroupB:
			idxB = append(idxB, j)
		}
	}
	if len(idxA) == 0 {
		return nil, &EmptyGroupError{Field: opt.Field, Group: opt.GroupA}
	}
	if len(idxB) == 0 {
		return nil, &EmptyGroupError{Field: opt.Field, Group: opt.GroupB}
	}
	log.Printf("diffexp: %d cells %s=%s vs %d cells %s=%s", len(idxA), opt.Field, opt.GroupA, len(idxB), opt.Field, opt.GroupB)

	expr := ds
	if ds.Layer == LayerCounts {
		targetSum := opt.TargetSum
		if targetSum <= 0 {
			targetSum = 10000
		}
		var err error
		expr, err = Normalize(ds, targetSum)
		if err != nil {
			return nil, err
		}
	}

	var glmP func([]float64) float64
	if opt.Method == "logistic" {
		isA := make([]bool, len(idxA)+len(idxB))
		for i := range idxA {
			isA[i] = true
		}
		var pcs [][]float64
		if opt.AdjustPCs > 0 {
			if expr.PCA == nil {
				return nil, fmt.Errorf("logistic method with -adjust-pcs needs a snapshot with a PCA embedding (run cluster first)")
			}
			_, npcs := expr.PCA.Dims()
			if opt.AdjustPCs > npcs {
				return nil, fmt.Errorf("requested %d adjustment PCs but embedding has %d", opt.AdjustPCs, npcs)
			}
			for pc := 0; pc < opt.AdjustPCs; pc++ {
				series := make([]float64, 0, len(isA))
				for _, j := range idxA {
					series = append(series, expr.PCA.At(j, pc))
				}
				for _, j := range idxB {
					series = append(series, expr.PCA.At(j, pc))
				}
				pcs = append(pcs, series)
			}
		}
		glmP = glmPvalueFunc(isA, pcs)
	}

	ngenes, _ := expr.Counts.Dims()
	type geneStat struct {
		tested bool
		res    DEResult
	}
	stats := make([]geneStat, ngenes)
	throttle := throttle{Max: runtime.NumCPU()}
	for gi := 0; gi < ngenes; gi++ {
		gi := gi
		throttle.Acquire()
		go func() {
			defer throttle.Release()
			// Constancy is judged on the snapshot's own layer: a
			// gene counted identically in every cell stays excluded
			// even when unequal library sizes would spread its
			// log-normalized values apart.
			constant := true
			first := ds.Counts.At(gi, idxA[0])
			for _, j := range idxA {
				if ds.Counts.At(gi, j) != first {
					constant = false
					break
				}
			}
			if constant {
				for _, j := range idxB {
					if ds.Counts.At(gi, j) != first {
						constant = false
						break
					}
				}
			}
			if constant {
				// zero variance in both groups: excluded from testing
				return
			}
			valsA := make([]float64, len(idxA))
			valsB := make([]float64, len(idxB))
			var sumA, sumB float64
			var nzA, nzB int
			for i, j := range idxA {
				v := expr.Counts.At(gi, j)
				valsA[i] = v
				sumA += v
				if v != 0 {
					nzA++
				}
			}
			for i, j := range idxB {
				v := expr.Counts.At(gi, j)
				valsB[i] = v
				sumB += v
				if v != 0 {
					nzB++
				}
			}
			meanA := sumA / float64(len(idxA))
			meanB := sumB / float64(len(idxB))
			var p float64
			if glmP != nil {
				p = glmP(append(append([]float64(nil), valsA...), valsB...))
			} else {
				p = wilcoxonPvalue(valsA, valsB)
			}
			stats[gi] = geneStat{tested: true, res: DEResult{
				Gene:   expr.Genes[gi],
				Log2FC: math.Log2((meanA + log2FCEpsilon) / (meanB + log2FCEpsilon)),
				MeanA:  meanA,
				MeanB:  meanB,
				PctA:   float64(nzA) / float64(len(idxA)),
				PctB:   float64(nzB) / float64(len(idxB)),
				P:      p,
			}}
		}()
	}
	throttle.Wait()

	var results []DEResult
	var pvals []float64
	skipped := 0
	for _, st := range stats {
		if !st.tested {
			skipped++
			continue
		}
		results = append(results, st.res)
		p := st.res.P
		if math.IsNaN(p) {
			p = 1
		}
		pvals = append(pvals, p)
	}
	if skipped > 0 {
		log.Printf("diffexp: excluded %d genes with zero variance in both groups", skipped)
	}

	var padj []float64
	if opt.Correction == "bh" {
		padj = adjustBH(pvals)
	} else {
		padj = adjustBonferroni(pvals)
	}
	for i := range results {
		if math.IsNaN(results[i].P) {
			results[i].PAdj = math.NaN()
		} else {
			results[i].PAdj = padj[i]
		}
	}

	sort.Slice(results, func(a, b int) bool {
		pa, pb := results[a].PAdj, results[b].PAdj
		if math.IsNaN(pa) {
			pa = math.Inf(1)
		}
		if math.IsNaN(pb) {
			pb = math.Inf(1)
		}
		if pa != pb {
			return pa < pb
		}
		la, lb := math.Abs(results[a].Log2FC), math.Abs(results[b].Log2FC)
		if la != lb {
			return la > lb
		}
		return results[a].Gene < results[b].Gene
	})
	return results, nil
}

// WriteDEResults writes a DifferentialResult table as CSV.
func WriteDEResults(w io.Writer, results []DEResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"gene", "log2fc", "mean_a", "mean_b", "pct_a", "pct_b", "pvalue", "pvalue_adj"}); err != nil {
		return err
	}
	for _, r := range results {
		err := cw.Write([]string{
			r.Gene,
			strconv.FormatFloat(r.Log2FC, 'g', 6, 64),
			strconv.FormatFloat(r.MeanA, 'g', 6, 64),
			strconv.FormatFloat(r.MeanB, 'g', 6, 64),
			strconv.FormatFloat(r.PctA, 'g', 4, 64),
			strconv.FormatFloat(r.PctB, 'g', 4, 64),
			strconv.FormatFloat(r.P, 'g', 6, 64),
			strconv.FormatFloat(r.PAdj, 'g', 6, 64),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type diffexpcmd struct {
	opts DEOptions
}

func (cmd *diffexpcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	flags.StringVar(&cmd.opts.Field, "field", "", "metadata `field` holding the group values (e.g. status)")
	flags.StringVar(&cmd.opts.GroupA, "group-a", "", "first group `value`")
	flags.StringVar(&cmd.opts.GroupB, "group-b", "", "second group `value`")
	flags.StringVar(&cmd.opts.Method, "method", "wilcoxon", "test `method`: wilcoxon or logistic")
	flags.StringVar(&cmd.opts.Correction, "correction", "bonferroni", "multiple-testing `correction`: bonferroni or bh")
	flags.IntVar(&cmd.opts.AdjustPCs, "adjust-pcs", 0, "logistic only: adjust for the first `N` principal components")
	flags.Float64Var(&cmd.opts.TargetSum, "target-sum", 10000, "normalization target sum `S` when the snapshot holds raw counts")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	if cmd.opts.Field == "" || cmd.opts.GroupA == "" || cmd.opts.GroupB == "" {
		err = fmt.Errorf("need -field, -group-a, and -group-b")
		return 2
	}

	ds, err := loadDatasetFile(*inputFilename, stdin)
	if err != nil {
		return 1
	}
	results, err := DifferentialExpression(ds, cmd.opts)
	if err != nil {
		return 1
	}
	log.Printf("diffexp: tested %d genes", len(results))

	output, err := openOutput(*outputFilename, stdout)
	if err != nil {
		return 1
	}
	if err = WriteDEResults(output, results); err != nil {
		output.Close()
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}
