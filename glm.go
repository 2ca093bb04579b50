// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package nucleus

import (
	"fmt"
	"io"
	stdlog "log"
	"math"

	"github.com/kshedden/statmodel/glm"
	"github.com/kshedden/statmodel/statmodel"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var glmConfig = &glm.Config{
	Family:         glm.NewFamily(glm.BinomialFamily),
	FitMethod:      "IRLS",
	ConcurrentIRLS: 1000,
	Log:            stdlog.New(io.Discard, "", 0),
}

func standardize(a []float64) {
	mean, std := stat.MeanStdDev(a, nil)
	if std == 0 {
		for i := range a {
			a[i] = 0
		}
		return
	}
	for i, x := range a {
		a[i] = (x - mean) / std
	}
}

// glmPvalueFunc fits a baseline logistic regression of group
// membership on the leading principal components, then returns a
// function computing a likelihood-ratio p-value for one gene's
// expression vector added to that baseline. Ill-conditioned fits
// yield NaN rather than panicking.
func glmPvalueFunc(isGroupA []bool, pcs [][]float64) func(expr []float64) float64 {
	ncells := len(isGroupA)

	outcome := make([]statmodel.Dtype, ncells)
	constants := make([]statmodel.Dtype, ncells)
	for i, a := range isGroupA {
		if a {
			outcome[i] = 1
		}
		constants[i] = 1
	}
	data := [][]statmodel.Dtype{outcome, constants}
	names := []string{"outcome", "constants"}
	for pc, series := range pcs {
		col := make([]float64, ncells)
		copy(col, series)
		standardize(col)
		typed := make([]statmodel.Dtype, ncells)
		for i, v := range col {
			typed[i] = statmodel.Dtype(v)
		}
		data = append(data, typed)
		names = append(names, fmt.Sprintf("pc%d", pc+1))
	}
	baseline := statmodel.NewDataset(data, names)

	model, err := glm.NewGLM(baseline, "outcome", names[1:], glmConfig)
	if err != nil {
		return func([]float64) float64 { return math.NaN() }
	}
	resultBase := model.Fit()
	logBase := resultBase.LogLike()

	return func(expr []float64) (p float64) {
		defer func() {
			if recover() != nil {
				// typically "matrix singular or near-singular"
				p = math.NaN()
			}
		}()
		col := make([]float64, ncells)
		copy(col, expr)
		standardize(col)
		typed := make([]statmodel.Dtype, ncells)
		for i, v := range col {
			typed[i] = statmodel.Dtype(v)
		}
		full := append([][]statmodel.Dtype{data[0], typed}, data[1:]...)
		fullNames := append([]string{"outcome", "expr"}, names[1:]...)
		dataset := statmodel.NewDataset(full, fullNames)

		model, err := glm.NewGLM(dataset, "outcome", fullNames[1:], glmConfig)
		if err != nil {
			return math.NaN()
		}
		resultFull := model.Fit()
		logFull := resultFull.LogLike()
		dist := distuv.ChiSquared{K: 1}
		return dist.Survival(-2 * (logBase - logFull))
	}
}
