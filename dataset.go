// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package nucleus

import (
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// Matrix layers. Snapshots written between subcommands always carry
// LayerCounts so a subset can re-enter normalization from raw data;
// the other layers only exist inside a pipeline invocation.
const (
	LayerCounts  = "counts"
	LayerLogNorm = "lognorm"
	LayerScaled  = "scaled"
)

// Dataset is one immutable snapshot of the expression matrix and
// everything derived from it. Stages return a new Dataset and leave
// their input untouched, so any stage can be re-run with different
// parameters without recomputing upstream results.
type Dataset struct {
	Genes  []string
	Cells  []string
	Counts *mat.Dense // genes x cells
	Layer  string
	Meta   *Metadata

	HVG               []string
	PCA               *mat.Dense // cells x components
	VarianceExplained []float64
	UMAP              *mat.Dense // cells x 2..3
}

// CellInfo holds the per-cell annotations accumulated across stages.
// Filtering removes cells, never fields.
type CellInfo struct {
	NFeatures   int
	TotalCounts float64
	PctMito     float64
	Cluster     int // -1 until assigned
	Label       string
	Covariates  map[string]string
}

func (ci *CellInfo) clone() *CellInfo {
	out := *ci
	if ci.Covariates != nil {
		out.Covariates = make(map[string]string, len(ci.Covariates))
		for k, v := range ci.Covariates {
			out.Covariates[k] = v
		}
	}
	return &out
}

// Metadata maps cell ids to their annotation records. CovarFields
// remembers the covariate column order for stable export.
type Metadata struct {
	Info        map[string]*CellInfo
	CovarFields []string
}

func NewMetadata(cells []string) *Metadata {
	m := &Metadata{Info: make(map[string]*CellInfo, len(cells))}
	for _, c := range cells {
		m.Info[c] = &CellInfo{Cluster: -1}
	}
	return m
}

func (m *Metadata) Clone() *Metadata {
	out := &Metadata{
		Info:        make(map[string]*CellInfo, len(m.Info)),
		CovarFields: append([]string(nil), m.CovarFields...),
	}
	for k, v := range m.Info {
		out.Info[k] = v.clone()
	}
	return out
}

// Subset returns a copy of m restricted to the given cells. Existing
// fields of the surviving cells are carried over unchanged.
func (m *Metadata) Subset(cells []string) *Metadata {
	out := &Metadata{
		Info:        make(map[string]*CellInfo, len(cells)),
		CovarFields: append([]string(nil), m.CovarFields...),
	}
	for _, c := range cells {
		if ci, ok := m.Info[c]; ok {
			out.Info[c] = ci.clone()
		} else {
			out.Info[c] = &CellInfo{Cluster: -1}
		}
	}
	return out
}

// Field resolves a metadata field by name for one cell. Built-in
// fields take precedence over covariate columns of the same name.
func (m *Metadata) Field(cell, name string) (string, bool) {
	ci, ok := m.Info[cell]
	if !ok {
		return "", false
	}
	switch name {
	case "cluster":
		if ci.Cluster < 0 {
			return "", false
		}
		return strconv.Itoa(ci.Cluster), true
	case "label":
		return ci.Label, ci.Label != ""
	case "n_features":
		return strconv.Itoa(ci.NFeatures), true
	case "total_counts":
		return strconv.FormatFloat(ci.TotalCounts, 'g', -1, 64), true
	case "pct_mito":
		return strconv.FormatFloat(ci.PctMito, 'g', -1, 64), true
	}
	v, ok := ci.Covariates[name]
	return v, ok && v != ""
}

func (ds *Dataset) geneIndex() map[string]int {
	idx := make(map[string]int, len(ds.Genes))
	for i, g := range ds.Genes {
		idx[g] = i
	}
	return idx
}

func (ds *Dataset) cellIndex() map[string]int {
	idx := make(map[string]int, len(ds.Cells))
	for i, c := range ds.Cells {
		idx[c] = i
	}
	return idx
}

// shallowCopy duplicates the snapshot structure (label slices and
// metadata are copied; matrices are shared, since no stage writes to
// a matrix it did not allocate itself).
func (ds *Dataset) shallowCopy() *Dataset {
	out := &Dataset{
		Genes:             append([]string(nil), ds.Genes...),
		Cells:             append([]string(nil), ds.Cells...),
		Counts:            ds.Counts,
		Layer:             ds.Layer,
		HVG:               append([]string(nil), ds.HVG...),
		PCA:               ds.PCA,
		VarianceExplained: append([]float64(nil), ds.VarianceExplained...),
		UMAP:              ds.UMAP,
	}
	if ds.Meta != nil {
		out.Meta = ds.Meta.Clone()
	}
	return out
}

func (ds *Dataset) check() error {
	r, c := ds.Counts.Dims()
	if r != len(ds.Genes) || c != len(ds.Cells) {
		return fmt.Errorf("matrix is %dx%d but has %d gene and %d cell labels", r, c, len(ds.Genes), len(ds.Cells))
	}
	return nil
}
