// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package nucleus

import "fmt"

// MalformedInputError indicates a structurally invalid input file
// (duplicate identifiers, ragged rows, unparseable values). It aborts
// the pipeline before any stage runs.
type MalformedInputError struct {
	File   string
	Line   int
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed input %s, line %d: %s", e.File, e.Line, e.Reason)
	}
	return fmt.Sprintf("malformed input %s: %s", e.File, e.Reason)
}

// InvalidThresholdError indicates an unsatisfiable threshold
// configuration, reported with both offending values.
type InvalidThresholdError struct {
	Param string
	Min   float64
	Max   float64
}

func (e *InvalidThresholdError) Error() string {
	return fmt.Sprintf("invalid %s thresholds: min %g >= max %g", e.Param, e.Min, e.Max)
}

// InsufficientGenesError indicates a feature-selection request larger
// than the gene set.
type InsufficientGenesError struct {
	Requested int
	Available int
}

func (e *InsufficientGenesError) Error() string {
	return fmt.Sprintf("requested %d highly variable genes but matrix has only %d genes", e.Requested, e.Available)
}

// InsufficientCellsError indicates a neighbor count not smaller than
// the cell count.
type InsufficientCellsError struct {
	K     int
	Cells int
}

func (e *InsufficientCellsError) Error() string {
	return fmt.Sprintf("k=%d neighbors requested but dataset has only %d cells", e.K, e.Cells)
}

// EmptyCellError indicates a zero-count cell reaching normalization.
// QC filtering is the documented way to exclude such cells upstream.
type EmptyCellError struct {
	Cell string
}

func (e *EmptyCellError) Error() string {
	return fmt.Sprintf("cell %q has zero total counts; run qc before normalizing", e.Cell)
}

// EmptyGroupError indicates a differential-expression group with no
// member cells.
type EmptyGroupError struct {
	Field string
	Group string
}

func (e *EmptyGroupError) Error() string {
	return fmt.Sprintf("no cells with %s=%q", e.Field, e.Group)
}

// UnmatchedKeyError reports a cell with no row in the covariates
// table. The merge continues; the cell keeps empty covariate fields.
type UnmatchedKeyError struct {
	Key string
}

func (e *UnmatchedKeyError) Error() string {
	return fmt.Sprintf("no covariate row for key %q", e.Key)
}
