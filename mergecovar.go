// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package nucleus

import (
	"flag"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// MergeCovariates left-joins an external covariates table onto cell
// metadata. Cells without a matching table row keep empty covariate
// fields and are returned so the caller can report each
// UnmatchedKeyError; the merge itself never drops a cell.
func MergeCovariates(meta *Metadata, cells []string, tbl *CovariatesTable) (*Metadata, []string) {
	out := meta.Clone()
	have := map[string]bool{}
	for _, c := range out.CovarFields {
		have[c] = true
	}
	for _, c := range tbl.Columns {
		if !have[c] {
			out.CovarFields = append(out.CovarFields, c)
			have[c] = true
		}
	}
	var unmatched []string
	for _, cell := range cells {
		ci := out.Info[cell]
		if ci == nil {
			continue
		}
		row, ok := tbl.Rows[cell]
		if !ok {
			unmatched = append(unmatched, cell)
			continue
		}
		if ci.Covariates == nil {
			ci.Covariates = make(map[string]string, len(row))
		}
		for k, v := range row {
			ci.Covariates[k] = v
		}
	}
	return out, unmatched
}

type mergecmd struct{}

func (cmd *mergecmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	covarFile := flags.String("covar", "", "covariates table `file`")
	covarKey := flags.String("covar-key", "", "key `column` in the covariates table (default: first column)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	if *covarFile == "" {
		err = fmt.Errorf("need -covar")
		return 2
	}

	f, err := os.Open(*covarFile)
	if err != nil {
		return 1
	}
	tbl, err := ReadCovariates(f, *covarFile, *covarKey)
	f.Close()
	if err != nil {
		return 1
	}

	ds, err := loadDatasetFile(*inputFilename, stdin)
	if err != nil {
		return 1
	}
	out := ds.shallowCopy()
	var unmatched []string
	out.Meta, unmatched = MergeCovariates(ds.Meta, ds.Cells, tbl)
	for _, key := range unmatched {
		log.Warnf("%s", &UnmatchedKeyError{Key: key})
	}
	log.Printf("merged %d covariate columns onto %d cells, %d unmatched", len(tbl.Columns), len(ds.Cells), len(unmatched))

	err = saveDatasetFile(*outputFilename, stdout, out)
	if err != nil {
		return 1
	}
	return 0
}
