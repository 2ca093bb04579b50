// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package nucleus

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// ReadMatrix parses a delimited gene-by-cell count matrix: header row
// of cell ids, first column of gene ids, non-negative numeric body.
// The field separator is detected from the header (tab preferred over
// comma). fnm is used only for error reporting.
func ReadMatrix(r io.Reader, fnm string) (*Dataset, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1<<20), 1<<28)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, &MalformedInputError{File: fnm, Reason: "empty file"}
	}
	header := scanner.Text()
	sep := "\t"
	if !strings.Contains(header, "\t") && strings.Contains(header, ",") {
		sep = ","
	}
	cells := strings.Split(header, sep)
	if len(cells) > 0 && (cells[0] == "" || cells[0] == "gene" || cells[0] == "gene_id") {
		// corner label above the gene-id column
		cells = cells[1:]
	}
	if len(cells) == 0 {
		return nil, &MalformedInputError{File: fnm, Line: 1, Reason: "header has no cell ids"}
	}
	seen := make(map[string]bool, len(cells))
	for _, c := range cells {
		if seen[c] {
			return nil, &MalformedInputError{File: fnm, Line: 1, Reason: fmt.Sprintf("duplicate cell id %q", c)}
		}
		seen[c] = true
	}

	var (
		genes     []string
		data      []float64
		geneSeen  = make(map[string]bool)
		line      = 1
		wantWidth = len(cells) + 1
	)
	for scanner.Scan() {
		line++
		fields := strings.Split(scanner.Text(), sep)
		if len(fields) == 1 && fields[0] == "" {
			continue
		}
		if len(fields) != wantWidth {
			return nil, &MalformedInputError{File: fnm, Line: line, Reason: fmt.Sprintf("expected %d fields, got %d", wantWidth, len(fields))}
		}
		gene := fields[0]
		if geneSeen[gene] {
			return nil, &MalformedInputError{File: fnm, Line: line, Reason: fmt.Sprintf("duplicate gene id %q", gene)}
		}
		geneSeen[gene] = true
		genes = append(genes, gene)
		for _, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, &MalformedInputError{File: fnm, Line: line, Reason: fmt.Sprintf("unparseable count %q", f)}
			}
			if v < 0 {
				return nil, &MalformedInputError{File: fnm, Line: line, Reason: fmt.Sprintf("negative count %g", v)}
			}
			data = append(data, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(genes) == 0 {
		return nil, &MalformedInputError{File: fnm, Reason: "no gene rows"}
	}
	ds := &Dataset{
		Genes:  genes,
		Cells:  cells,
		Counts: mat.NewDense(len(genes), len(cells), data),
		Layer:  LayerCounts,
		Meta:   NewMetadata(cells),
	}
	return ds, ds.check()
}

// CovariatesTable is an external per-sample annotation table keyed by
// a shared identifier column.
type CovariatesTable struct {
	KeyColumn string
	Columns   []string
	Rows      map[string]map[string]string
}

// ReadCovariates parses a delimited covariates table. keyColumn names
// the identifier column; "" means the first column.
func ReadCovariates(r io.Reader, fnm, keyColumn string) (*CovariatesTable, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1<<20), 1<<24)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, &MalformedInputError{File: fnm, Reason: "empty file"}
	}
	header := scanner.Text()
	sep := "\t"
	if !strings.Contains(header, "\t") && strings.Contains(header, ",") {
		sep = ","
	}
	cols := strings.Split(header, sep)
	keyIdx := -1
	if keyColumn == "" {
		keyIdx = 0
		keyColumn = cols[0]
	} else {
		for i, c := range cols {
			if c == keyColumn {
				keyIdx = i
				break
			}
		}
		if keyIdx < 0 {
			return nil, &MalformedInputError{File: fnm, Line: 1, Reason: fmt.Sprintf("no column %q in header", keyColumn)}
		}
	}
	tbl := &CovariatesTable{
		KeyColumn: keyColumn,
		Rows:      map[string]map[string]string{},
	}
	for i, c := range cols {
		if i != keyIdx {
			tbl.Columns = append(tbl.Columns, c)
		}
	}
	line := 1
	for scanner.Scan() {
		line++
		fields := strings.Split(scanner.Text(), sep)
		if len(fields) == 1 && fields[0] == "" {
			continue
		}
		if len(fields) != len(cols) {
			return nil, &MalformedInputError{File: fnm, Line: line, Reason: fmt.Sprintf("expected %d fields, got %d", len(cols), len(fields))}
		}
		key := fields[keyIdx]
		if _, dup := tbl.Rows[key]; dup {
			return nil, &MalformedInputError{File: fnm, Line: line, Reason: fmt.Sprintf("duplicate key %q", key)}
		}
		row := make(map[string]string, len(cols)-1)
		for i, f := range fields {
			if i != keyIdx {
				row[cols[i]] = f
			}
		}
		tbl.Rows[key] = row
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return tbl, nil
}

func openMaybeGzip(fnm string, stdin io.Reader) (io.ReadCloser, error) {
	in, err := openInput(fnm, stdin)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(fnm, ".gz") {
		return in, nil
	}
	gz, err := pgzip.NewReader(bufio.NewReader(in))
	if err != nil {
		in.Close()
		return nil, err
	}
	return struct {
		io.Reader
		io.Closer
	}{gz, in}, nil
}

type importer struct {
	covarFile string
	covarKey  string
}

func (cmd *importer) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "-", "input matrix `file` (tsv/csv, optionally .gz)")
	outputFilename := flags.String("o", "-", "output snapshot `file`")
	flags.StringVar(&cmd.covarFile, "covar", "", "covariates table `file` to merge at import time")
	flags.StringVar(&cmd.covarKey, "covar-key", "", "key `column` in the covariates table (default: first column)")
	loglevel := flags.String("loglevel", "info", "logging threshold (trace, debug, info, warn, error, fatal, or panic)")
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

	input, err := openMaybeGzip(*inputFilename, stdin)
	if err != nil {
		return 1
	}
	defer input.Close()
	log.Printf("reading matrix from %s", *inputFilename)
	ds, err := ReadMatrix(input, *inputFilename)
	if err != nil {
		return 1
	}
	log.Printf("loaded %d genes x %d cells", len(ds.Genes), len(ds.Cells))

	if cmd.covarFile != "" {
		var f *os.File
		f, err = os.Open(cmd.covarFile)
		if err != nil {
			return 1
		}
		var tbl *CovariatesTable
		tbl, err = ReadCovariates(f, cmd.covarFile, cmd.covarKey)
		f.Close()
		if err != nil {
			return 1
		}
		var unmatched []string
		ds.Meta, unmatched = MergeCovariates(ds.Meta, ds.Cells, tbl)
		for _, key := range unmatched {
			log.Warnf("%s", &UnmatchedKeyError{Key: key})
		}
		log.Printf("merged %d covariate columns, %d cells unmatched", len(tbl.Columns), len(unmatched))
	}

	err = saveDatasetFile(*outputFilename, stdout, ds)
	if err != nil {
		return 1
	}
	return 0
}
