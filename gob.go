// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package nucleus

import (
	"bufio"
	"encoding/gob"
	"io"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
	"gonum.org/v1/gonum/mat"
)

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// openInput resolves the "-i" convention: "-" means
// stdin, a ".gz" suffix means pgzip.
func openInput(fnm string, stdin io.Reader) (io.ReadCloser, error) {
	if fnm == "-" {
		return io.NopCloser(stdin), nil
	}
	return os.Open(fnm)
}

func openOutput(fnm string, stdout io.Writer) (io.WriteCloser, error) {
	if fnm == "-" {
		return nopCloser{stdout}, nil
	}
	return os.OpenFile(fnm, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
}

type denseWire struct {
	Rows, Cols int
	Data       []float64
}

func denseToWire(m *mat.Dense) *denseWire {
	if m == nil {
		return nil
	}
	r, c := m.Dims()
	raw := m.RawMatrix()
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		data = append(data, raw.Data[i*raw.Stride:i*raw.Stride+c]...)
	}
	return &denseWire{Rows: r, Cols: c, Data: data}
}

func wireToDense(w *denseWire) *mat.Dense {
	if w == nil {
		return nil
	}
	return mat.NewDense(w.Rows, w.Cols, w.Data)
}

type datasetWire struct {
	Genes             []string
	Cells             []string
	Counts            *denseWire
	Layer             string
	Meta              *Metadata
	HVG               []string
	PCA               *denseWire
	VarianceExplained []float64
	UMAP              *denseWire
}

// WriteDataset gob-encodes a snapshot, compressed when the named
// output ends in ".gz".
func WriteDataset(w io.Writer, fnm string, ds *Dataset) error {
	var out io.Writer = w
	var gz *pgzip.Writer
	if strings.HasSuffix(fnm, ".gz") {
		gz = pgzip.NewWriter(w)
		out = gz
	}
	bufw := bufio.NewWriter(out)
	err := gob.NewEncoder(bufw).Encode(&datasetWire{
		Genes:             ds.Genes,
		Cells:             ds.Cells,
		Counts:            denseToWire(ds.Counts),
		Layer:             ds.Layer,
		Meta:              ds.Meta,
		HVG:               ds.HVG,
		PCA:               denseToWire(ds.PCA),
		VarianceExplained: ds.VarianceExplained,
		UMAP:              denseToWire(ds.UMAP),
	})
	if err != nil {
		return err
	}
	if err = bufw.Flush(); err != nil {
		return err
	}
	if gz != nil {
		return gz.Close()
	}
	return nil
}

// ReadDataset decodes a snapshot written by WriteDataset.
func ReadDataset(r io.Reader, fnm string) (*Dataset, error) {
	var in io.Reader = bufio.NewReader(r)
	if strings.HasSuffix(fnm, ".gz") {
		gz, err := pgzip.NewReader(in)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		in = gz
	}
	var w datasetWire
	if err := gob.NewDecoder(in).Decode(&w); err != nil {
		return nil, err
	}
	ds := &Dataset{
		Genes:             w.Genes,
		Cells:             w.Cells,
		Counts:            wireToDense(w.Counts),
		Layer:             w.Layer,
		Meta:              w.Meta,
		HVG:               w.HVG,
		PCA:               wireToDense(w.PCA),
		VarianceExplained: w.VarianceExplained,
		UMAP:              wireToDense(w.UMAP),
	}
	if ds.Layer == "" {
		ds.Layer = LayerCounts
	}
	return ds, ds.check()
}

func loadDatasetFile(fnm string, stdin io.Reader) (*Dataset, error) {
	in, err := openInput(fnm, stdin)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	return ReadDataset(in, fnm)
}

func saveDatasetFile(fnm string, stdout io.Writer, ds *Dataset) error {
	out, err := openOutput(fnm, stdout)
	if err != nil {
		return err
	}
	if err = WriteDataset(out, fnm, ds); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
