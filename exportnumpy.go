package nucleus

import (
	"bufio"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

type exportNumpy struct{}

func (cmd *exportNumpy) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "-", "input snapshot `file`")
	outputFilename := flags.String("o", "-", "output .npy `file`")
	source := flags.String("source", "pca", "matrix to export: pca, umap, or counts")
	labelsFilename := flags.String("output-labels", "", "also write row/column labels to csv `file`")
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

	var m *mat.Dense
	switch *source {
	case "pca":
		m = ds.PCA
	case "umap":
		m = ds.UMAP
	case "counts":
		m = ds.Counts
	default:
		err = fmt.Errorf("invalid source %q", *source)
		return 2
	}
	if m == nil {
		err = fmt.Errorf("snapshot has no %s matrix", *source)
		return 1
	}

	rows, cols := m.Dims()
	out := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out[i*cols+j] = m.At(i, j)
		}
	}

	output, err := openOutput(*outputFilename, stdout)
	if err != nil {
		return 1
	}
	defer output.Close()
	bufw := bufio.NewWriter(output)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return 1
	}
	npw.Shape = []int{rows, cols}
	log.Printf("writing numpy: %d rows, %d cols", rows, cols)
	err = npw.WriteFloat64(out)
	if err != nil {
		return 1
	}
	err = bufw.Flush()
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}

	if *labelsFilename != "" {
		err = writeNumpyLabels(*labelsFilename, ds, *source)
		if err != nil {
			return 1
		}
	}
	return 0
}

func writeNumpyLabels(fnm string, ds *Dataset, source string) error {
	f, err := os.OpenFile(fnm, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	defer f.Close()
	cw := csv.NewWriter(f)
	if source == "counts" {
		// counts rows are genes; embeddings rows are cells
		for i, g := range ds.Genes {
			if err := cw.Write([]string{fmt.Sprintf("%d", i), g}); err != nil {
				return err
			}
		}
	} else {
		for i, c := range ds.Cells {
			if err := cw.Write([]string{fmt.Sprintf("%d", i), c}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return f.Close()
}
