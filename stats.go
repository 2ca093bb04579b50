package nucleus

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"sort"
)

type statscmd struct{}

func (cmd *statscmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "-", "input snapshot `file`")
	outputFilename := flags.String("o", "-", "output json `file`")
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
	bufw := bufio.NewWriter(output)
	err = cmd.doStats(ds, bufw)
	if err != nil {
		output.Close()
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
	return 0
}

func (cmd *statscmd) doStats(ds *Dataset, output io.Writer) error {
	var ret struct {
		Genes             int
		Cells             int
		Layer             string
		HVG               int                `json:",omitempty"`
		PCAComponents     int                `json:",omitempty"`
		VarianceExplained []float64          `json:",omitempty"`
		ClusterSizes      map[string]int     `json:",omitempty"`
		LabelCounts       map[string]int     `json:",omitempty"`
		TotalCounts       map[string]float64 `json:",omitempty"`
	}
	ret.Genes = len(ds.Genes)
	ret.Cells = len(ds.Cells)
	ret.Layer = ds.Layer
	ret.HVG = len(ds.HVG)
	if ds.PCA != nil {
		_, ret.PCAComponents = ds.PCA.Dims()
	}
	ret.VarianceExplained = ds.VarianceExplained

	clusters := map[string]int{}
	labels := map[string]int{}
	totals := make([]float64, 0, len(ds.Cells))
	for _, cell := range ds.Cells {
		ci := ds.Meta.Info[cell]
		if ci.Cluster >= 0 {
			clusters[fmt.Sprintf("%d", ci.Cluster)]++
		}
		if ci.Label != "" {
			labels[ci.Label]++
		}
		totals = append(totals, ci.TotalCounts)
	}
	if len(clusters) > 0 {
		ret.ClusterSizes = clusters
	}
	if len(labels) > 0 {
		ret.LabelCounts = labels
	}
	sort.Float64s(totals)
	if n := len(totals); n > 0 && totals[n-1] > 0 {
		ret.TotalCounts = map[string]float64{
			"min":    totals[0],
			"median": totals[n/2],
			"max":    totals[n-1],
		}
	}

	j, err := json.MarshalIndent(ret, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(output, string(j))
	return err
}
