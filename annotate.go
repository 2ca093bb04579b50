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
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Annotate maps cluster ids to cell-type labels. The map itself is an
// external input, decided by inspecting marker-gene expression per
// cluster; this function only applies it. Clusters absent from the
// map keep whatever label they had. Applying the same map twice gives
// identical metadata.
func Annotate(meta *Metadata, labels map[int]string) *Metadata {
	out := meta.Clone()
	for _, ci := range out.Info {
		if lbl, ok := labels[ci.Cluster]; ok {
			ci.Label = lbl
		}
	}
	return out
}

// parseLabelMap parses "0=Astrocyte,3=Astrocyte,5=Microglia".
func parseLabelMap(s string) (map[int]string, error) {
	labels := map[int]string{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 || kv[1] == "" {
			return nil, fmt.Errorf("invalid cluster label %q (want id=label)", pair)
		}
		id, err := strconv.Atoi(kv[0])
		if err != nil || id < 0 {
			return nil, fmt.Errorf("invalid cluster id %q", kv[0])
		}
		labels[id] = kv[1]
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("empty label map")
	}
	return labels, nil
}

// readLabelMapFile parses a two-column delimited file of cluster id
// and label.
func readLabelMapFile(fnm string) (map[int]string, error) {
	f, err := os.Open(fnm)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	labels := map[int]string{}
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		sep := "\t"
		if !strings.Contains(text, "\t") {
			sep = ","
		}
		fields := strings.Split(text, sep)
		if len(fields) != 2 {
			return nil, &MalformedInputError{File: fnm, Line: line, Reason: "expected 2 fields (cluster id, label)"}
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil || id < 0 {
			return nil, &MalformedInputError{File: fnm, Line: line, Reason: fmt.Sprintf("invalid cluster id %q", fields[0])}
		}
		labels[id] = fields[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return labels, nil
}

type annotatecmd struct{}

func (cmd *annotatecmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	labelsArg := flags.String("labels", "", "cluster label `map`, e.g. 0=Astrocyte,3=Astrocyte")
	labelsFile := flags.String("labels-file", "", "two-column `file` of cluster id and label")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}

	var labels map[int]string
	switch {
	case *labelsArg != "" && *labelsFile != "":
		err = fmt.Errorf("-labels and -labels-file are mutually exclusive")
		return 2
	case *labelsArg != "":
		labels, err = parseLabelMap(*labelsArg)
	case *labelsFile != "":
		labels, err = readLabelMapFile(*labelsFile)
	default:
		err = fmt.Errorf("need -labels or -labels-file")
		return 2
	}
	if err != nil {
		return 2
	}

	ds, err := loadDatasetFile(*inputFilename, stdin)
	if err != nil {
		return 1
	}
	out := ds.shallowCopy()
	out.Meta = Annotate(ds.Meta, labels)

	counts := map[string]int{}
	for _, ci := range out.Meta.Info {
		if ci.Label != "" {
			counts[ci.Label]++
		}
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		log.Printf("labeled %d cells %s", counts[name], name)
	}

	err = saveDatasetFile(*outputFilename, stdout, out)
	if err != nil {
		return 1
	}
	return 0
}
