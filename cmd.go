// Copyright (C) The Nucleus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package nucleus

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var handler = multi{
	"version":   versionCommand{},
	"-version":  versionCommand{},
	"--version": versionCommand{},

	"import":           &importer{},
	"qc":               &qccmd{},
	"cluster":          &clustercmd{},
	"annotate":         &annotatecmd{},
	"subset":           &subsetcmd{},
	"merge-covariates": &mergecmd{},
	"diffexp":          &diffexpcmd{},
	"export":           &exporter{},
	"export-numpy":     &exportNumpy{},
	"stats":            &statscmd{},
}

func Main() {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		logrus.StandardLogger().Formatter = &logrus.TextFormatter{DisableTimestamp: true}
	}
	os.Exit(handler.RunCommand(os.Args[0], os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
