/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package main

import (
	"github.com/sirupsen/logrus"
	"os"
)

// CLI binary to explore cdi deployment manifests
//	Supported commands: (see "-h" for all options)
//		validate [manifest]
//		resolve [manifest] --type T [--qualifier Q]...
//		observers [manifest] --type T[,Super...] [--qualifier Q]...
//		simulate [manifest] --bean ID [--requests N] [--session S]
//		describe [manifest] [--dump]
//	Global flags:
//		--config [yaml config of the deployment]
//		--log_level [<error|info|debug> level and above should be logged]

func main() {
	if err := newCLI(os.Stdout).Exec(os.Args[1:]); err != nil {
		logrus.Fatal("Error running cdictl ", err)
	}
}
