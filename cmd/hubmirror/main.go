/*
This command provides the executable version of the GitHub mirror.

For the list of command line options, run:

	hubmirror -help

The options can be provided in a YAML file, too, using the same names as
the flags:

	hubmirror -config-file mirror.yaml

The flags set on the command line take precedence over the file. When
-use-proxy is set and no -proxy is provided, the outbound proxy is taken
from the HUBMIRROR_PROXY environment variable.

For details about the mirror, please see the documentation of the root
hubmirror package.
*/
package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/zalando/hubmirror"
	"github.com/zalando/hubmirror/config"
)

func main() {
	cfg := config.NewConfig()
	if err := cfg.Parse(); err != nil {
		log.Fatalf("Error processing config: %s", err)
	}

	log.SetLevel(cfg.ApplicationLogLevel)

	if err := hubmirror.Run(cfg.ToOptions()); err != nil {
		log.Fatal(err)
	}
}
