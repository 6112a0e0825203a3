// Command msxrun drives a multi-species water-quality simulation from
// the command line: given a hydraulics file and a chemistry input file,
// it steps the reaction/transport engine to completion and writes the
// textual report.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.WithError(err).Error("msxrun failed")
		os.Exit(1)
	}
}
