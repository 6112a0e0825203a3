package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/watermodel/msx"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation to completion and write its report",
		RunE:  runRun,
	}
	cmd.Flags().String("hyd", "", "hydraulics file (required)")
	cmd.Flags().String("chem", "", "chemistry input file (required)")
	cmd.Flags().String("rpt", "report.txt", "report output path")
	cmd.Flags().String("out", "", "durable binary output path (optional)")
	cmd.MarkFlagRequired("hyd")
	cmd.MarkFlagRequired("chem")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	hyd := viper.GetString("hyd")
	chemFile := viper.GetString("chem")
	rpt := viper.GetString("rpt")
	out := viper.GetString("out")

	log := logrus.WithFields(logrus.Fields{"hyd": hyd, "chem": chemFile})
	log.Info("opening project")

	p, err := msx.Open(hyd, chemFile, rpt)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.SolveH(); err != nil {
		return err
	}
	if err := p.Init(out != ""); err != nil {
		return err
	}

	for {
		_, tleft, err := p.Step()
		if err != nil {
			return err
		}
		if tleft <= 0 {
			break
		}
	}

	if out != "" {
		if err := p.SaveOutFile(out); err != nil {
			return err
		}
	}
	if err := p.Report(); err != nil {
		return err
	}
	log.Info("simulation complete")
	return nil
}
