package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "msxrun",
		Short: "Run a multi-species water-quality simulation",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML/JSON/TOML, default ./msxrun.yaml)")
	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")

	runCmd := newRunCmd()
	root.AddCommand(runCmd)
	root.AddCommand(newVersionCmd())

	for _, fs := range []*pflag.FlagSet{root.PersistentFlags(), runCmd.Flags()} {
		bindFlagsToViper(fs)
	}
	return root
}

// bindFlagsToViper registers every flag in fs with viper under its own name,
// so a config file or MSXRUN_* environment variable can supply it without
// the caller passing it on the command line.
func bindFlagsToViper(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		viper.BindPFlag(f.Name, f)
	})
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("msxrun")
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix("MSXRUN")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	level, err := logrus.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}
