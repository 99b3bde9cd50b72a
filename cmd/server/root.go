package main

import (
	"github.com/npezzotti/go-jobboard/internal/config"
	"github.com/npezzotti/go-jobboard/internal/logging"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the state shared by every subcommand.
type app struct {
	v          *viper.Viper
	log        *logrus.Logger
	configFile string
}

func newApp() *app {
	a := &app{v: viper.New()}
	config.SetDefaults(a.v)
	return a
}

func newRootCommand() *cobra.Command {
	return newApp().command()
}

func (a *app) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "jobboard",
		Short:         "Realtime chat and notification service for the job board",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.configFile != "" {
				a.v.SetConfigFile(a.configFile)
				if err := a.v.ReadInConfig(); err != nil {
					return errors.Wrap(err, "read config")
				}
			}

			level := a.v.GetString("log.level")
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				level = logrus.DebugLevel.String()
			}

			logger, err := logging.New(level, a.v.GetBool("log.json"))
			if err != nil {
				return errors.Wrap(err, "configure logging")
			}
			a.log = logger
			return nil
		},
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "make output more verbose")
	cmd.PersistentFlags().StringVar(&a.configFile, "config", "", "config file")
	cmd.PersistentFlags().String("dsn", "", "database connection URL")
	a.v.BindPFlag("database.dsn", cmd.PersistentFlags().Lookup("dsn"))

	cmd.AddCommand(
		newServeCommand(a),
		newMigrateCommand(a),
		newReconcileCommand(a),
	)
	return cmd
}
