package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/srand/capataz/pkg/log"
	"github.com/srand/capataz/pkg/utils"
)

var config = &Config{}

var rootCmd = &cobra.Command{
	Use:   "capataz",
	Short: "Capataz job distribution coordinator",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		verbosity, err := cmd.Flags().GetCount("verbose")
		if err != nil {
			panic(err)
		}

		switch {
		case verbosity >= 2:
			log.SetLevel(log.TraceLevel)
		case verbosity >= 1:
			log.SetLevel(log.DebugLevel)
		}

		v := viper.GetViper()
		v.SetEnvPrefix("capataz")
		v.AutomaticEnv()

		v.SetConfigName("capataz.yaml")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/capataz/")
		v.AddConfigPath("$HOME/.config/capataz")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			log.Debug("No configuration file loaded:", err)
		}

		SetDefaults(v)

		if err := utils.UnmarshalConfig(v, config); err != nil {
			log.Fatal(err)
		}

		if config.LogFile != "" {
			file, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
			if err != nil {
				log.Fatal(err)
			}
			log.Default().Tee(file)
		}

		if err := config.Validate(); err != nil {
			log.Fatal(err)
		}

		config.Log(log.Default())
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceP("listen-http", "l", []string{"tcp://:8080"}, "Addresses to listen on for HTTP connections")
	rootCmd.PersistentFlags().String("log-file", "", "Copy log output to file")
	rootCmd.PersistentFlags().StringP("store", "s", "memory", "Job store type (memory, file, sqlite)")
	rootCmd.PersistentFlags().CountP("verbose", "v", "Verbosity (repeatable)")

	viper.BindPFlag("listen_http", rootCmd.PersistentFlags().Lookup("listen-http"))
	viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("store.type", rootCmd.PersistentFlags().Lookup("store"))
}

// Returns a context cancelled on interrupt or termination.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
