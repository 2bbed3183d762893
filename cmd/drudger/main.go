package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/srand/capataz/pkg/jobs"
	"github.com/srand/capataz/pkg/log"
	"github.com/srand/capataz/pkg/registry"
	"github.com/srand/capataz/pkg/utils"
	"github.com/srand/capataz/pkg/worker"
)

// Functions available to jobs.
func newRegistry() *registry.Registry {
	r := registry.New()
	jobs.Register(r)
	return r
}

var rootCmd = &cobra.Command{
	Use:   "drudger",
	Short: "Capataz job execution client",
	Run: func(cmd *cobra.Command, args []string) {
		verbosity, err := cmd.Flags().GetCount("verbose")
		if err != nil {
			log.Fatal(err)
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

		v.SetConfigName("drudger.yaml")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/capataz/")
		v.AddConfigPath("$HOME/.config/capataz")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			log.Debug("No configuration file loaded:", err)
		}

		// Load drudger configuration from file or environment.
		config, err := LoadConfig(v)
		if err != nil {
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

		platform := worker.NewPlatformWithDefaults()
		if err := platform.LoadConfig(v); err != nil {
			log.Fatal(err)
		}
		log.Info("Properties:")
		for _, prop := range platform.Properties {
			log.Infof("  %s=%s", prop.Key, prop.Value)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		client := worker.NewClient(&config.Config, newRegistry(), worker.WithPlatform(platform))
		if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatal(err)
		}
	},
}

var execCmd = &cobra.Command{
	Use:    worker.ExecCommand,
	Short:  "Execute one job read from stdin",
	Hidden: true,
	Run: func(cmd *cobra.Command, args []string) {
		// Stdout carries the outcome.
		log.SetLevel(log.WarningLevel)

		cpuTime, _ := cmd.Flags().GetDuration("cpu-time")
		memory, _ := cmd.Flags().GetString("memory-limit")

		limits := worker.Limits{CpuTime: cpuTime}
		if memory != "" {
			size, err := utils.ParseSize(memory)
			if err != nil {
				log.Fatal(err)
			}
			limits.Memory = utils.ByteSize(size)
		}

		if err := worker.ExecuteChild(context.Background(), newRegistry(), limits, os.Stdin, os.Stdout); err != nil {
			log.Fatal(err)
		}
	},
}

func main() {
	rootCmd.Flags().StringP("coordinator-uri", "c", "http://localhost:8080/capataz", "Coordinator URI")
	rootCmd.Flags().IntP("workers", "j", 0, "Number of drudgers (coordinator decides when 0)")
	rootCmd.Flags().StringP("isolation", "i", "", "Isolation policy override (isolated, inline, either)")
	rootCmd.Flags().StringSliceP("platform", "p", []string{}, "Platform property (repeatable)")
	rootCmd.Flags().String("log-file", "", "Copy log output to file")
	rootCmd.Flags().CountP("verbose", "v", "Verbosity (repeatable)")

	viper.BindPFlag("coordinator_uri", rootCmd.Flags().Lookup("coordinator-uri"))
	viper.BindPFlag("workers", rootCmd.Flags().Lookup("workers"))
	viper.BindPFlag("isolation", rootCmd.Flags().Lookup("isolation"))
	viper.BindPFlag("platform", rootCmd.Flags().Lookup("platform"))
	viper.BindPFlag("log_file", rootCmd.Flags().Lookup("log-file"))

	execCmd.Flags().Duration("cpu-time", 0, "CPU time limit")
	execCmd.Flags().String("memory-limit", "", "Address space limit")
	rootCmd.AddCommand(execCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
