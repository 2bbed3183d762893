package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/srand/capataz/pkg/protocol"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display the configuration handed out to drudgers",
	Run: func(cmd *cobra.Command, args []string) {
		var config protocol.ClientConfig
		GetJSON("config.json", nil, &config)

		fmt.Printf("Worker count:   %d (adjust to CPUs: %v)\n", config.WorkerCount, config.AdjustWorkerCount)
		fmt.Printf("Isolation:      %s\n", config.Isolation)
		fmt.Printf("Max retries:    %d\n", config.MaxRetries)
		fmt.Printf("Retry delays:   %v - %v\n", config.MinDelay.Duration(), config.MaxDelay.Duration())
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
