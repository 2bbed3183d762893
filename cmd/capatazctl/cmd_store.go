package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/srand/capataz/pkg/store"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Display the jobs in the coordinator store",
	Run: func(cmd *cobra.Command, args []string) {
		var status store.Status
		GetJSON("store.json", nil, &status)

		fmt.Printf("Jobs scheduled: %d\n", status.Count)
		fmt.Printf("Pending:  %d\n", len(status.Pending))
		fmt.Printf("Assigned: %d\n", len(status.Assigned))
		if len(status.Resolved) > 0 || len(status.Rejected) > 0 {
			fmt.Printf("Resolved: %d\n", len(status.Resolved))
			fmt.Printf("Rejected: %d\n", len(status.Rejected))
		}

		if verbose, _ := cmd.Flags().GetBool("ids"); verbose {
			fmt.Println()
			fmt.Println("Pending:", status.Pending)
			fmt.Println("Assigned:", status.Assigned)
		}
	},
}

func init() {
	storeCmd.Flags().Bool("ids", false, "List job ids")
	rootCmd.AddCommand(storeCmd)
}
