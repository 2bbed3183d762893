package main

import (
	"fmt"
	"math"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/srand/capataz/pkg/stats"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display coordinator statistics",
	Run: func(cmd *cobra.Command, args []string) {
		query := url.Values{}
		if key, _ := cmd.Flags().GetString("key"); key != "" {
			query.Set("key", key)
		}

		var result []*stats.Statistic
		GetJSON("stats.json", query, &result)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEYS\tCOUNT\tAVERAGE\tSTDDEV\tMIN\tMAX")
		for _, stat := range result {
			fmt.Fprintf(w, "%s\t%g\t%.3f\t%.3f\t%s\t%s\n",
				stat.Keys.ID(),
				stat.Count,
				stat.Average(),
				stat.StdDev(),
				bound(stat.Min),
				bound(stat.Max))
		}
		w.Flush()
	},
}

func bound(value float64) string {
	if math.IsInf(value, 0) {
		return "-"
	}
	return fmt.Sprintf("%g", value)
}

func init() {
	statsCmd.Flags().StringP("key", "k", "", "Only statistics with this key")
	rootCmd.AddCommand(statsCmd)
}
