package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"
	"github.com/srand/capataz/pkg/job"
	"github.com/srand/capataz/pkg/jobs"
	"github.com/srand/capataz/pkg/log"
)

var partitionCmd = &cobra.Command{
	Use:   "partition",
	Short: "Search partitions of a list of numbers into two lists of equal sum",
	Run: func(cmd *cobra.Command, args []string) {
		numbers, _ := cmd.Flags().GetInt64Slice("numbers")
		batch, _ := cmd.Flags().GetInt("batch")

		withServer(func(ctx context.Context, srv *server) error {
			data, _ := json.Marshal(numbers)
			log.Infof("Numbers are %s", data)

			err := srv.coordinator.ScheduleAll(ctx, jobs.Partitions(numbers), batch, func(_ job.Spec, handle *job.Handle) {
				handle.OnSettle(func(value json.RawMessage, err error) {
					if err != nil {
						return
					}

					var partition jobs.Partition
					if err := json.Unmarshal(value, &partition); err != nil || partition.Diff != 0 {
						return
					}

					list0, _ := json.Marshal(partition.List0)
					list1, _ := json.Marshal(partition.List1)
					log.Infof("Partition found (#%d): %s and %s", partition.Partition, list0, list1)
				})
			})
			if err != nil {
				return err
			}

			log.Info("Finished.")
			return nil
		})
	},
}

func init() {
	partitionCmd.Flags().Int64Slice("numbers", []int64{61, 83, 88, 94, 121, 281, 371, 486, 554, 734, 771, 854, 885, 1003}, "Numbers to partition")
	partitionCmd.Flags().IntP("batch", "b", 1000, "Maximum number of outstanding jobs")
	rootCmd.AddCommand(partitionCmd)
}
