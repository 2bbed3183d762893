package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/spf13/cobra"
	"github.com/srand/capataz/pkg/job"
	"github.com/srand/capataz/pkg/jobs"
	"github.com/srand/capataz/pkg/log"
	"github.com/srand/capataz/pkg/stats"
)

var piCmd = &cobra.Command{
	Use:   "pi",
	Short: "Estimate pi with the connected drudgers",
	Run: func(cmd *cobra.Command, args []string) {
		radius, _ := cmd.Flags().GetInt64("radius")
		jobCount, _ := cmd.Flags().GetInt("jobs")
		batch, _ := cmd.Flags().GetInt("batch")
		repetitions, _ := cmd.Flags().GetInt("repetitions")

		withServer(func(ctx context.Context, srv *server) error {
			c := srv.coordinator

			for repetition := 1; repetition <= repetitions; repetition++ {
				var mu sync.Mutex
				pi := 0.0
				tags := map[string]string{"repetition": fmt.Sprintf("%03d", repetition)}

				err := c.ScheduleAll(ctx, jobs.PiSlices(radius, jobCount, tags), batch, func(spec job.Spec, handle *job.Handle) {
					handle.OnSettle(func(value json.RawMessage, err error) {
						if err != nil {
							c.Statistics().Add(stats.Keys{"key": "rejected_jobs", "error": err.Error()}.With(spec.Tags), 1, nil)
							return
						}

						var slice float64
						if err := json.Unmarshal(value, &slice); err != nil {
							log.Warnf("Unexpected result %s: %v", value, err)
							return
						}

						mu.Lock()
						pi += slice
						mu.Unlock()
					})
				})
				if err != nil {
					return err
				}

				mu.Lock()
				estimationError := math.Abs(math.Pi - pi)
				mu.Unlock()

				c.Statistics().Add(stats.Keys{"key": "estimation_error"}.With(tags), estimationError, nil)
				log.Infof("Repetition #%d finished. PI = %v (error %v).", repetition, pi, estimationError)

				// Every repetition adapts the task size from scratch.
				c.Statistics().Reset(stats.Keys{"key": "estimated_time"})
			}

			data, _ := json.MarshalIndent(c.Statistics(), "", "  ")
			log.Infof("Run statistics:\n%s", data)
			return nil
		})
	},
}

func init() {
	piCmd.Flags().Int64("radius", 1<<24, "Radius of the integrated circle")
	piCmd.Flags().IntP("jobs", "j", 1024, "Number of jobs per repetition")
	piCmd.Flags().IntP("batch", "b", 1000, "Maximum number of outstanding jobs")
	piCmd.Flags().IntP("repetitions", "r", 1, "Number of repetitions")
	rootCmd.AddCommand(piCmd)
}
