package main

import (
	"github.com/spf13/cobra"
	"github.com/srand/capataz/pkg/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve jobs scheduled by other programs",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		srv, err := newServer(config)
		if err != nil {
			log.Fatal(err)
		}

		if err := srv.Run(ctx); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
