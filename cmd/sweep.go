package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"video-splitter/config"
	server2 "video-splitter/server"
)

func sweep(config *config.Config) *cobra.Command {
	var maxAge time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "delete expired uploads and archives once, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxAge > 0 {
				config.Retention.MaxAge = maxAge
			}
			return server2.SweepOnce(config)
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "override the retention window")
	return cmd
}
