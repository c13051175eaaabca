package cmd

import (
	"github.com/spf13/cobra"
	"video-splitter/config"
	server2 "video-splitter/server"
)

func server(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "start http server and retention sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return server2.RunHttp(config)
		},
	}
}
