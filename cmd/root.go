package cmd

import (
	"github.com/spf13/cobra"
	"video-splitter/config"
)

func Root(config *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "video-splitter",
		Short: "split uploaded videos into fixed-length segments",
	}
	rootCmd.AddCommand(server(config))
	rootCmd.AddCommand(sweep(config))
	return rootCmd
}
