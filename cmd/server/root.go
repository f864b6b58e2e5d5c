package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "intersection",
		Short:         "Authoritative shared-space server with a generative audio control plane",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configFlag)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newServeCommand(&configFlag))
	rootCmd.AddCommand(newRulesCommand(&configFlag))
	rootCmd.AddCommand(newSchemaCommand())
	rootCmd.AddCommand(newConfigCommand(&configFlag))
	return rootCmd
}
