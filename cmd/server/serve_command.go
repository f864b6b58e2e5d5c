package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"intersection/server/internal/app"
	"intersection/server/internal/config"
)

func newServeCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the simulation server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, *configFlag)
		},
	}
}

func runServe(cmd *cobra.Command, configPath string) error {
	settings, exists, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
	if configPath != "" && !exists {
		logger.Printf("config file %s not found; using defaults", configPath)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.Run(ctx, app.Config{
		Settings: settings,
		Logger:   logger,
		Stdout:   cmd.OutOrStdout(),
	})
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
