package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/cuemby/gatewayd/pkg/config"
	"github.com/cuemby/gatewayd/pkg/gateway"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway and serve the Connection Registrar",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringP("config", "c", "gatewayd.yaml", "Path to the gateway YAML config file")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gw, err := gateway.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}

	return gw.Run(ctx)
}
