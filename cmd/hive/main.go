// Package main provides the hive binary: it assembles rigs from blueprint
// files and runs the build stages on an in-memory scene.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zeusync/hive/internal/injector"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "hive"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var opts injector.Options

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Modular rig builder",
		Long: `Hive assembles character rigs from components.

A blueprint file lists the components of a rig and their parents. hive
creates them, runs the build stages (guides, deform, rig, polish) and
prints the resulting component definitions.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error, silent)")

	cmd.AddCommand(
		buildCmd(&opts),
		validateCmd(&opts),
		componentsCmd(&opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)
	return cmd
}

// initApp wires the application for one command run.
func initApp(cmd *cobra.Command, opts *injector.Options) (*injector.App, func(), error) {
	app, err := injector.InitializeApp(cmd.Context(), *opts)
	if err != nil {
		return nil, nil, err
	}
	return app, func() { _ = app.Logger.Sync() }, nil
}
