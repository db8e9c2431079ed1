// cmd/bulk-mailer/main.go
// 批次發信入口

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"bulk-mailer/internal/app"
	"bulk-mailer/internal/config"
	"bulk-mailer/internal/logger"
	"bulk-mailer/internal/services"
)

var rootCmd = &cobra.Command{
	Use:           "bulk-mailer",
	Short:         "Send one daily batch of newsletter emails",
	RunE:          runSend,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send up to DAILY_SEND_LIMIT emails and exit",
	RunE:  runSend,
}

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect or reset the recipient file checkpoint",
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved byte offset",
	RunE:  runCheckpointShow,
}

var checkpointResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Start the recipient file from the beginning on the next run",
	RunE:  runCheckpointReset,
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured providers in rotation order",
	RunE:  runProviders,
}

var statusCmd = &cobra.Command{
	Use:   "status [email]",
	Short: "Show the last cached send status of a recipient",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	checkpointCmd.AddCommand(checkpointShowCmd)
	checkpointCmd.AddCommand(checkpointResetCmd)

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(checkpointCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, closer, err := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg, log)
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close connections")
		}
	}()

	// 任何終止狀態都以 0 結束，只有啟動錯誤才回傳 error
	if _, err := a.Run(ctx); err != nil {
		log.Error().Err(err).Msg("batch could not start")
		return err
	}
	return nil
}

func runCheckpointShow(cmd *cobra.Command, args []string) error {
	a, cleanup := newToolApp()
	defer cleanup()

	store, err := a.Checkpoint()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), store.Load(cmd.Context()))
	return nil
}

func runCheckpointReset(cmd *cobra.Command, args []string) error {
	a, cleanup := newToolApp()
	defer cleanup()

	store, err := a.Checkpoint()
	if err != nil {
		return err
	}
	if err := store.Reset(cmd.Context()); err != nil {
		return fmt.Errorf("failed to reset checkpoint: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "checkpoint reset")
	return nil
}

func runProviders(cmd *cobra.Command, args []string) error {
	a, cleanup := newToolApp()
	defer cleanup()

	providers, err := a.Providers()
	if err != nil {
		return err
	}
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, " -> "))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, cleanup := newToolApp()
	defer cleanup()

	status, err := a.Status(cmd.Context(), args[0])
	if errors.Is(err, services.ErrStatusNotFound) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: no cached status\n", args[0])
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s via %s at %s (run %s)\n",
		status.Email, status.Status, status.Provider, status.LastUpdated, status.RunID)
	if status.ErrorMessage != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "  error: %s\n", status.ErrorMessage)
	}
	return nil
}

func newToolApp() (*app.App, func()) {
	cfg := config.Load()
	log, closer, err := logger.New(cfg.LogLevel, cfg.LogFormat, "")
	if err != nil {
		log = logger.Nop()
	}
	a := app.New(cfg, log)
	return a, func() {
		a.Close()
		if closer != nil {
			closer.Close()
		}
	}
}
