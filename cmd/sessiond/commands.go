package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/kvann/sessiond"
	"github.com/kvann/sessiond/internal/logger"
)

func createRunCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the session-host supervision lifecycle",
		Long: "Clears stale display artifacts, starts the session manager and " +
			"display server, waits for the display to become usable, and " +
			"optionally runs the solver worker in the foreground. Blocks until " +
			"the worker exits or a termination signal arrives.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSupervisor(cmd.Context(), flags.ConfigPath)
		},
	}
}

func runSupervisor(ctx context.Context, configPath string) error {
	cfg, err := sessiond.LoadConfig(configPath)
	if err != nil {
		return err
	}

	log := logger.New(cfg.Debug)
	slog.SetDefault(log)

	if err := sessiond.RegisterMetricsDefault(); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	opts := []sessiond.Option{sessiond.WithLogger(log)}
	if cfg.HistoryDSN != "" {
		sink, err := sessiond.NewHistorySink(cfg.HistoryDSN)
		if err != nil {
			// best-effort: supervision continues without history
			log.Warn("history sink unavailable, continuing", "dsn", cfg.HistoryDSN, "error", err)
		} else {
			opts = append(opts, sessiond.WithSink(sink))
		}
	}

	sup := sessiond.New(cfg, opts...)

	if cfg.Listen != "" {
		srv, err := sessiond.NewHTTPServer(cfg.Listen, "", sup)
		if err != nil {
			return fmt.Errorf("start admin server: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
		log.Info("admin server listening", "addr", cfg.Listen)
	}

	return sup.Run(ctx)
}

func createStatusCommand(flags *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query a running supervisor's status over its admin API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := fetchStatus(flags.APIUrl, flags.APITimeout)
			if err != nil {
				return err
			}
			cmd.Println(body)
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.APIUrl, "api-url", "http://127.0.0.1:8901", "admin API base URL")
	cmd.Flags().DurationVar(&flags.APITimeout, "api-timeout", 5*time.Second, "request timeout")
	return cmd
}

func fetchStatus(apiURL string, timeout time.Duration) (string, error) {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(apiURL + "/status")
	if err != nil {
		return "", fmt.Errorf("query %s: %w", apiURL, err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status endpoint returned %d: %s", resp.StatusCode, string(b))
	}
	return string(b), nil
}
