package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/scheduler"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/server"
)

const (
	schedulerResolution = 30 * time.Second
	shutdownTimeout     = 10 * time.Second
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dialogue over HTTP",
	Long: `Index the catalog and serve the chat API under /api until interrupted.

Examples:
  chatbot serve
  chatbot serve --port 9000 -d /path/to/catalog`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "listen port (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	log := GetLogger()
	if servePort != "" {
		cfg.Server.Port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, GetRootDir(), log, nil)
	if err != nil {
		return err
	}
	defer a.Close()
	log.Info("cli", "catalog ready", map[string]interface{}{
		"documents":     a.indexed.Documents,
		"from_snapshot": a.indexed.FromSnapshot,
	})

	sched := scheduler.New(schedulerResolution, log)
	sched.Add(scheduler.Job{Name: "cache", Interval: cfg.Cache.SweepInterval, Fn: a.cache.Sweep})
	sched.Add(scheduler.Job{Name: "sessions", Interval: cfg.Cache.SweepInterval, Fn: a.sessions.Sweep})
	sched.Add(scheduler.Job{Name: "ratelimit", Interval: cfg.RateLimit.SweepInterval, Fn: a.limiter.Sweep})
	sched.Start(ctx)
	defer sched.Stop()

	srv := server.New(cfg.Server, a.chat, log)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
