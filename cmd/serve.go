package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brightline/composer/internal/cost"
	"github.com/brightline/composer/internal/grouping"
	"github.com/brightline/composer/internal/pools"
	"github.com/brightline/composer/internal/server"
	"github.com/brightline/composer/internal/usage"
	"github.com/brightline/composer/pkg/anthropic"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the keyword pipeline HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		client := anthropic.NewClient(cfg.Anthropic.Key)
		gen := grouping.NewClaudeGenerator(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens, cfg.Anthropic.RequestsPerSec)
		ledger := usage.NewLedger(st, cost.NewCalculator(cfg.Pricing))
		planner := grouping.NewPlanner(st, gen, ledger)
		poolSvc := pools.NewService(st)

		srvHandler := server.New(poolSvc, planner, cfg.Defaults.OrganizationID, cfg.Server.AllowedOrigins)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: srvHandler.Handler(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
