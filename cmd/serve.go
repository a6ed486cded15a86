package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/USEPA/ATtILA2-sub000/internal/api"
)

var (
	servePort   int
	serveScheme schemeFlags
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the classification and proportion calculations over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		doc, err := serveScheme.load(ctx, newLocalizer())
		if err != nil {
			return err
		}

		handler := api.New(doc, api.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Defaults: api.Defaults{
				MaxFieldLength:   cfg.Run.MaxFieldLength,
				OverlapTolerance: cfg.Run.OverlapTolerance,
				Concurrency:      cfg.Run.Concurrency,
				UnitField:        cfg.Tabulation.UnitField,
			},
		}).Routes()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveScheme.register(serveCmd.Flags())
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
