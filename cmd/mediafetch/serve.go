package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/totegamma/mediafetch/internal/present/rest"
	authmw "github.com/totegamma/mediafetch/internal/present/rest/middleware"
	"github.com/totegamma/mediafetch/internal/service"
)

const defaultListen = ":8000"

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long:  "Serves item processing, stored item lookup, destination preview and the completion event stream over HTTP.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "Listen address (overrides server.listen)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	listen := serveListen
	if listen == "" {
		listen = a.config.Server.Listen
	}
	if listen == "" {
		listen = defaultListen
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if a.config.Server.EnableTrace {
		e.Use(otelecho.Middleware("mediafetch"))
	}

	auth := authmw.NewAuthMiddleware(service.NewAuthService(a.config.Server.APIToken))

	var events rest.EventSource
	if a.signal != nil {
		events = a.signal
	}
	handler := rest.NewHandler(a.item, events, a.logger)
	handler.RegisterRoutes(e, auth.RequireToken)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("shutdown failed", "error", err)
		}
	}()

	a.logger.Info("listening", "addr", listen, "auth", a.config.Server.APIToken != "")
	if err := e.Start(listen); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
