package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-signup/config"
	"github.com/goliatone/go-signup/internal/logging"
	"github.com/goliatone/go-signup/server"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		latency    time.Duration
	)

	cmd := &cobra.Command{
		Use:          "signup-server",
		Short:        "Account service for the signup client",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("latency") {
				cfg.Server.SimulatedLatency = latency
			}

			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address")
	cmd.Flags().DurationVar(&latency, "latency", 0, "upper bound of the simulated API latency")

	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	lgr := logging.New("server", cfg.Log)

	if cfg.Server.Debug {
		dumpConfig(os.Stdout, cfg)
	}

	httpSrv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:               "signup-server",
			DisableStartupMessage: true,
			EnablePrintRoutes:     cfg.Server.Debug,
		}))
	})

	httpSrv.Router().WithLogger(lgr.GetLogger("router"))

	srv, err := server.New(ctx, server.Config{
		DSN:          cfg.Server.DSN,
		PasswordCost: cfg.Server.PasswordCost,
		MaxLatency:   cfg.Server.SimulatedLatency,
		Debug:        cfg.Server.Debug,
	}, lgr.GetLogger("http"), server.WithHTTPServer(httpSrv))
	if err != nil {
		lgr.Error("failed to start account service", "error", err)
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-WaitExitSignal():
		lgr.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func dumpConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "============")
	fmt.Fprintln(w, print.MaybePrettyJSON(cfg))
	fmt.Fprintln(w, "============")
}

func WaitExitSignal() <-chan os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return ch
}
