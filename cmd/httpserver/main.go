package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ajna-inc/kanon-registry/cmd/flags"
	"github.com/ajna-inc/kanon-registry/cmd/registrycommon"
	"github.com/ajna-inc/kanon-registry/common"
	"github.com/ajna-inc/kanon-registry/httpserver"
	"github.com/ajna-inc/kanon-registry/metrics"
)

func main() {
	app := &cli.App{
		Name:    "registry-server",
		Usage:   "Serve the Kanon anoncreds and DID registry API",
		Version: common.Version,
		Flags: append([]cli.Flag{
			registrycommon.ConfigFlag,
			flags.ListenAddrFlag,
			flags.LogServiceFlagFn(common.PackageName),
		}, flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			metricsSrv, err := metrics.New(common.MetricsNamespace, cCtx.String(flags.MetricsAddrFlag.Name))
			if err != nil {
				logger.Error("Failed to create metrics server", "err", err)
				return err
			}

			stack, err := registrycommon.SetupStack(cCtx, logger, metricsSrv)
			if err != nil {
				logger.Error("Failed to set up registry", "err", err)
				return err
			}
			defer stack.Close()

			handler := httpserver.NewHandler(stack.Registry, stack.Registrar, stack.Resolver, metricsSrv, logger)
			cfg := flags.ConfigureServer(cCtx, logger, metricsSrv, stack.Config.Timeouts.Confirmation)
			server, err := httpserver.New(cfg, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop", "networks", stack.Pool.Networks())
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
