// Command percolator is the single binary entry point: it loads
// configuration, opens the checkpoint store, constructs the service
// facade, optionally serves the HTTP/WebSocket API in the background,
// and hands off to the cobra command tree for everything else
// (margin, matcher, trade, liquidity, liquidation, insurance, crisis,
// keeper).
package main

import (
	"log"
	"os"

	"github.com/percmarket/percolator/params"
	"github.com/percmarket/percolator/pkg/api"
	"github.com/percmarket/percolator/pkg/cli"
	"github.com/percmarket/percolator/pkg/service"
	"github.com/percmarket/percolator/pkg/storage"
	"github.com/percmarket/percolator/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = cfg.Service.LogPath
	}
	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	store, err := storage.NewPebbleStore(cfg.Service.DataDir)
	if err != nil {
		log.Fatalf("open checkpoint store: %v", err)
	}
	defer store.Close()

	svc, err := service.New(cfg, store, logger)
	if err != nil {
		log.Fatalf("construct service: %v", err)
	}

	if os.Getenv("ENABLE_API") == "true" {
		srv := api.NewServer(svc, logger)
		go func() {
			if err := srv.Start(cfg.Service.ListenAddr); err != nil {
				logger.Sugar().Errorw("api_server_stopped", "error", err)
			}
		}()
	}

	root := cli.NewRootCommand(svc)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
