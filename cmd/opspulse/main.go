package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/talkincode/opspulse/config"
	"github.com/talkincode/opspulse/internal/app"
	"github.com/talkincode/opspulse/internal/metricsapi"
	"github.com/talkincode/opspulse/internal/webserver"
	"go.uber.org/zap"
)

var (
	configFile = flag.String("c", "/etc/opspulse.yml", "configuration file")
	initDb     = flag.Bool("initdb", false, "drop and recreate the database schema, then exit")
	showVer    = flag.Bool("v", false, "print version and exit")
)

var version = "dev"

func main() {
	flag.Parse()

	if *showVer {
		fmt.Println("opspulse", version)
		return
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if *initDb {
		application.InitDb()
		zap.L().Info("database initialized")
		return
	}

	server := webserver.NewWebServer(cfg, application.Recorder())
	api := metricsapi.NewMetricsAPI(
		application.Collector(),
		application.MetricsStore(),
		application.Summarizer(),
		application.CollectInterval(),
		metricsapi.WithOprLog(application.AddOprLog),
	)
	api.Register(server.ApiGroup())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		zap.L().Error("web server stopped", zap.Error(err))
	case sig := <-sigCh:
		zap.L().Info("shutting down", zap.String("signal", sig.String()))
	}
}
