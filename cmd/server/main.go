package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"arenaserver/internal/api"
	"arenaserver/internal/config"
	"arenaserver/internal/engine"
	"arenaserver/internal/eventlog"
	"arenaserver/internal/transport"
)

func main() {
	if err := godotenv.Load("../.env"); err != nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("no .env file found, using environment variables only")
		}
	} else {
		log.Println("loaded environment from ../.env")
	}

	log.Println("================================")
	log.Println(" ARENASERVER")
	log.Println("================================")

	cfg := config.Load()

	eventLog := eventlog.New()
	if !cfg.Server.DisableEventLog {
		if err := eventLog.Start(cfg.Server.EventLogPath); err != nil {
			log.Printf("event log disabled: %v", err)
		} else {
			log.Printf("event log: %s", cfg.Server.EventLogPath)
		}
	}
	defer eventLog.Stop()

	eng := engine.New(cfg, eventLog)

	udpTransport, err := transport.Listen(cfg.Server.UDPPort)
	if err != nil {
		log.Fatalf("transport: %v", err)
	}
	defer udpTransport.Close()
	eng.SetSender(udpTransport)

	spectator := api.NewSpectatorHub()
	eng.SetSpectatorSink(spectator)

	go udpTransport.Serve(eng)
	log.Printf("udp transport listening on :%d", cfg.Server.UDPPort)

	staleness := time.NewTicker(10 * time.Second)
	defer staleness.Stop()
	go func() {
		for range staleness.C {
			eng.StalenessSweep()
		}
	}()

	if os.Getenv("DISABLE_DEBUG_SERVER") != "true" {
		debugCfg := api.ObservabilityConfig{Enabled: true, ListenAddr: "127.0.0.1:6060"}
		if err := api.StartDebugServer(debugCfg); err != nil {
			log.Printf("debug server disabled: %v", err)
		} else {
			log.Println("debug server listening on 127.0.0.1:6060")
		}
	}

	router := api.NewRouter(api.RouterConfig{
		Engine:    eng,
		EventLog:  eventLog,
		Spectator: spectator,
	})
	adminAddr := fmt.Sprintf(":%d", cfg.Server.AdminPort)
	adminServer := &http.Server{Addr: adminAddr, Handler: router}
	go func() {
		log.Printf("admin/metrics surface listening on %s", adminAddr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("admin server error: %v", err)
		}
	}()

	eng.Start()
	log.Printf("engine started at %d ticks/sec", cfg.Engine.TargetFPS)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("server ready, press Ctrl+C to stop")
	<-quit

	log.Println("shutting down...")
	eng.Stop()
	adminServer.Close()
	log.Println("goodbye")
}
