// Command slink-server is a thin daemon front-end around pkg/server: it
// loads a static inventory from an INI file, wires it into a
// config.StaticBackend, and serves SeedLink clients until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/damb/slink/pkg/config"
	"github.com/damb/slink/pkg/server"
)

func main() {
	addr := flag.String("addr", ":18000", "address to listen on for SeedLink clients")
	metricsAddr := flag.String("metrics-addr", "", "address to serve Prometheus metrics on (disabled if empty)")
	inventoryPath := flag.String("inventory", "", "path to the INI station/stream inventory file")
	tick := flag.Duration("tick", time.Second, "synthetic real-time record interval")
	software := flag.String("software", "slink (damb/slink)/1.0", "software string reported in HELLO banners")
	organization := flag.String("organization", "Demo Data Center", "data-center description reported in HELLO banners")
	logLevel := flag.String("log-level", "info", "logrus level: debug, info, warn, error")
	flag.Parse()

	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -log-level %q: %v\n", *logLevel, err)
		os.Exit(1)
	}
	log.SetLevel(level)

	if *inventoryPath == "" {
		log.Fatal("-inventory is required")
	}
	stations, err := config.LoadInventory(*inventoryPath)
	if err != nil {
		log.Fatalf("failed to load inventory %s: %v", *inventoryPath, err)
	}
	backend := config.NewStaticBackend(stations, *tick)

	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("shutting down")
		cancel()
	}()

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.Infof("metrics listening on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				log.Errorf("metrics server failed: %v", err)
			}
		}()
	}

	identity := server.Identity{Software: *software, Organization: *organization}
	log.Infof("SeedLink server listening on %s (%d stations loaded)", *addr, len(stations))
	if err := server.Listen(ctx, *addr, backend, identity); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("server exited: %v", err)
	}
	log.Info("graceful shutdown complete")
}
