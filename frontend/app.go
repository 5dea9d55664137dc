package main

import (
	"context"
	"flag"
	"github.com/gorilla/mux"
	"github.com/kpaschen/crosswell/explorer"
	"github.com/kpaschen/crosswell/lib"
	"github.com/kpaschen/crosswell/lib/loader"
	"github.com/kpaschen/crosswell/lib/settings"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/version"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"time"
)

type config struct {
	listenAddress  string
	metricsAddress string
	staticDir      string
}

func main() {
	var listenAddr string
	var metricsAddr string
	var staticDir string

	flag.StringVar(&listenAddr, "listen-address", ":3000", "The address the heatmap api binds to.")
	flag.StringVar(&metricsAddr, "metrics-address", ":9203", "The address the metrics endpoint binds to.")
	flag.StringVar(&staticDir, "static", "", "A directory with the web client. Served at / when set.")
	flags := settings.RegisterFlags(flag.CommandLine)
	flag.Parse()

	cfg := &config{
		listenAddress:  listenAddr,
		metricsAddress: metricsAddr,
		staticDir:      staticDir,
	}

	inversionConfig, err := flags.Settings(flag.Args())
	if err != nil {
		log.Fatalf("bad arguments: %v", err)
	}
	log.Printf("starting heatmap service, %s\n", version.Info())

	// The decomposition is computed once here and shared by all requests.
	g, d, err := loader.Load(inversionConfig)
	if err != nil {
		log.Fatalf("failed to load operator: %v", err)
	}
	pipeline, err := lib.NewPipeline(inversionConfig, g, d)
	if err != nil {
		log.Fatalf("failed to set up inversion: %v", err)
	}

	heatmaps := explorer.NewHeatmapExplorer(pipeline)
	if err = heatmaps.Initialize(); err != nil {
		log.Fatalf("failed to initialize results directory: %v", err)
	}

	router := mux.NewRouter().StrictSlash(true)
	heatmaps.Routes(router)
	if cfg.staticDir != "" {
		router.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.staticDir)))
	}

	http.Handle("/metrics", promhttp.Handler())
	go http.ListenAndServe(cfg.metricsAddress, nil)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	server := &http.Server{
		Addr:    cfg.listenAddress,
		Handler: router,
	}
	go func() {
		log.Printf("heatmap service listening on port %s\n", cfg.listenAddress)
		if err := server.ListenAndServe(); err != nil {
			if err != http.ErrServerClosed {
				log.Fatal(err)
			}
		}
	}()

	<-stop
	log.Println("heatmap service shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal(err)
	}
}
