// Package main is the Refinery API server entry point.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	rfclient "github.com/tinkerloft/refinery/internal/client"
	"github.com/tinkerloft/refinery/internal/metrics"
	"github.com/tinkerloft/refinery/internal/server"
)

func main() {
	c, err := rfclient.NewClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to Temporal: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}

	addr := os.Getenv("REFINERY_SERVER_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	s := server.New(c, nil, registry)
	log.Printf("Refinery server listening on %s", addr)
	if err := http.ListenAndServe(addr, s); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
