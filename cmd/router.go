package main

import (
	"net/http"

	"github.com/manifold-proxy/manifold/internal/handler"
	"github.com/manifold-proxy/manifold/internal/metrics"
)

func setupRouter(proxyHandler *handler.ProxyHandler, collector *metrics.Collector, strategy string) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", proxyHandler.ServeHTTP)
	mux.HandleFunc("/metrics", collector.Handler(strategy))

	return mux
}
