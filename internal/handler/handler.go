package handler

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/manifold-proxy/manifold/internal/loadbalancer"
	"github.com/manifold-proxy/manifold/internal/metrics"
)

// ProxyHandler routes each request to the worker chosen by the balancer and
// streams the response back.
type ProxyHandler struct {
	logger    *slog.Logger
	balancer  loadbalancer.LoadBalancer
	collector *metrics.Collector
}

func NewProxyHandler(logger *slog.Logger, balancer loadbalancer.LoadBalancer, collector *metrics.Collector) *ProxyHandler {
	return &ProxyHandler{
		logger:    logger,
		balancer:  balancer,
		collector: collector,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientIP := h.balancer.ExtractIP(r, peerAddr(r))

	h.logger.Info("Received request",
		slog.String("from", clientIP.String()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("proto", r.Proto),
		slog.String("host", r.Host),
		slog.String("user_agent", r.UserAgent()))

	next := h.balancer.GetTarget(clientIP)

	h.collector.Emit(metrics.Event{
		Type:      metrics.EventRequestReceived,
		Timestamp: time.Now(),
		Target:    next.Addr().String(),
	})

	h.collector.Emit(metrics.Event{
		Type:      metrics.EventTargetSelected,
		Timestamp: time.Now(),
		Target:    next.Addr().String(),
	})

	start := time.Now()

	h.logger.Info("Forwarding to worker",
		slog.String("client", clientIP.String()),
		slog.String("target", next.Addr().String()))

	w.Header().Set("X-Manifold-Backend", next.Addr().String())

	wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
	next.ReverseProxy().ServeHTTP(wrapped, r)

	h.collector.Emit(metrics.Event{
		Type:       metrics.EventResponseCompleted,
		Timestamp:  time.Now(),
		Target:     next.Addr().String(),
		Duration:   time.Since(start),
		StatusCode: wrapped.statusCode,
	})
}

// peerAddr parses the connection's remote address. A request injected
// without a real socket yields the zero AddrPort, which extraction treats
// like any other peer.
func peerAddr(r *http.Request) netip.AddrPort {
	addr, err := netip.ParseAddrPort(r.RemoteAddr)
	if err != nil {
		return netip.AddrPort{}
	}
	return addr
}
