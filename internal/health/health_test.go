package health_test

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"

	"github.com/manifold-proxy/manifold/internal/health"
	"github.com/manifold-proxy/manifold/internal/metrics"
)

var _ = Describe("Monitor", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		buf    *gbytes.Buffer
		log    *slog.Logger
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		buf = gbytes.NewBuffer()
		log = slog.New(slog.NewTextHandler(buf, nil))
	})

	AfterEach(func() {
		cancel()
	})

	contents := func() string { return string(buf.Contents()) }

	// reserveClosedAddr returns a loopback address nothing listens on.
	reserveClosedAddr := func() netip.AddrPort {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		addr := ln.Addr().(*net.TCPAddr).AddrPort()
		Expect(ln.Close()).To(Succeed())
		return addr
	}

	It("should log down and up transitions", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		addr := ln.Addr().(*net.TCPAddr).AddrPort()

		go health.Monitor(ctx, addr, 30*time.Millisecond, log, nil)

		// Reachable at first, reported as up once.
		Eventually(contents, "3s", "20ms").Should(ContainSubstring("Worker is up"))
		Expect(contents()).NotTo(ContainSubstring("Worker is down"))

		Expect(ln.Close()).To(Succeed())
		Eventually(contents, "3s", "20ms").Should(ContainSubstring("Worker is down"))

		ln2, err := net.Listen("tcp", addr.String())
		Expect(err).NotTo(HaveOccurred())
		defer ln2.Close()

		Eventually(contents, "3s", "20ms").Should(ContainSubstring("Worker is back up"))
	})

	It("should report an initially reachable worker as up once", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		defer ln.Close()
		addr := ln.Addr().(*net.TCPAddr).AddrPort()

		go health.Monitor(ctx, addr, 30*time.Millisecond, log, nil)

		Eventually(contents, "3s", "20ms").Should(ContainSubstring("Worker is up"))
		Consistently(func() int {
			return strings.Count(contents(), "Worker is up")
		}, "300ms", "30ms").Should(Equal(1))
	})

	It("should report a down worker once, not per probe", func() {
		addr := reserveClosedAddr()

		go health.Monitor(ctx, addr, 30*time.Millisecond, log, nil)

		Eventually(contents, "3s", "20ms").Should(ContainSubstring("Worker is down"))
		Consistently(func() int {
			return strings.Count(contents(), "Worker is down")
		}, "300ms", "30ms").Should(Equal(1))
	})

	It("should stop when the context is cancelled", func() {
		addr := reserveClosedAddr()

		go health.Monitor(ctx, addr, 30*time.Millisecond, log, nil)
		cancel()

		Eventually(contents, "3s", "20ms").Should(ContainSubstring("Health monitor stopped"))
	})

	It("should publish transitions to the metrics pipeline", func() {
		addr := reserveClosedAddr()

		collector := metrics.NewCollector(16, log)
		collector.Start(ctx)

		go health.Monitor(ctx, addr, 30*time.Millisecond, log, collector)

		Eventually(func() bool {
			snap := collector.Snapshot("round_robin")
			tm, ok := snap.Targets[addr.String()]
			return ok && !tm.Healthy
		}, "3s", "20ms").Should(BeTrue())
	})

	It("should publish a worker that is healthy from the first probe", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		defer ln.Close()
		addr := ln.Addr().(*net.TCPAddr).AddrPort()

		collector := metrics.NewCollector(16, log)
		collector.Start(ctx)

		go health.Monitor(ctx, addr, 30*time.Millisecond, log, collector)

		Eventually(func() bool {
			snap := collector.Snapshot("round_robin")
			tm, ok := snap.Targets[addr.String()]
			return ok && tm.Healthy
		}, "3s", "20ms").Should(BeTrue())
	})

	It("should run without a collector", func() {
		addr := reserveClosedAddr()

		go health.Monitor(ctx, addr, 30*time.Millisecond, log, nil)

		Eventually(contents, "3s", "20ms").Should(ContainSubstring("Worker is down"))
	})
})
