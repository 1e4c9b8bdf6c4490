package worker_test

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"

	"github.com/manifold-proxy/manifold/internal/worker"
)

var _ = Describe("Worker", func() {
	var (
		pool *worker.Pool
		log  *slog.Logger
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	})

	AfterEach(func() {
		if pool != nil {
			pool.Stop()
			pool = nil
		}
	})

	Describe("spawning", func() {
		It("should start the subprocess and expose its pid", func() {
			pool = worker.NewPool(scriptLauncher{script: "sleep 60"}, ".", log)
			Expect(pool.Spawn(1)).To(Succeed())

			w := pool.Workers()[0]
			Expect(w.Name()).To(Equal("worker-1"))
			Expect(w.Pid()).To(BeNumerically(">", 0))
			Expect(processAlive(w.Pid())).To(BeTrue())
		})

		It("should reserve a loopback address", func() {
			pool = worker.NewPool(scriptLauncher{script: "sleep 60"}, ".", log)
			Expect(pool.Spawn(1)).To(Succeed())

			addr := pool.Workers()[0].Addr()
			Expect(addr.Addr().IsLoopback()).To(BeTrue())
			Expect(addr.Port()).To(BeNumerically(">", 0))
		})
	})

	Describe("crash recovery", func() {
		It("should relaunch the subprocess after it exits", func() {
			pool = worker.NewPool(scriptLauncher{script: "sleep 0.1"}, ".", log)
			Expect(pool.Spawn(1)).To(Succeed())

			w := pool.Workers()[0]
			first := w.Pid()
			Expect(first).To(BeNumerically(">", 0))

			Eventually(w.Pid, "5s", "20ms").ShouldNot(Equal(first))
		})

		It("should keep the same address across relaunches", func() {
			pool = worker.NewPool(scriptLauncher{script: "sleep 0.1"}, ".", log)
			Expect(pool.Spawn(1)).To(Succeed())

			w := pool.Workers()[0]
			addr := w.Addr()
			first := w.Pid()

			Eventually(w.Pid, "5s", "20ms").ShouldNot(Equal(first))
			Expect(w.Addr()).To(Equal(addr))
		})

		It("should retry a relaunch whose command does not start", func() {
			launcher := &recoveringLauncher{}
			pool = worker.NewPool(launcher, ".", log)
			Expect(pool.Spawn(1)).To(Succeed())

			w := pool.Workers()[0]

			Eventually(launcher.Calls, "10s", "50ms").Should(BeNumerically(">=", 3))
			Eventually(func() bool { return processAlive(w.Pid()) }, "10s", "50ms").Should(BeTrue())
		})
	})

	Describe("Stop", func() {
		It("should terminate the current subprocess", func() {
			pool = worker.NewPool(scriptLauncher{script: "sleep 60"}, ".", log)
			Expect(pool.Spawn(1)).To(Succeed())

			w := pool.Workers()[0]
			pid := w.Pid()
			Expect(processAlive(pid)).To(BeTrue())

			w.Stop()

			Eventually(func() bool { return processAlive(pid) }, "5s", "20ms").Should(BeFalse())
		})

		It("should prevent further relaunches", func() {
			pool = worker.NewPool(scriptLauncher{script: "sleep 0.1"}, ".", log)
			Expect(pool.Spawn(1)).To(Succeed())

			w := pool.Workers()[0]
			first := w.Pid()
			Eventually(w.Pid, "5s", "20ms").ShouldNot(Equal(first))

			w.Stop()

			// A launch already in flight may still land; give it a moment.
			time.Sleep(200 * time.Millisecond)
			settled := w.Pid()

			Consistently(w.Pid, "700ms", "50ms").Should(Equal(settled))
			Eventually(func() bool { return processAlive(settled) }, "5s", "20ms").Should(BeFalse())
		})

		It("should be safe to call more than once", func() {
			pool = worker.NewPool(scriptLauncher{script: "sleep 60"}, ".", log)
			Expect(pool.Spawn(1)).To(Succeed())

			w := pool.Workers()[0]
			w.Stop()
			w.Stop()

			Eventually(func() bool { return processAlive(w.Pid()) }, "5s", "20ms").Should(BeFalse())
		})
	})

	Describe("stdio forwarding", func() {
		It("should forward stdout lines at info and stderr lines at warn", func() {
			buf := gbytes.NewBuffer()
			quiet := slog.New(slog.NewTextHandler(buf, nil))

			pool = worker.NewPool(scriptLauncher{script: "echo out-line; echo err-line 1>&2; sleep 60"}, ".", quiet)
			Expect(pool.Spawn(1)).To(Succeed())

			contents := func() string { return string(buf.Contents()) }
			Eventually(contents, "5s", "20ms").Should(ContainSubstring("level=INFO msg=out-line"))
			Eventually(contents, "5s", "20ms").Should(ContainSubstring("level=WARN msg=err-line"))
		})

		It("should tag forwarded lines with worker name and pid", func() {
			buf := gbytes.NewBuffer()
			quiet := slog.New(slog.NewTextHandler(buf, nil))

			pool = worker.NewPool(scriptLauncher{script: "echo tagged; sleep 60"}, ".", quiet)
			Expect(pool.Spawn(1)).To(Succeed())

			w := pool.Workers()[0]
			want := fmt.Sprintf("msg=tagged worker=worker-1 addr=%s pid=%d", w.Addr(), w.Pid())
			Eventually(func() string { return string(buf.Contents()) }, "5s", "20ms").Should(ContainSubstring(want))
		})

		It("should drain a subprocess that floods stdout", func() {
			buf := gbytes.NewBuffer()
			quiet := slog.New(slog.NewTextHandler(buf, nil))

			// Well past the pipe buffer size, so an undrained stream would wedge.
			script := "i=0; while [ $i -lt 10000 ]; do echo noisy-line-$i; i=$((i+1)); done; sleep 60"
			pool = worker.NewPool(scriptLauncher{script: script}, ".", quiet)
			Expect(pool.Spawn(1)).To(Succeed())

			Eventually(func() string { return string(buf.Contents()) }, "15s", "100ms").
				Should(ContainSubstring("msg=noisy-line-9999"))
		})

		It("should forward the final line of every exited subprocess", func() {
			buf := gbytes.NewBuffer()
			quiet := slog.New(slog.NewTextHandler(buf, nil))

			pool = worker.NewPool(scriptLauncher{script: "echo farewell"}, ".", quiet)
			Expect(pool.Spawn(1)).To(Succeed())

			contents := func() string { return string(buf.Contents()) }
			started := func() int { return strings.Count(contents(), "Worker subprocess started") }

			// Let a good number of print-and-exit generations through.
			Eventually(started, "10s", "20ms").Should(BeNumerically(">=", 20))

			pool.Workers()[0].Stop()
			Eventually(contents, "5s", "20ms").Should(ContainSubstring("Worker received stop signal"))

			// Each reaped generation printed once before exiting; only a
			// generation killed mid-flight by Stop may miss its echo.
			final := contents()
			launched := strings.Count(final, "Worker subprocess started")
			forwarded := strings.Count(final, "msg=farewell")
			Expect(forwarded).To(BeNumerically(">=", launched-1))
		})

		It("should keep framing lines after an oversized one", func() {
			buf := gbytes.NewBuffer()
			quiet := slog.New(slog.NewTextHandler(buf, nil))

			// One line well past the forwarding cap, then a normal one.
			script := "s=x; while [ ${#s} -lt 2097152 ]; do s=$s$s; done; echo $s; echo small-again; sleep 60"
			pool = worker.NewPool(scriptLauncher{script: script}, ".", quiet)
			Expect(pool.Spawn(1)).To(Succeed())

			contents := func() string { return string(buf.Contents()) }
			Eventually(contents, "15s", "100ms").Should(ContainSubstring("msg=small-again"))
			Expect(contents()).NotTo(ContainSubstring("msg=xxxxxxxx"))
		})
	})
})
