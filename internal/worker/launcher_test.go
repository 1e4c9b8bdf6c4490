package worker_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/manifold-proxy/manifold/internal/worker"
)

var _ = Describe("ParseType", func() {
	DescribeTable("maps tokens to worker types",
		func(token string, want worker.Type) {
			wt, err := worker.ParseType(token)
			Expect(err).NotTo(HaveOccurred())
			Expect(wt).To(Equal(want))
		},
		Entry("uvicorn", "uvicorn", worker.TypeUvicorn),
		Entry("gunicorn", "gunicorn", worker.TypeGunicorn),
	)

	It("should fail for an unknown token", func() {
		_, err := worker.ParseType("plumber")
		Expect(err).To(MatchError(worker.ErrUnknownWorkerType))
		Expect(err.Error()).To(ContainSubstring("plumber"))
	})

	It("should round-trip through String", func() {
		for _, token := range []string{"uvicorn", "gunicorn"} {
			wt, err := worker.ParseType(token)
			Expect(err).NotTo(HaveOccurred())
			Expect(wt.String()).To(Equal(token))
		}
	})
})

var _ = Describe("NewLauncher", func() {
	It("should build the uvicorn invocation", func() {
		launcher := worker.NewLauncher(worker.TypeUvicorn)
		Expect(launcher.Kind()).To(Equal("uvicorn"))

		cmd := launcher.Command("/srv/app", 9001)
		Expect(cmd.Dir).To(Equal("/srv/app"))
		Expect(cmd.Args).To(Equal([]string{
			"python3", "-m", "uvicorn", "app:app",
			"--host", "127.0.0.1",
			"--port", "9001",
		}))
	})

	It("should build the gunicorn invocation", func() {
		launcher := worker.NewLauncher(worker.TypeGunicorn)
		Expect(launcher.Kind()).To(Equal("gunicorn"))

		cmd := launcher.Command("/srv/app", 9002)
		Expect(cmd.Dir).To(Equal("/srv/app"))
		Expect(cmd.Args).To(Equal([]string{
			"python3", "-m", "gunicorn", "app:app",
			"--bind", "127.0.0.1:9002",
			"--workers", "1",
		}))
	})

	It("should return a fresh command on every call", func() {
		launcher := worker.NewLauncher(worker.TypeUvicorn)

		first := launcher.Command(".", 9001)
		second := launcher.Command(".", 9001)
		Expect(first).NotTo(BeIdenticalTo(second))
	})
})
