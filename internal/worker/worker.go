package worker

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// relaunchRetryPause is the delay between relaunch attempts when starting
// the subprocess itself fails. A crashing-but-startable subprocess is
// relaunched immediately.
const relaunchRetryPause = time.Second

// maxLineBytes caps one forwarded stdio line. Longer lines are dropped
// whole and framing resumes after their newline.
const maxLineBytes = 1024 * 1024

// Worker keeps one application subprocess alive at a reserved loopback
// port, restarting it after every exit until Stop is called.
type Worker struct {
	name     string
	launcher Launcher
	workdir  string
	addr     netip.AddrPort
	log      *slog.Logger

	stop   atomic.Bool
	proc   atomic.Pointer[os.Process]
	pid    atomic.Int64
	drains sync.WaitGroup
}

// newWorker reserves a port, launches the subprocess, and starts the
// supervision loop. Fails if no port can be reserved or the first launch
// does not start.
func newWorker(name string, launcher Launcher, workdir string, log *slog.Logger) (*Worker, error) {
	addr, err := reservePort()
	if err != nil {
		return nil, fmt.Errorf("reserving port: %w", err)
	}

	w := &Worker{
		name:     name,
		launcher: launcher,
		workdir:  workdir,
		addr:     addr,
		log: log.With(
			slog.String("worker", name),
			slog.String("addr", addr.String()),
		),
	}

	child, err := w.launch()
	if err != nil {
		return nil, err
	}

	go w.supervise(child)

	return w, nil
}

// reservePort binds an ephemeral loopback listener and releases it, keeping
// the address for the subprocess to bind.
func reservePort() (netip.AddrPort, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return netip.AddrPort{}, err
	}
	addr := ln.Addr().(*net.TCPAddr).AddrPort()
	if err := ln.Close(); err != nil {
		return netip.AddrPort{}, err
	}
	return addr, nil
}

// Name returns the worker's name.
func (w *Worker) Name() string { return w.name }

// Addr returns the loopback address the subprocess serves on.
func (w *Worker) Addr() netip.AddrPort { return w.addr }

// Pid returns the process id of the current subprocess.
func (w *Worker) Pid() int { return int(w.pid.Load()) }

// Stop prevents further restarts and terminates the current subprocess.
// It does not wait for the subprocess to exit. Safe to call more than once.
func (w *Worker) Stop() {
	if w.stop.Swap(true) {
		return
	}
	w.killCurrent()
}

func (w *Worker) killCurrent() {
	if proc := w.proc.Load(); proc != nil {
		proc.Kill()
	}
}

// supervise restarts the subprocess after every exit until the stop flag
// is set. One goroutine per worker.
func (w *Worker) supervise(child *exec.Cmd) {
	for {
		if w.stop.Load() {
			// Stop raced with a relaunch; the fresh child must not survive.
			w.killCurrent()
			w.reap(child)
			w.log.Warn("Worker received stop signal", slog.Int64("pid", w.pid.Load()))
			return
		}

		err := w.reap(child)

		if w.stop.Load() {
			w.log.Warn("Worker received stop signal", slog.Int64("pid", w.pid.Load()))
			return
		}

		w.log.Error("Worker subprocess exited, relaunching",
			slog.Int64("pid", w.pid.Load()),
			slog.String("status", exitStatus(child, err)),
		)

		child = w.relaunch()
		if child == nil {
			return
		}
	}
}

// reap waits for both stdio drains to hit EOF, then reaps the subprocess.
// Wait closes the pipe read ends, so reaping first would discard buffered
// final lines. EOF follows process exit, so this adds no delay.
func (w *Worker) reap(child *exec.Cmd) error {
	w.drains.Wait()
	return child.Wait()
}

// relaunch retries the launch until it succeeds or the stop flag is set,
// in which case it returns nil.
func (w *Worker) relaunch() *exec.Cmd {
	for {
		if w.stop.Load() {
			w.log.Warn("Worker received stop signal", slog.Int64("pid", w.pid.Load()))
			return nil
		}

		child, err := w.launch()
		if err == nil {
			return child
		}

		w.log.Error("Worker relaunch failed, retrying",
			slog.String("error", err.Error()),
		)
		time.Sleep(relaunchRetryPause)
	}
}

// launch starts one subprocess and wires its stdout and stderr line streams
// into the log.
func (w *Worker) launch() (*exec.Cmd, error) {
	cmd := w.launcher.Command(w.workdir, w.addr.Port())
	configureSysProcAttr(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%s: stdout pipe: %w", w.name, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%s: stderr pipe: %w", w.name, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%s: starting %s: %w", w.name, w.launcher.Kind(), err)
	}

	w.proc.Store(cmd.Process)
	w.pid.Store(int64(cmd.Process.Pid))

	lineLog := w.log.With(slog.Int("pid", cmd.Process.Pid))
	w.drains.Add(2)
	go func() {
		defer w.drains.Done()
		drainLines(stdout, func(line string) { lineLog.Info(line) })
	}()
	go func() {
		defer w.drains.Done()
		drainLines(stderr, func(line string) { lineLog.Warn(line) })
	}()

	w.log.Info("Worker subprocess started",
		slog.String("kind", w.launcher.Kind()),
		slog.Int("pid", cmd.Process.Pid),
	)

	return cmd, nil
}

// exitStatus renders how a subprocess ended.
func exitStatus(cmd *exec.Cmd, err error) string {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.String()
	}
	if err != nil {
		return err.Error()
	}
	return "unknown"
}

// drainLines forwards complete lines from r to emit until the stream ends.
// A line over maxLineBytes is dropped and framing resumes after its newline;
// the stream is always read to EOF so the subprocess never blocks on a full
// pipe.
func drainLines(r io.Reader, emit func(string)) {
	br := bufio.NewReaderSize(r, 64*1024)
	var line []byte
	skipping := false
	for {
		frag, isPrefix, err := br.ReadLine()
		if err != nil {
			if len(line) > 0 && !skipping {
				emit(string(line))
			}
			return
		}
		if skipping {
			skipping = isPrefix
			continue
		}
		line = append(line, frag...)
		if len(line) > maxLineBytes {
			line = line[:0]
			skipping = isPrefix
			continue
		}
		if isPrefix {
			continue
		}
		emit(string(line))
		line = line[:0]
	}
}
