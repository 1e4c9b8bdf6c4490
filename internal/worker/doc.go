// Package worker supervises the application subprocesses requests are
// routed to.
//
// Each Worker owns one subprocess on a reserved loopback port and a
// supervision goroutine that relaunches it after every exit until Stop is
// called. Subprocess stdout and stderr are forwarded line by line into the
// structured log, tagged with the subprocess pid.
//
// A Pool groups same-type workers and exposes the address snapshot the
// routing layer is built from.
package worker
