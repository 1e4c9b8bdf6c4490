package worker

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// Type names the kind of application server a worker runs.
type Type int

const (
	// TypeUvicorn runs the app under uvicorn.
	TypeUvicorn Type = iota
	// TypeGunicorn runs the app under gunicorn.
	TypeGunicorn
)

// ErrUnknownWorkerType is returned by ParseType for a token outside the fixed set.
var ErrUnknownWorkerType = errors.New("unknown worker type")

// ParseType maps a configuration token to a worker Type.
func ParseType(token string) (Type, error) {
	switch token {
	case "uvicorn":
		return TypeUvicorn, nil
	case "gunicorn":
		return TypeGunicorn, nil
	default:
		return TypeUvicorn, fmt.Errorf("%w: %q", ErrUnknownWorkerType, token)
	}
}

func (t Type) String() string {
	switch t {
	case TypeGunicorn:
		return "gunicorn"
	default:
		return "uvicorn"
	}
}

// Launcher builds the command a worker runs. Implementations must return a
// fresh *exec.Cmd on every call: commands cannot be started twice.
type Launcher interface {
	// Command prepares the subprocess serving HTTP on 127.0.0.1:port,
	// with workdir as its working directory.
	Command(workdir string, port uint16) *exec.Cmd

	// Kind names the launcher for logs.
	Kind() string
}

// NewLauncher returns the Launcher for a worker type. The application is
// expected as an app.py in the working directory exposing a module-level
// "app" callable.
func NewLauncher(t Type) Launcher {
	switch t {
	case TypeGunicorn:
		return gunicornLauncher{}
	default:
		return uvicornLauncher{}
	}
}

type uvicornLauncher struct{}

func (uvicornLauncher) Command(workdir string, port uint16) *exec.Cmd {
	cmd := exec.Command("python3", "-m", "uvicorn", "app:app",
		"--host", "127.0.0.1",
		"--port", strconv.Itoa(int(port)))
	cmd.Dir = workdir
	cmd.Env = os.Environ()
	return cmd
}

func (uvicornLauncher) Kind() string { return "uvicorn" }

type gunicornLauncher struct{}

func (gunicornLauncher) Command(workdir string, port uint16) *exec.Cmd {
	cmd := exec.Command("python3", "-m", "gunicorn", "app:app",
		"--bind", "127.0.0.1:"+strconv.Itoa(int(port)),
		"--workers", "1")
	cmd.Dir = workdir
	cmd.Env = os.Environ()
	return cmd
}

func (gunicornLauncher) Kind() string { return "gunicorn" }
