// Package explorer reveals vault entries in the platform file manager.
package explorer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/starford/docvault/internal/apperr"
)

// Runner starts an external command without waiting for it to finish.
type Runner func(name string, args ...string) error

// Opener hands paths to the file manager of one platform.
type Opener struct {
	goos string
	run  Runner
}

// New returns an Opener for the running platform.
func New() *Opener {
	return &Opener{goos: runtime.GOOS, run: start}
}

// NewWithRunner returns an Opener for goos that starts commands through run.
func NewWithRunner(goos string, run Runner) *Opener {
	return &Opener{goos: goos, run: run}
}

// Open reveals abs. A file is selected in its parent folder where the
// platform supports it; a directory is opened directly.
func (o *Opener) Open(abs string) error {
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperr.New(apperr.ErrNotFound, "reveal", abs, err)
		}
		return apperr.IO("reveal", abs, err)
	}

	name, args, err := command(o.goos, abs, info.IsDir())
	if err != nil {
		return apperr.IO("reveal", abs, err)
	}
	if err := o.run(name, args...); err != nil {
		return apperr.IO("reveal", abs, err)
	}
	return nil
}

func command(goos, abs string, dir bool) (string, []string, error) {
	switch goos {
	case "windows":
		if dir {
			return "explorer", []string{abs}, nil
		}
		// The switch and the path are separate arguments so a quoted path
		// with spaces still reaches explorer intact.
		return "explorer", []string{"/select,", abs}, nil
	case "darwin":
		if dir {
			return "open", []string{abs}, nil
		}
		return "open", []string{"-R", abs}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		if dir {
			return "xdg-open", []string{abs}, nil
		}
		return "xdg-open", []string{filepath.Dir(abs)}, nil
	default:
		return "", nil, fmt.Errorf("no file manager for %s", goos)
	}
}

func start(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
