package procs

import (
	"github.com/lonitor/lonitor/internal/errors"
	"golang.org/x/sys/unix"
)

// Killer delivers termination to a process.
type Killer interface {
	Kill(pid int32) error
}

// SignalKiller sends SIGTERM.
type SignalKiller struct{}

func (SignalKiller) Kill(pid int32) error {
	return classifyKill(pid, unix.Kill(int(pid), unix.SIGTERM))
}

func classifyKill(pid int32, err error) error {
	errFactory := errors.New()

	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.ESRCH):
		return errFactory.Wrap(errors.ErrNotFound, err).WithData(pid)
	case errors.Is(err, unix.EPERM), errors.Is(err, unix.EACCES):
		return errFactory.Wrap(errors.ErrPermissionDenied, err).WithData(pid)
	default:
		return errFactory.Wrap(errors.ErrInternal, err).WithData(pid)
	}
}
