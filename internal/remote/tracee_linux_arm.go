//go:build linux && arm

package remote

import (
	"encoding/binary"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ptraceTracee is bound to the OS thread that attached. ptrace requests
// from any other thread fail with ESRCH.
type ptraceTracee struct {
	pid int
}

// NewTracee returns the ptrace backend.
func NewTracee() Tracee {
	return &ptraceTracee{}
}

func (t *ptraceTracee) Attach(pid int) error {
	runtime.LockOSThread()
	if err := unix.PtraceAttach(pid); err != nil {
		runtime.UnlockOSThread()
		return errors.Wrap(err, "ptrace attach")
	}
	t.pid = pid
	stop, err := t.Wait()
	if err == nil && stop.Exited {
		err = errors.Wrapf(ErrExited, "signal %d", stop.Signal)
	}
	if err != nil {
		unix.PtraceDetach(pid)
		runtime.UnlockOSThread()
		return err
	}
	return nil
}

func (t *ptraceTracee) Detach() error {
	err := unix.PtraceDetach(t.pid)
	runtime.UnlockOSThread()
	return errors.Wrap(err, "ptrace detach")
}

func (t *ptraceTracee) GetRegs() (Registers, error) {
	var regs unix.PtraceRegsArm
	if err := unix.PtraceGetRegsArm(t.pid, &regs); err != nil {
		return Registers{}, errors.Wrap(err, "ptrace getregs")
	}
	return Registers(regs.Uregs), nil
}

func (t *ptraceTracee) SetRegs(r Registers) error {
	regs := unix.PtraceRegsArm{Uregs: r}
	return errors.Wrap(unix.PtraceSetRegsArm(t.pid, &regs), "ptrace setregs")
}

func (t *ptraceTracee) PeekWord(addr uintptr) (uint32, error) {
	var buf [4]byte
	n, err := unix.PtracePeekData(t.pid, addr, buf[:])
	if err != nil {
		return 0, errors.Wrap(err, "ptrace peekdata")
	}
	if n != len(buf) {
		return 0, errors.Errorf("peeked %d bytes, want %d", n, len(buf))
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (t *ptraceTracee) PokeWord(addr uintptr, w uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], w)
	n, err := unix.PtracePokeData(t.pid, addr, buf[:])
	if err != nil {
		return errors.Wrap(err, "ptrace pokedata")
	}
	if n != len(buf) {
		return errors.Errorf("poked %d bytes, want %d", n, len(buf))
	}
	return nil
}

func (t *ptraceTracee) Cont(sig int) error {
	return errors.Wrap(unix.PtraceCont(t.pid, sig), "ptrace cont")
}

func (t *ptraceTracee) Wait() (Stop, error) {
	var status unix.WaitStatus
	for {
		_, err := unix.Wait4(t.pid, &status, 0, nil)
		if err == nil {
			break
		}
		if !errors.Is(err, unix.EINTR) {
			return Stop{}, errors.Wrap(err, "wait4")
		}
	}
	switch {
	case status.Stopped():
		return Stop{Signal: int(status.StopSignal())}, nil
	case status.Signaled():
		return Stop{Exited: true, Signal: int(status.Signal())}, nil
	}
	return Stop{Exited: true}, nil
}
