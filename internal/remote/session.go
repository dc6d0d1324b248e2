// Package remote drives function calls and memory access in another process
// through ptrace.
package remote

import (
	"bytes"
	"encoding/binary"

	"github.com/apex/log"
	"github.com/k2io/armhook/internal/armabi"
	"github.com/pkg/errors"
)

var (
	// ErrUnsupported means ptrace control is not built for this platform
	ErrUnsupported = errors.New("remote control needs linux/arm")
	// ErrNotAttached means the session is not attached
	ErrNotAttached = errors.New("not attached")
	// ErrAlreadyAttached means Attach was called twice
	ErrAlreadyAttached = errors.New("already attached")
	// ErrExited means the tracee terminated during a call
	ErrExited = errors.New("tracee exited")
)

// Stop is the state reported by Tracee.Wait.
type Stop struct {
	// Exited is set when the tracee terminated instead of stopping.
	Exited bool
	// Signal is the stop or terminating signal.
	Signal int
}

// Tracee is the ptrace surface a Session needs. Implementations may require
// all calls to come from the goroutine that called Attach.
type Tracee interface {
	// Attach stops pid and blocks until the stop is observed.
	Attach(pid int) error
	Detach() error
	GetRegs() (Registers, error)
	SetRegs(Registers) error
	PeekWord(addr uintptr) (uint32, error)
	PokeWord(addr uintptr, w uint32) error
	// Cont resumes the tracee, delivering sig unless it is 0.
	Cont(sig int) error
	Wait() (Stop, error)
}

// Session is one attachment to a remote process.
type Session struct {
	pid      int
	tracee   Tracee
	attached bool
}

// NewSession returns a detached session driving pid through t.
func NewSession(pid int, t Tracee) *Session {
	return &Session{pid: pid, tracee: t}
}

// Open returns a session for pid using the platform ptrace backend.
func Open(pid int) *Session {
	return NewSession(pid, NewTracee())
}

// PID returns the controlled process id.
func (s *Session) PID() int {
	return s.pid
}

// Attach stops the process. It must be paired with Detach from the same
// goroutine.
func (s *Session) Attach() error {
	if s.attached {
		return errors.Wrapf(ErrAlreadyAttached, "pid %d", s.pid)
	}
	if err := s.tracee.Attach(s.pid); err != nil {
		return errors.Wrapf(err, "attach pid %d", s.pid)
	}
	s.attached = true
	log.WithField("pid", s.pid).Debug("attached")
	return nil
}

// Detach resumes the process.
func (s *Session) Detach() error {
	if !s.attached {
		return errors.Wrapf(ErrNotAttached, "pid %d", s.pid)
	}
	s.attached = false
	if err := s.tracee.Detach(); err != nil {
		return errors.Wrapf(err, "detach pid %d", s.pid)
	}
	log.WithField("pid", s.pid).Debug("detached")
	return nil
}

// Call runs fn in the stopped process with args and returns r0. The
// register state of the process is restored afterwards.
func (s *Session) Call(fn armabi.Addr, args ...uint32) (ret uint32, err error) {
	if !s.attached {
		return 0, errors.Wrapf(ErrNotAttached, "pid %d", s.pid)
	}
	saved, err := s.tracee.GetRegs()
	if err != nil {
		return 0, errors.Wrap(err, "get registers")
	}

	frame := MarshalCall(saved, fn, args)
	for i, w := range frame.Stack {
		if err := s.tracee.PokeWord(frame.StackAddr+uintptr(i*armabi.WordSize), w); err != nil {
			return 0, errors.Wrapf(err, "stack argument %d", i+argRegs)
		}
	}
	if err := s.tracee.SetRegs(frame.Regs); err != nil {
		return 0, errors.Wrap(err, "set call registers")
	}
	defer func() {
		if !s.attached {
			return
		}
		if rerr := s.tracee.SetRegs(saved); rerr != nil {
			if err == nil {
				err = errors.Wrap(rerr, "restore registers")
				return
			}
			log.WithError(rerr).WithField("pid", s.pid).Warn("registers not restored, process may be unstable")
		}
	}()

	log.WithFields(log.Fields{"pid": s.pid, "fn": fn}).Debugf("call with %#x", args)
	sig := 0
	for {
		if err := s.tracee.Cont(sig); err != nil {
			return 0, errors.Wrap(err, "continue")
		}
		stop, err := s.tracee.Wait()
		if err != nil {
			return 0, errors.Wrap(err, "wait")
		}
		if stop.Exited {
			s.attached = false
			return 0, errors.Wrapf(ErrExited, "pid %d signal %d during call to %v", s.pid, stop.Signal, fn)
		}
		after, err := s.tracee.GetRegs()
		if err != nil {
			return 0, errors.Wrap(err, "get result registers")
		}
		// the callee returned to the zero link register
		if after.PC()&^1 == 0 {
			log.WithFields(log.Fields{"pid": s.pid, "fn": fn}).Debugf("returned %#x, stop signal %d", after[0], stop.Signal)
			return after[0], nil
		}
		log.WithFields(log.Fields{"pid": s.pid, "pc": after.PC()}).Debugf("passing signal %d during call", stop.Signal)
		sig = stop.Signal
	}
}

// WriteMemory stores data at addr. Bytes past the end of data in the last
// word keep their current value.
func (s *Session) WriteMemory(addr uintptr, data []byte) error {
	if !s.attached {
		return errors.Wrapf(ErrNotAttached, "pid %d", s.pid)
	}
	full := len(data) / armabi.WordSize * armabi.WordSize
	for off := 0; off < full; off += armabi.WordSize {
		w := binary.LittleEndian.Uint32(data[off:])
		if err := s.tracee.PokeWord(addr+uintptr(off), w); err != nil {
			return errors.Wrapf(err, "poke %#x", addr+uintptr(off))
		}
	}
	if rest := data[full:]; len(rest) > 0 {
		at := addr + uintptr(full)
		w, err := s.tracee.PeekWord(at)
		if err != nil {
			return errors.Wrapf(err, "peek %#x", at)
		}
		var word [armabi.WordSize]byte
		binary.LittleEndian.PutUint32(word[:], w)
		copy(word[:], rest)
		if err := s.tracee.PokeWord(at, binary.LittleEndian.Uint32(word[:])); err != nil {
			return errors.Wrapf(err, "poke %#x", at)
		}
	}
	return nil
}

// ReadMemory loads n bytes from addr.
func (s *Session) ReadMemory(addr uintptr, n int) ([]byte, error) {
	if !s.attached {
		return nil, errors.Wrapf(ErrNotAttached, "pid %d", s.pid)
	}
	out := make([]byte, 0, n+armabi.WordSize)
	var word [armabi.WordSize]byte
	for off := 0; off < n; off += armabi.WordSize {
		w, err := s.tracee.PeekWord(addr + uintptr(off))
		if err != nil {
			return nil, errors.Wrapf(err, "peek %#x", addr+uintptr(off))
		}
		binary.LittleEndian.PutUint32(word[:], w)
		out = append(out, word[:]...)
	}
	return out[:n], nil
}

// ReadString loads a NUL terminated string of at most max bytes from addr.
func (s *Session) ReadString(addr uintptr, max int) (string, error) {
	if !s.attached {
		return "", errors.Wrapf(ErrNotAttached, "pid %d", s.pid)
	}
	var out []byte
	for len(out) < max {
		word, err := s.ReadMemory(addr+uintptr(len(out)), armabi.WordSize)
		if err != nil {
			return "", errors.Wrapf(err, "read string at %#x+%d", addr, len(out))
		}
		if i := bytes.IndexByte(word, 0); i >= 0 {
			out = append(out, word[:i]...)
			break
		}
		out = append(out, word...)
	}
	if len(out) > max {
		out = out[:max]
	}
	return string(out), nil
}
