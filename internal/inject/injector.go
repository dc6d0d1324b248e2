// Package inject loads a shared library into a running process by calling
// its dynamic loader through ptrace.
package inject

import (
	"github.com/apex/log"
	"github.com/k2io/armhook/internal/config"
	"github.com/k2io/armhook/internal/dl"
	"github.com/k2io/armhook/internal/proc"
	"github.com/k2io/armhook/internal/remote"
	"github.com/pkg/errors"
)

var (
	// ErrScratchAlloc means the remote mmap failed
	ErrScratchAlloc = errors.New("cannot allocate scratch memory in target")
	// ErrPathTooLong means the library path does not fit the scratch region
	ErrPathTooLong = errors.New("library path longer than scratch region")
)

// target ABI values for the remote calls
const (
	protRead    = 0x1
	protWrite   = 0x2
	mapPrivate  = 0x02
	mapAnon     = 0x20
	mapFailed   = 0xffffffff
	maxErrorLen = 512
)

// bionic dlfcn.h for 32-bit targets, which differs from glibc
const (
	rtldNow    = 0x0
	rtldGlobal = 0x2
	rtldLocal  = 0x0
)

// DefaultFlags is the dlopen mode New uses. The library stays out of the
// global symbol scope.
const DefaultFlags = rtldNow | rtldLocal

// Result is the outcome of one load.
type Result struct {
	// Handle is what dlopen returned in the target.
	Handle uint32
	// LoaderError is the dlerror text when Handle is 0.
	LoaderError string
}

// Loaded reports whether the loader returned a handle. 0 almost always
// means the load failed, but is not proof of it.
func (r Result) Loaded() bool {
	return r.Handle != 0
}

// Injector loads libraries into other processes.
type Injector struct {
	Resolver    Resolver
	LibcPath    string
	LinkerPath  string
	ScratchSize uint32
	// Flags is the dlopen mode.
	Flags uint32
	// Open returns the session for pid, remote.Open when nil.
	Open func(pid int) *remote.Session
}

// New returns an injector set up from c.
func New(c config.Injector) (*Injector, error) {
	fs, err := proc.Default()
	if err != nil {
		return nil, err
	}
	in := &Injector{
		LibcPath:    c.LibcPath,
		LinkerPath:  c.LinkerPath,
		ScratchSize: uint32(c.ScratchSize),
		Flags:       DefaultFlags,
	}
	switch {
	case c.Resolver == config.ResolverELF:
		in.Resolver = &ELFResolver{FS: fs}
	case !dl.Available:
		log.Warnf("built without cgo, using the %s resolver", config.ResolverELF)
		in.Resolver = &ELFResolver{FS: fs}
	default:
		in.Resolver = NewLocalResolver(fs)
	}
	return in, nil
}

// Inject makes pid dlopen path. The process is stopped for the duration of
// the call.
func (in *Injector) Inject(pid int, path string) (res Result, err error) {
	if uint32(len(path))+1 > in.ScratchSize {
		return Result{}, errors.Wrapf(ErrPathTooLong, "%d bytes", len(path)+1)
	}
	lg := log.WithFields(log.Fields{"pid": pid, "library": path})

	mmap, err := in.Resolver.Resolve(pid, in.LibcPath, "mmap")
	if err != nil {
		return Result{}, errors.Wrap(err, "resolve mmap")
	}
	munmap, err := in.Resolver.Resolve(pid, in.LibcPath, "munmap")
	if err != nil {
		return Result{}, errors.Wrap(err, "resolve munmap")
	}
	dlopen, err := in.Resolver.Resolve(pid, in.LinkerPath, "dlopen")
	if err != nil {
		return Result{}, errors.Wrap(err, "resolve dlopen")
	}

	s := in.session(pid)
	if err := s.Attach(); err != nil {
		return Result{}, err
	}
	defer func() {
		if derr := s.Detach(); derr != nil {
			if err == nil {
				err = derr
				return
			}
			lg.WithError(derr).Warn("detach failed")
		}
	}()

	scratch, err := s.Call(mmap, 0, in.ScratchSize, protRead|protWrite, mapPrivate|mapAnon, mapFailed, 0)
	if err != nil {
		return Result{}, errors.Wrap(err, "remote mmap")
	}
	if scratch == mapFailed || scratch == 0 {
		return Result{}, errors.Wrapf(ErrScratchAlloc, "mmap returned %#x", scratch)
	}
	lg.Debugf("scratch at %#x", scratch)
	defer func() {
		ret, uerr := s.Call(munmap, scratch, in.ScratchSize)
		if uerr == nil && ret != 0 {
			uerr = errors.Errorf("munmap returned %#x", ret)
		}
		if uerr != nil {
			lg.WithError(uerr).Warn("scratch memory not released")
		}
	}()

	if err := s.WriteMemory(uintptr(scratch), append([]byte(path), 0)); err != nil {
		return Result{}, errors.Wrap(err, "write library path")
	}
	handle, err := s.Call(dlopen, scratch, in.Flags)
	if err != nil {
		return Result{}, errors.Wrap(err, "remote dlopen")
	}
	res.Handle = handle
	if handle == 0 {
		res.LoaderError = in.loaderError(s)
		lg.WithField("reason", res.LoaderError).Warn("dlopen returned 0, load likely failed")
		return res, nil
	}
	lg.Infof("loaded with handle %#x", handle)
	return res, nil
}

// loaderError fetches the dlerror text, empty when unavailable.
func (in *Injector) loaderError(s *remote.Session) string {
	dlerror, err := in.Resolver.Resolve(s.PID(), in.LinkerPath, "dlerror")
	if err != nil {
		log.WithError(err).Debug("dlerror not resolved")
		return ""
	}
	msg, err := s.Call(dlerror)
	if err != nil || msg == 0 {
		return ""
	}
	text, err := s.ReadString(uintptr(msg), maxErrorLen)
	if err != nil {
		log.WithError(err).Debug("dlerror text unreadable")
		return ""
	}
	return text
}

func (in *Injector) session(pid int) *remote.Session {
	if in.Open != nil {
		return in.Open(pid)
	}
	return remote.Open(pid)
}
