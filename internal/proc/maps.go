// Package proc reads process memory maps and command lines from procfs and
// translates addresses between two processes mapping the same module.
package proc

import (
	"strings"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/prometheus/procfs"
)

// Self selects the calling process.
const Self = 0

var (
	// ErrModuleNotFound means no mapping path contains the module name
	ErrModuleNotFound = errors.New("module not mapped")
	// ErrProcessNotFound means no process has a matching command line
	ErrProcessNotFound = errors.New("process not found")
	// ErrBeforeBase means a local address precedes the local module base
	ErrBeforeBase = errors.New("address precedes module base")
)

// Mapping is one line of a process memory map.
type Mapping struct {
	Start, End uintptr
	Offset     int64
	Read       bool
	Write      bool
	Exec       bool
	Path       string
}

// Size returns the mapped length.
func (m Mapping) Size() uintptr {
	return m.End - m.Start
}

// FS is a procfs mount.
type FS struct {
	fs procfs.FS
}

// NewFS opens the procfs mounted at mountPoint.
func NewFS(mountPoint string) (FS, error) {
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return FS{}, errors.Wrapf(err, "procfs %s", mountPoint)
	}
	return FS{fs: fs}, nil
}

// Default opens /proc.
func Default() (FS, error) {
	return NewFS(procfs.DefaultMountPoint)
}

func (f FS) proc(pid int) (procfs.Proc, error) {
	if pid == Self {
		p, err := f.fs.Self()
		return p, errors.Wrap(err, "procfs self")
	}
	p, err := f.fs.Proc(pid)
	return p, errors.Wrapf(err, "procfs pid %d", pid)
}

// Mappings returns the memory map of pid in listing order.
func (f FS) Mappings(pid int) ([]Mapping, error) {
	p, err := f.proc(pid)
	if err != nil {
		return nil, err
	}
	entries, err := p.ProcMaps()
	if err != nil {
		return nil, errors.Wrapf(err, "maps of pid %d", p.PID)
	}
	maps := make([]Mapping, 0, len(entries))
	for _, e := range entries {
		m := Mapping{
			Start:  e.StartAddr,
			End:    e.EndAddr,
			Offset: e.Offset,
			Path:   e.Pathname,
		}
		if e.Perms != nil {
			m.Read, m.Write, m.Exec = e.Perms.Read, e.Perms.Write, e.Perms.Execute
		}
		maps = append(maps, m)
	}
	return maps, nil
}

// FindModule returns the first mapping of pid whose path contains name.
func (f FS) FindModule(pid int, name string) (Mapping, error) {
	maps, err := f.Mappings(pid)
	if err != nil {
		return Mapping{}, err
	}
	for _, m := range maps {
		if strings.Contains(m.Path, name) {
			log.WithFields(log.Fields{"pid": pid, "module": name}).Debugf("base %#x (%s)", m.Start, m.Path)
			return m, nil
		}
	}
	return Mapping{}, errors.Wrapf(ErrModuleNotFound, "%s in pid %d", name, pid)
}

// FindModuleBase returns the start of the first mapping of pid whose path
// contains name. Modules mapped as several segments resolve to whichever
// segment is listed first.
func (f FS) FindModuleBase(pid int, name string) (uintptr, error) {
	m, err := f.FindModule(pid, name)
	if err != nil {
		return 0, err
	}
	return m.Start, nil
}

// FindPID returns the first process whose argv[0] equals name.
func (f FS) FindPID(name string) (int, error) {
	procs, err := f.fs.AllProcs()
	if err != nil {
		return 0, errors.Wrap(err, "list processes")
	}
	for _, p := range procs {
		args, err := p.CmdLine()
		if err != nil || len(args) == 0 {
			continue
		}
		if args[0] == name {
			return p.PID, nil
		}
	}
	return 0, errors.Wrap(ErrProcessNotFound, name)
}

// Translate maps localAddr inside a module based at localBase to the same
// module based at remoteBase.
func Translate(localAddr, localBase, remoteBase uintptr) (uintptr, error) {
	if localAddr < localBase {
		return 0, errors.Wrapf(ErrBeforeBase, "%#x < %#x", localAddr, localBase)
	}
	return remoteBase + (localAddr - localBase), nil
}

// RemoteAddr translates a local address in module to the address of the same
// code in pid.
func (f FS) RemoteAddr(pid int, module string, localAddr uintptr) (uintptr, error) {
	localBase, err := f.FindModuleBase(Self, module)
	if err != nil {
		return 0, err
	}
	remoteBase, err := f.FindModuleBase(pid, module)
	if err != nil {
		return 0, err
	}
	addr, err := Translate(localAddr, localBase, remoteBase)
	if err != nil {
		log.WithField("module", module).Warnf("local address %#x before local base %#x", localAddr, localBase)
		return 0, err
	}
	return addr, nil
}
